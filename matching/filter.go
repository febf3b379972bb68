package matching

import (
	"context"

	"github.com/sirupsen/logrus"
)

const (
	DefaultFilterRadiusKm   = 300.0
	DefaultMaxOpenProposals = 5
)

// FilterRules are the eliminatory thresholds of the filter stage.
type FilterRules struct {
	RadiusKm         float64
	MaxOpenProposals int
}

func DefaultFilterRules() FilterRules {
	return FilterRules{RadiusKm: DefaultFilterRadiusKm, MaxOpenProposals: DefaultMaxOpenProposals}
}

type ExclusionReason string

const (
	ExcludedProfileIncomplete ExclusionReason = "profile_incomplete"
	ExcludedNoProductOverlap  ExclusionReason = "no_product_overlap"
	ExcludedOutsideRadius     ExclusionReason = "outside_radius"
	ExcludedTooManyOpen       ExclusionReason = "too_many_open_proposals"
)

// Eligible applies the four rules to one producer. Declared products are those
// with positive declared capacity. Missing coordinates skip the radius rule.
func (r FilterRules) Eligible(demand *DemandVersion, p *ProducerData) (bool, ExclusionReason) {
	if p.Profile.Status != ProfileStatusComplete {
		return false, ExcludedProfileIncomplete
	}
	declared := p.CapacityByProduct()
	overlap := false
	for _, id := range demand.ProductIDs() {
		if _, ok := declared[id]; ok {
			overlap = true
			break
		}
	}
	if !overlap {
		return false, ExcludedNoProductOverlap
	}
	if d := Distance(demand.Delivery, p.Profile.Location); d != nil && *d > r.RadiusKm {
		return false, ExcludedOutsideRadius
	}
	if p.OpenProposals >= r.MaxOpenProposals {
		return false, ExcludedTooManyOpen
	}
	return true, ""
}

// FilterStage prunes the candidate pool of a demand version.
type FilterStage struct {
	Store  Reader
	Rules  FilterRules
	Logger *logrus.Logger
}

func NewFilterStage(store Reader, rules FilterRules, logger *logrus.Logger) *FilterStage {
	return &FilterStage{Store: store, Rules: rules, Logger: logger}
}

// EligibleProducers returns the survivors in pool order. Exclusions are logged, never raised.
func (f *FilterStage) EligibleProducers(ctx context.Context, demand *DemandVersion) ([]*ProducerData, error) {
	pool, err := f.Store.ListCandidateProducers(ctx, CandidateCriteria{
		ProductIDs: demand.ProductIDs(),
		Status:     ProfileStatusComplete,
	})
	if err != nil {
		return nil, err
	}
	set, err := LoadEligibilityData(ctx, f.Store, pool)
	if err != nil {
		return nil, err
	}

	survivors := make([]*ProducerData, 0, set.Len())
	for i := 0; i < set.Len(); i++ {
		p := set.At(i)
		ok, reason := f.Rules.Eligible(demand, p)
		if !ok {
			if f.Logger != nil {
				f.Logger.WithFields(logrus.Fields{
					"field":             "FilterStage",
					"demand_version_id": demand.ID,
					"producer_id":       p.Profile.ID,
					"reason":            reason,
				}).Debug("producer excluded")
			}
			continue
		}
		survivors = append(survivors, p)
	}
	return survivors, nil
}
