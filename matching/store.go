package matching

import (
	"context"
	"sort"
)

// CandidateCriteria narrows the producer pool at the storage level. The filter
// stage re-checks every rule, so a store may return a superset.
type CandidateCriteria struct {
	ProductIDs []int
	Status     ProfileStatus
}

// Reader is the read side of the data access port. Every per-producer read is
// batched: it takes the ids of the whole pool and returns a map keyed by id.
type Reader interface {
	GetDemandVersion(ctx context.Context, id int) (*DemandVersion, error)
	GetProducer(ctx context.Context, id int) (*ProducerProfile, error)
	ListCandidateProducers(ctx context.Context, criteria CandidateCriteria) ([]ProducerProfile, error)
	CountOpenProposals(ctx context.Context, producerIDs []int) (map[int]int, error)
	GetProductionItems(ctx context.Context, producerIDs []int) (map[int][]ProductionItem, error)
	GetCapacityPeriods(ctx context.Context, itemIDs []int) (map[int][]CapacityPeriod, error)
	GetConfirmationHistory(ctx context.Context, producerIDs []int) (map[int][]Confirmation, error)
	GetProposalStats(ctx context.Context, producerIDs []int) (map[int]ProposalStats, error)
	GetDocumentStatus(ctx context.Context, producerIDs []int) (map[int]DocumentStatus, error)
	GetSubstitutions(ctx context.Context, productIDs []int) ([]Substitution, error)
}

// Writer is the write side of the data access port.
type Writer interface {
	CreateExecution(ctx context.Context, exec *Execution) error
	FinishExecution(ctx context.Context, exec *Execution) error
	PersistCandidates(ctx context.Context, candidates []*Candidate) error
	PersistGroup(ctx context.Context, group *SupplierGroup) error
	EnqueueEvent(ctx context.Context, event ExecutionEvent) error
}

type Store interface {
	Reader
	Writer
	// WithinTransaction runs fn against a store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
	GetExecution(ctx context.Context, id int) (*Execution, error)
	ListCandidates(ctx context.Context, executionID int) ([]Candidate, error)
}

// ProducerDataSet stores producer bundles contiguously with an index by producer id.
type ProducerDataSet struct {
	items []ProducerData
	index map[int]int
}

func (s *ProducerDataSet) Len() int { return len(s.items) }

// At returns the i-th bundle in load order.
func (s *ProducerDataSet) At(i int) *ProducerData { return &s.items[i] }

func (s *ProducerDataSet) Get(producerID int) (*ProducerData, bool) {
	i, ok := s.index[producerID]
	if !ok {
		return nil, false
	}
	return &s.items[i], true
}

// LoadEligibilityData fetches what the filter stage needs for a whole pool:
// production items with their capacity periods and open proposal counts.
func LoadEligibilityData(ctx context.Context, r Reader, producers []ProducerProfile) (*ProducerDataSet, error) {
	set := &ProducerDataSet{
		items: make([]ProducerData, len(producers)),
		index: make(map[int]int, len(producers)),
	}
	ids := make([]int, len(producers))
	for i, p := range producers {
		set.items[i].Profile = p
		set.index[p.ID] = i
		ids[i] = p.ID
	}
	if len(ids) == 0 {
		return set, nil
	}

	items, err := r.GetProductionItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	var itemIDs []int
	for _, id := range ids {
		for _, item := range items[id] {
			itemIDs = append(itemIDs, item.ID)
		}
	}
	periods := map[int][]CapacityPeriod{}
	if len(itemIDs) > 0 {
		if periods, err = r.GetCapacityPeriods(ctx, itemIDs); err != nil {
			return nil, err
		}
	}
	open, err := r.CountOpenProposals(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range set.items {
		pd := &set.items[i]
		pid := pd.Profile.ID
		pd.Items = append([]ProductionItem(nil), items[pid]...)
		sort.SliceStable(pd.Items, func(a, b int) bool { return pd.Items[a].ID < pd.Items[b].ID })
		for j := range pd.Items {
			pd.Items[j].Periods = append([]CapacityPeriod(nil), periods[pd.Items[j].ID]...)
		}
		pd.OpenProposals = open[pid]
	}
	return set, nil
}

// LoadScoringData completes the bundles with history, confirmations and documents.
func LoadScoringData(ctx context.Context, r Reader, producers []*ProducerData) error {
	if len(producers) == 0 {
		return nil
	}
	ids := make([]int, len(producers))
	for i, p := range producers {
		ids[i] = p.Profile.ID
	}
	stats, err := r.GetProposalStats(ctx, ids)
	if err != nil {
		return err
	}
	confirmations, err := r.GetConfirmationHistory(ctx, ids)
	if err != nil {
		return err
	}
	docs, err := r.GetDocumentStatus(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range producers {
		pid := p.Profile.ID
		p.Proposals = stats[pid]
		p.Confirmations = confirmations[pid]
		p.Documents = docs[pid]
	}
	return nil
}

// LoadProducerData builds the complete bundle for a single producer.
func LoadProducerData(ctx context.Context, r Reader, producer ProducerProfile) (*ProducerData, error) {
	set, err := LoadEligibilityData(ctx, r, []ProducerProfile{producer})
	if err != nil {
		return nil, err
	}
	pd := set.At(0)
	if err := LoadScoringData(ctx, r, []*ProducerData{pd}); err != nil {
		return nil, err
	}
	return pd, nil
}
