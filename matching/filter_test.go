package matching_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/mmdatafocus/agromatch_backend/matching/memstore"
)

func TestFilterRules_Eligible(t *testing.T) {
	d := demandVersion(1, brasilia, line(productTomato, 100), line(productLettuce, 20))
	rules := matching.DefaultFilterRules()

	withStatus := func(p *matching.ProducerData, s matching.ProfileStatus) *matching.ProducerData {
		p.Profile.Status = s
		return p
	}
	withOpen := func(p *matching.ProducerData, n int) *matching.ProducerData {
		p.OpenProposals = n
		return p
	}

	tests := []struct {
		name   string
		p      *matching.ProducerData
		ok     bool
		reason matching.ExclusionReason
	}{
		{"complete nearby producer", producerData(producer(1, goiania), item(1, productTomato, 10)), true, ""},
		{"blocked profile", withStatus(producerData(producer(2, brasilia), item(2, productTomato, 10)), matching.ProfileStatusBlocked), false, matching.ExcludedProfileIncomplete},
		{"incomplete profile", withStatus(producerData(producer(3, brasilia), item(3, productTomato, 10)), matching.ProfileStatusIncomplete), false, matching.ExcludedProfileIncomplete},
		{"other products only", producerData(producer(4, brasilia), item(4, productPotato, 500)), false, matching.ExcludedNoProductOverlap},
		{"demanded product without capacity", producerData(producer(5, brasilia), item(5, productTomato)), false, matching.ExcludedNoProductOverlap},
		{"zero capacity", producerData(producer(6, brasilia), item(6, productLettuce, 0)), false, matching.ExcludedNoProductOverlap},
		{"outside radius", producerData(producer(7, saoPaulo), item(7, productTomato, 1000)), false, matching.ExcludedOutsideRadius},
		{"missing coordinates skip radius", producerData(producer(8, nil), item(8, productLettuce, 5)), true, ""},
		{"four open proposals", withOpen(producerData(producer(9, brasilia), item(9, productTomato, 10)), 4), true, ""},
		{"five open proposals", withOpen(producerData(producer(10, brasilia), item(10, productTomato, 10)), 5), false, matching.ExcludedTooManyOpen},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := rules.Eligible(&d, tc.p)
			if ok != tc.ok || reason != tc.reason {
				t.Fatalf("Eligible = (%v, %q), want (%v, %q)", ok, reason, tc.ok, tc.reason)
			}
		})
	}
}

func TestFilterRules_CustomRadius(t *testing.T) {
	d := demandVersion(1, brasilia, line(productTomato, 100))
	p := producerData(producer(1, goiania), item(1, productTomato, 10))
	rules := matching.FilterRules{RadiusKm: 100, MaxOpenProposals: 5}
	if ok, reason := rules.Eligible(&d, p); ok || reason != matching.ExcludedOutsideRadius {
		t.Fatalf("expected goiania outside a 100 km radius, got (%v, %q)", ok, reason)
	}
}

func TestFilterStage_EligibleProducers(t *testing.T) {
	store := memstore.New()
	d := demandVersion(1, brasilia, line(productTomato, 100))
	store.AddDemand(d)
	store.AddProducer(producer(1, goiania), item(11, productTomato, 150))
	// Declares the product but no capacity for it: excluded before scoring.
	store.AddProducer(producer(2, brasilia), item(21, productTomato))
	store.AddProducer(producer(3, saoPaulo), item(31, productTomato, 500))
	busy := producer(4, brasilia)
	store.AddProducer(busy, item(41, productTomato, 80))
	for i := 0; i < 5; i++ {
		store.Proposals = append(store.Proposals, memstore.Proposal{ProducerID: busy.ID, Status: "submitted"})
	}
	// Closed proposals do not count against the limit.
	veteran := producer(5, nil)
	store.AddProducer(veteran, item(51, productTomato, 30))
	for i := 0; i < 6; i++ {
		store.Proposals = append(store.Proposals, memstore.Proposal{ProducerID: veteran.ID, Status: "awarded"})
	}

	stage := matching.NewFilterStage(store, matching.DefaultFilterRules(), quietLogger())
	got, err := stage.EligibleProducers(context.Background(), &d)
	if err != nil {
		t.Fatalf("EligibleProducers: %v", err)
	}
	var ids []int
	for _, p := range got {
		ids = append(ids, p.Profile.ID)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 5 {
		t.Fatalf("eligible producers = %v, want [1 5]", ids)
	}
	if len(got[0].Items) != 1 || len(got[0].Items[0].Periods) != 1 {
		t.Fatalf("eligibility data not loaded: %+v", got[0].Items)
	}
}

func TestFilterStage_EmptyPool(t *testing.T) {
	store := memstore.New()
	d := demandVersion(1, brasilia, line(productTomato, 100))
	stage := matching.NewFilterStage(store, matching.DefaultFilterRules(), nil)
	got, err := stage.EligibleProducers(context.Background(), &d)
	if err != nil || len(got) != 0 {
		t.Fatalf("EligibleProducers = (%v, %v), want empty", got, err)
	}
}
