package matching_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mmdatafocus/agromatch_backend/appctx"
	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/mmdatafocus/agromatch_backend/matching/memstore"
	"github.com/shopspring/decimal"
)

func TestExecute_IndividualMatch(t *testing.T) {
	store := memstore.New()
	store.AddDemand(demandVersion(1, brasilia, line(productTomato, 100)))
	store.AddProducer(producer(1, goiania), item(11, productTomato, 150))

	ctx := appctx.Set(context.Background(), appctx.ContextKeyCorrelationId, "corr-1")
	ctx = appctx.Set(ctx, appctx.ContextKeyUserId, 42)
	res, err := newOrchestrator(store).Execute(ctx, 1, matching.TriggerManualAPI)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != matching.MatchStatusFound {
		t.Fatalf("status = %s, want %s", res.Status, matching.MatchStatusFound)
	}
	if len(res.Options) != 1 || res.Options[0].Kind != matching.OptionKindIndividual {
		t.Fatalf("options = %+v", res.Options)
	}
	prod := res.Options[0].Producers[0]
	if prod.PercentOfDemand != 100 || prod.QuantityProvided != 100 || prod.ID != 1 {
		t.Fatalf("option producer = %+v", prod)
	}
	if res.CoveragePercent < 100 || res.EligibleCount != 1 || len(res.Alternatives) != 0 {
		t.Fatalf("result = %+v", res)
	}

	if len(store.Executions) != 1 {
		t.Fatalf("executions = %d", len(store.Executions))
	}
	exec := store.Executions[0]
	if exec.Status != matching.ExecutionStatusCompleted || exec.FinishedAt == nil || exec.Trigger != matching.TriggerManualAPI {
		t.Fatalf("execution = %+v", exec)
	}
	if exec.CorrelationID != "corr-1" || exec.CreatedByUserID == nil || *exec.CreatedByUserID != 42 {
		t.Fatalf("execution metadata = %+v", exec)
	}
	var params map[string]any
	if err := json.Unmarshal(exec.Parameters, &params); err != nil || params["status"] != "match_encontrado" {
		t.Fatalf("parameters = %s (%v)", exec.Parameters, err)
	}

	if len(store.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(store.Candidates))
	}
	c := store.Candidates[0]
	if c.Kind != matching.CandidateKindSingle || c.ProducerID == nil || *c.ProducerID != 1 || c.CoveragePercent != 100 || c.ExecutionID != exec.ID {
		t.Fatalf("candidate = %+v", c)
	}
	if len(store.Groups) != 0 {
		t.Fatalf("no group expected when a producer covers alone")
	}
	if len(store.Events) != 1 || store.Events[0].Type != matching.EventExecutionCompleted || store.Events[0].CorrelationID != "corr-1" {
		t.Fatalf("events = %+v", store.Events)
	}
}

func TestExecute_GroupFormed(t *testing.T) {
	store := memstore.New()
	store.AddDemand(demandVersion(1, brasilia, line(productTomato, 100)))
	price := decimal.NewFromInt(3)
	first := item(11, productTomato, 60)
	first.BasePrice = &price
	store.AddProducer(producer(1, brasilia), first)
	store.AddProducer(producer(2, goiania), item(21, productTomato, 50))

	res, err := newOrchestrator(store).Execute(context.Background(), 1, matching.TriggerAuto)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != matching.MatchStatusGroup {
		t.Fatalf("status = %s, want %s", res.Status, matching.MatchStatusGroup)
	}
	for _, opt := range res.Options {
		if opt.Kind == matching.OptionKindIndividual {
			t.Fatalf("no individual option expected: %+v", opt)
		}
	}
	if len(res.Options) != 1 || len(res.Options[0].Producers) != 2 || res.Options[0].CoveragePercent != 100 {
		t.Fatalf("group option = %+v", res.Options)
	}
	if res.Options[0].EstimatedTotalCost != nil {
		t.Fatalf("cost must be unknown when a member has no price: %v", *res.Options[0].EstimatedTotalCost)
	}
	if len(res.Options[0].UnallocatedLines) != 0 {
		t.Fatalf("unallocated lines = %v, want none", res.Options[0].UnallocatedLines)
	}

	if len(store.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(store.Groups))
	}
	g := store.Groups[0]
	if g.Status != matching.GroupStatusForming || len(g.Members) != 2 || g.Members[0].Role != matching.MemberRoleLeader {
		t.Fatalf("group = %+v", g)
	}
	total := decimal.Zero
	for _, a := range g.Allocations {
		total = total.Add(a.Quantity)
	}
	if !total.Equal(qty(100)) {
		t.Fatalf("allocated %s, want 100", total)
	}

	var groupCandidates, singleCandidates int
	for _, c := range store.Candidates {
		switch c.Kind {
		case matching.CandidateKindGroup:
			groupCandidates++
			if c.SupplierGroupID == nil || *c.SupplierGroupID != g.ID || len(c.Explanation.ProducerIDs) != 2 {
				t.Fatalf("group candidate = %+v", c)
			}
		case matching.CandidateKindSingle:
			singleCandidates++
		}
	}
	if groupCandidates != 1 || singleCandidates != 2 {
		t.Fatalf("candidates: group=%d single=%d, want 1 and 2 partial alternatives", groupCandidates, singleCandidates)
	}
}

func TestExecute_GroupListsUnallocatedLines(t *testing.T) {
	store := memstore.New()
	store.AddDemand(demandVersion(1, brasilia, line(productTomato, 100), line(productLettuce, 100)))
	store.AddProducer(producer(1, brasilia), item(11, productTomato, 150))
	store.AddProducer(producer(2, goiania), item(21, productTomato, 150))

	res, err := newOrchestrator(store).Execute(context.Background(), 1, matching.TriggerAuto)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != matching.MatchStatusGroup {
		t.Fatalf("status = %s, want %s", res.Status, matching.MatchStatusGroup)
	}
	var group *matching.MatchOption
	for i := range res.Options {
		if res.Options[i].Kind == matching.OptionKindGroup {
			group = &res.Options[i]
		}
	}
	if group == nil {
		t.Fatalf("no group option in %+v", res.Options)
	}
	if group.CoveragePercent != 100 {
		t.Fatalf("coverage = %v, want 100 from declared totals", group.CoveragePercent)
	}
	if len(group.UnallocatedLines) != 1 || group.UnallocatedLines[0] != 102 {
		t.Fatalf("unallocated lines = %v, want [102]", group.UnallocatedLines)
	}

	allocated := decimal.Zero
	for _, a := range store.Groups[0].Allocations {
		if a.DemandLineID == 102 {
			t.Fatalf("lettuce line allocated: %+v", a)
		}
		allocated = allocated.Add(a.Quantity)
	}
	if !allocated.Equal(qty(100)) {
		t.Fatalf("allocated %s, want 100", allocated)
	}
}

func TestExecute_PartialAndNoMatch(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		store := memstore.New()
		store.AddDemand(demandVersion(1, brasilia, line(productTomato, 100)))
		store.AddProducer(producer(1, brasilia), item(11, productTomato, 30))
		store.Substitutions = []matching.Substitution{
			{FromProductID: productTomato, ToProductID: productPotato, Reason: "mesmo grupo"},
			{FromProductID: productLettuce, ToProductID: productPotato},
		}

		res, err := newOrchestrator(store).Execute(context.Background(), 1, matching.TriggerManual)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if res.Status != matching.MatchStatusPartial || len(res.Alternatives) != 1 || len(res.Options) != 0 {
			t.Fatalf("result = %+v", res)
		}
		if res.CoveragePercent != 30 {
			t.Fatalf("coverage = %v, want 30", res.CoveragePercent)
		}
		if len(res.Substitutions) != 1 || res.Substitutions[0].SubstituteID != productPotato {
			t.Fatalf("substitutions = %+v", res.Substitutions)
		}
	})

	t.Run("no eligible producers", func(t *testing.T) {
		store := memstore.New()
		store.AddDemand(demandVersion(1, brasilia, line(productTomato, 100)))
		store.AddProducer(producer(1, saoPaulo), item(11, productTomato, 300))

		res, err := newOrchestrator(store).Execute(context.Background(), 1, matching.TriggerManual)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if res.Status != matching.MatchStatusNone || res.EligibleCount != 0 || res.CoveragePercent != 0 {
			t.Fatalf("result = %+v", res)
		}
		if store.Executions[0].Status != matching.ExecutionStatusCompleted || len(store.Candidates) != 0 {
			t.Fatalf("execution = %+v, candidates = %d", store.Executions[0], len(store.Candidates))
		}
	})
}

func TestExecute_RankingAppliesRegionalBonus(t *testing.T) {
	store := memstore.New()
	store.AddDemand(demandVersion(1, brasilia, line(productTomato, 100)))
	near := producer(2, brasilia)
	near.Location.City = "Brasilia"
	store.AddProducer(producer(1, goiania), item(11, productTomato, 100))
	store.AddProducer(near, item(21, productTomato, 100))

	o := newOrchestrator(store)
	res, err := o.Execute(context.Background(), 1, matching.TriggerManual)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Options) != 2 || res.Options[0].Producers[0].ID != 2 {
		t.Fatalf("expected nearby producer first, got %+v", res.Options)
	}
	withBonus := res.Options[0].AggregateScore

	o.Settings.RegionalBonus = false
	res, err = o.Execute(context.Background(), 1, matching.TriggerManual)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Options[0].Producers[0].ID != 2 || res.Options[0].AggregateScore >= withBonus {
		t.Fatalf("bonus should raise the rank score: %v vs %v", res.Options[0].AggregateScore, withBonus)
	}
}

func TestExecute_UnknownDemandVersion(t *testing.T) {
	store := memstore.New()
	_, err := newOrchestrator(store).Execute(context.Background(), 99, matching.TriggerManual)
	if !errors.Is(err, matching.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(store.Executions) != 0 || len(store.Events) != 0 {
		t.Fatalf("nothing should be persisted for an unknown version")
	}
}

func TestExecute_InvalidTrigger(t *testing.T) {
	store := memstore.New()
	store.AddDemand(demandVersion(1, brasilia, line(productTomato, 100)))
	_, err := newOrchestrator(store).Execute(context.Background(), 1, matching.Trigger("cron"))
	var verr *matching.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(store.Executions) != 0 {
		t.Fatalf("no execution expected")
	}
}

func TestExecute_FailureRollsBack(t *testing.T) {
	store := memstore.New()
	store.AddDemand(demandVersion(1, brasilia, line(productTomato, 100)))
	store.AddProducer(producer(1, brasilia), item(11, productTomato, 60))
	store.AddProducer(producer(2, goiania), item(21, productTomato, 50))
	cause := errors.New("disk full")
	store.FailPersistCandidates = cause

	_, err := newOrchestrator(store).Execute(context.Background(), 1, matching.TriggerAuto)
	var execErr *matching.ExecutionError
	if !errors.As(err, &execErr) || !errors.Is(err, cause) {
		t.Fatalf("err = %v, want ExecutionError wrapping the cause", err)
	}
	if len(store.Executions) != 1 || execErr.ExecutionID != store.Executions[0].ID {
		t.Fatalf("executions = %+v", store.Executions)
	}
	exec := store.Executions[0]
	if exec.Status != matching.ExecutionStatusFailed || exec.FinishedAt == nil {
		t.Fatalf("execution = %+v, want failed", exec)
	}
	var params map[string]string
	if err := json.Unmarshal(exec.Parameters, &params); err != nil || params["error"] == "" {
		t.Fatalf("parameters = %s", exec.Parameters)
	}
	if len(store.Candidates) != 0 || len(store.Groups) != 0 {
		t.Fatalf("partial results survived: %d candidates, %d groups", len(store.Candidates), len(store.Groups))
	}
	if len(store.Events) != 1 || store.Events[0].Type != matching.EventExecutionFailed {
		t.Fatalf("events = %+v", store.Events)
	}
}

type busyLocker struct {
	mu   sync.Mutex
	held map[int]bool
}

func (l *busyLocker) Lock(_ context.Context, id int) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[id] {
		return nil, matching.ErrExecutionInProgress
	}
	l.held[id] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, id)
	}, nil
}

func TestExecute_Locker(t *testing.T) {
	store := memstore.New()
	store.AddDemand(demandVersion(1, brasilia, line(productTomato, 100)))
	locker := &busyLocker{held: map[int]bool{1: true}}
	o := newOrchestrator(store)
	o.Locker = locker

	if _, err := o.Execute(context.Background(), 1, matching.TriggerManual); !errors.Is(err, matching.ErrExecutionInProgress) {
		t.Fatalf("err = %v, want ErrExecutionInProgress", err)
	}
	if len(store.Executions) != 0 {
		t.Fatalf("a locked run must not create an execution")
	}

	delete(locker.held, 1)
	if _, err := o.Execute(context.Background(), 1, matching.TriggerManual); err != nil {
		t.Fatalf("Execute after release: %v", err)
	}
	if locker.held[1] {
		t.Fatalf("lock not released after the run")
	}
}

func TestScoreProducer(t *testing.T) {
	store := memstore.New()
	store.AddDemand(demandVersion(1, nil, line(productTomato, 100)))
	store.AddProducer(producer(1, nil), item(11, productTomato, 150))
	store.Proposals = []memstore.Proposal{{ProducerID: 1, Status: "submitted"}, {ProducerID: 1, Status: "submitted"}}
	store.Contracts = []memstore.Contract{{ProducerID: 1, Status: "signed"}, {ProducerID: 1, Status: "draft"}}
	store.Documents = []memstore.Document{{ProducerID: 1, Status: "approved"}, {ProducerID: 1, Status: "rejected"}}
	o := newOrchestrator(store)

	res, err := o.ScoreProducer(context.Background(), 1, 1, nil)
	if err != nil {
		t.Fatalf("ScoreProducer: %v", err)
	}
	if h := res.Breakdown.Get(matching.CriterionHistory); h.Score != 0.5 || !h.Available {
		t.Fatalf("history = %+v", h)
	}
	if c := res.Breakdown.Get(matching.CriterionCertifications); c.Score != 0.5 || !c.Available {
		t.Fatalf("certifications = %+v", c)
	}
	if p := res.Breakdown.Get(matching.CriterionProximity); p.Score != 0.5 || p.Available {
		t.Fatalf("proximity = %+v", p)
	}

	if _, err := o.ScoreProducer(context.Background(), 1, 77, nil); !errors.Is(err, matching.ErrNotFound) {
		t.Fatalf("unknown producer: err = %v", err)
	}
	if _, err := o.ScoreProducer(context.Background(), 77, 1, nil); !errors.Is(err, matching.ErrNotFound) {
		t.Fatalf("unknown demand: err = %v", err)
	}
	var verr *matching.ValidationError
	if _, err := o.ScoreProducer(context.Background(), 77, 1, &matching.MatchContext{Urgency: "agora"}); !errors.As(err, &verr) {
		t.Fatalf("invalid context must fail before lookups: err = %v", err)
	}
	if len(store.Executions) != 0 {
		t.Fatalf("scoring must not create executions")
	}
}

func TestGetExecutionRecord(t *testing.T) {
	store := memstore.New()
	store.AddDemand(demandVersion(1, brasilia, line(productTomato, 100)))
	store.AddProducer(producer(1, brasilia), item(11, productTomato, 100))
	o := newOrchestrator(store)
	res, err := o.Execute(context.Background(), 1, matching.TriggerManual)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	rec, err := o.GetExecutionRecord(context.Background(), res.ExecutionID)
	if err != nil {
		t.Fatalf("GetExecutionRecord: %v", err)
	}
	if rec.Execution.ID != res.ExecutionID || len(rec.Candidates) != 1 {
		t.Fatalf("record = %+v", rec)
	}
	if _, err := o.GetExecutionRecord(context.Background(), 999); !errors.Is(err, matching.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
