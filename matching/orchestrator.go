package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/agromatch_backend/appctx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultAlternativesLimit = 5

	sameCityBonus  = 0.10
	nearbyBonus    = 0.05
	nearbyRadiusKm = 50.0
)

// RunLocker guards a demand version against concurrent runs. Lock returns
// ErrExecutionInProgress when another run holds the lock.
type RunLocker interface {
	Lock(ctx context.Context, demandVersionID int) (unlock func(), err error)
}

type Settings struct {
	Filter            FilterRules
	AlternativesLimit int
	// RegionalBonus adds the same-city and nearby bonuses to the ranking score.
	RegionalBonus bool
}

func DefaultSettings() Settings {
	return Settings{
		Filter:            DefaultFilterRules(),
		AlternativesLimit: DefaultAlternativesLimit,
		RegionalBonus:     true,
	}
}

// Orchestrator runs filter, scoring, ranking, strategy selection and persistence
// for one demand version, and owns the execution state machine.
type Orchestrator struct {
	Store    Store
	Settings Settings
	Logger   *logrus.Logger
	Locker   RunLocker
	Tracer   trace.Tracer
	Now      func() time.Time
}

func NewOrchestrator(store Store, settings Settings, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		Store:    store,
		Settings: settings,
		Logger:   logger,
		Tracer:   otel.Tracer("agromatch/matching"),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs one match execution. An unknown demand version returns
// ErrNotFound without creating an execution. Any later failure rolls back the
// run, marks the execution failed and is returned as *ExecutionError.
func (o *Orchestrator) Execute(ctx context.Context, demandVersionID int, trigger Trigger) (*MatchResult, error) {
	ctx, span := o.Tracer.Start(ctx, "match.execute", trace.WithAttributes(
		attribute.Int("demand_version_id", demandVersionID),
		attribute.String("trigger", string(trigger)),
	))
	defer span.End()

	if !trigger.IsValid() {
		return nil, NewValidationError(fmt.Sprintf("invalid trigger %q", trigger))
	}
	demand, err := o.Store.GetDemandVersion(ctx, demandVersionID)
	if err != nil {
		return nil, err
	}

	if o.Locker != nil {
		unlock, err := o.Locker.Lock(ctx, demandVersionID)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	exec := &Execution{
		DemandVersionID: demandVersionID,
		Trigger:         trigger,
		Status:          ExecutionStatusRunning,
		StartedAt:       o.Now(),
	}
	if uid, ok := appctx.GetInt(ctx, appctx.ContextKeyUserId); ok && uid > 0 {
		exec.CreatedByUserID = &uid
	}
	exec.CorrelationID, _ = appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
	if err := o.Store.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("execution_id", exec.ID))

	logger := o.Logger.WithFields(logrus.Fields{
		"field":             "MatchOrchestrator",
		"execution_id":      exec.ID,
		"demand_version_id": demandVersionID,
		"correlation_id":    exec.CorrelationID,
	})
	logger.Info("match execution started")

	var result *MatchResult
	err = o.Store.WithinTransaction(ctx, func(tx Store) (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("panic during match execution: %v", r)
			}
		}()
		result, runErr = o.run(ctx, tx, demand, exec)
		return runErr
	})
	if err != nil {
		o.fail(ctx, exec, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithField("error", err.Error()).Error("match execution failed")
		return nil, &ExecutionError{ExecutionID: exec.ID, Err: err}
	}

	span.SetAttributes(attribute.String("match_status", string(result.Status)))
	logger.WithFields(logrus.Fields{
		"status":   result.Status,
		"eligible": result.EligibleCount,
		"options":  len(result.Options),
	}).Info("match execution completed")
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, tx Store, demand *DemandVersion, exec *Execution) (*MatchResult, error) {
	survivors, err := NewFilterStage(tx, o.Settings.Filter, o.Logger).EligibleProducers(ctx, demand)
	if err != nil {
		return nil, fmt.Errorf("filter stage: %w", err)
	}
	if err := LoadScoringData(ctx, tx, survivors); err != nil {
		return nil, fmt.Errorf("load scoring data: %w", err)
	}

	ranked := o.rank(demand, survivors)
	result := &MatchResult{
		ExecutionID:     exec.ID,
		DemandID:        demand.DemandID,
		DemandVersionID: demand.ID,
		Options:         []MatchOption{},
		Alternatives:    []MatchOption{},
		Substitutions:   []SubstitutionSuggestion{},
		EligibleCount:   len(ranked),
	}

	var singles []RankedCandidate
	for _, c := range ranked {
		if coversDemand(c.Result) {
			singles = append(singles, c)
			result.Options = append(result.Options, individualOption(c))
		}
	}

	group := FormGroup(demand, ranked)
	var allocations []GroupAllocation
	if group != nil {
		allocations = group.Allocations(demand)
		result.Options = append(result.Options, groupOption(demand, group, allocations))
	}

	var partials []RankedCandidate
	if len(singles) == 0 {
		for _, c := range ranked {
			if len(partials) >= o.Settings.AlternativesLimit {
				break
			}
			if c.Result.CoveredQuantity.IsPositive() {
				partials = append(partials, c)
				result.Alternatives = append(result.Alternatives, individualOption(c))
			}
		}
	}

	switch {
	case len(singles) > 0:
		result.Status = MatchStatusFound
	case group != nil:
		result.Status = MatchStatusGroup
	case len(partials) > 0:
		result.Status = MatchStatusPartial
	default:
		result.Status = MatchStatusNone
	}
	result.CoveragePercent = bestCoverage(result)

	if result.Substitutions, err = o.suggestSubstitutions(ctx, tx, demand, ranked); err != nil {
		return nil, fmt.Errorf("load substitutions: %w", err)
	}

	if err := o.persist(ctx, tx, demand, exec, singles, partials, group, allocations); err != nil {
		return nil, err
	}

	params, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	finished := o.Now()
	exec.Status = ExecutionStatusCompleted
	exec.FinishedAt = &finished
	exec.Parameters = params
	if err := tx.FinishExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("finish execution: %w", err)
	}
	if err := tx.EnqueueEvent(ctx, o.event(exec, EventExecutionCompleted)); err != nil {
		return nil, fmt.Errorf("enqueue event: %w", err)
	}
	return result, nil
}

// rank scores every survivor and sorts by rank score, ties by producer id.
func (o *Orchestrator) rank(demand *DemandVersion, survivors []*ProducerData) []RankedCandidate {
	ranked := make([]RankedCandidate, 0, len(survivors))
	for _, p := range survivors {
		res := Score(demand, p, nil)
		rankScore := res.Score
		if o.Settings.RegionalBonus {
			rankScore = clamp(rankScore+regionalBonus(demand, p, &res), 0, 1)
		}
		ranked = append(ranked, RankedCandidate{Producer: p, Result: res, RankScore: rankScore})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RankScore != ranked[j].RankScore {
			return ranked[i].RankScore > ranked[j].RankScore
		}
		return ranked[i].Producer.Profile.ID < ranked[j].Producer.Profile.ID
	})
	return ranked
}

func regionalBonus(demand *DemandVersion, p *ProducerData, res *ScoreResult) float64 {
	bonus := 0.0
	if SameCity(demand.Delivery, p.Profile.Location) {
		bonus += sameCityBonus
	}
	if res.DistanceKm != nil && *res.DistanceKm <= nearbyRadiusKm {
		bonus += nearbyBonus
	}
	return bonus
}

func coversDemand(r ScoreResult) bool {
	return r.DemandQuantity.IsPositive() && r.CoveredQuantity.GreaterThanOrEqual(r.DemandQuantity)
}

func individualOption(c RankedCandidate) MatchOption {
	return MatchOption{
		Kind:               OptionKindIndividual,
		AggregateScore:     round(c.RankScore*100, 2),
		CoveragePercent:    round(c.Result.CoveragePercent(), 2),
		Producers:          []OptionProducer{optionProducer(c, c.Result.Justification)},
		EstimatedTotalCost: estimatedCost([]RankedCandidate{c}, []map[int]decimal.Decimal{c.Result.CoveredByProduct}),
	}
}

func groupOption(demand *DemandVersion, g *GroupFormation, allocations []GroupAllocation) MatchOption {
	producers := make([]OptionProducer, 0, len(g.Members))
	quantities := make([]map[int]decimal.Decimal, len(g.Members))
	position := make(map[int]int, len(g.Members))
	for i, m := range g.Members {
		producers = append(producers, optionProducer(m, groupMemberJustification))
		quantities[i] = map[int]decimal.Decimal{}
		position[m.Producer.Profile.ID] = i
	}
	productOf := make(map[int]int, len(demand.Lines))
	for _, line := range demand.Lines {
		productOf[line.ID] = line.ProductID
	}
	allocated := make(map[int]decimal.Decimal, len(demand.Lines))
	for _, a := range allocations {
		i := position[a.ProducerID]
		pid := productOf[a.DemandLineID]
		quantities[i][pid] = quantities[i][pid].Add(a.Quantity)
		allocated[a.DemandLineID] = allocated[a.DemandLineID].Add(a.Quantity)
	}
	var unallocated []int
	for _, line := range demand.Lines {
		if allocated[line.ID].LessThan(line.Quantity) {
			unallocated = append(unallocated, line.ID)
		}
	}

	coverage, _ := g.Covered.Div(demand.TotalQuantity()).Mul(decimal.NewFromInt(100)).Float64()
	return MatchOption{
		Kind:               OptionKindGroup,
		AggregateScore:     round(g.AggregateScore*100, 2),
		CoveragePercent:    round(clamp(coverage, 0, 100), 2),
		Producers:          producers,
		EstimatedTotalCost: estimatedCost(g.Members, quantities),
		UnallocatedLines:   unallocated,
	}
}

func bestCoverage(r *MatchResult) float64 {
	options := r.Options
	if len(options) == 0 {
		options = r.Alternatives
	}
	best := 0.0
	for _, opt := range options {
		if opt.CoveragePercent > best {
			best = opt.CoveragePercent
		}
	}
	return best
}

// suggestSubstitutions lists catalog equivalences for demanded products no
// eligible producer can fully supply alone.
func (o *Orchestrator) suggestSubstitutions(ctx context.Context, tx Store, demand *DemandVersion, ranked []RankedCandidate) ([]SubstitutionSuggestion, error) {
	demanded := demand.QuantityByProduct()
	var uncovered []int
	for _, pid := range demand.ProductIDs() {
		covered := false
		for _, c := range ranked {
			if c.Result.CoveredByProduct[pid].GreaterThanOrEqual(demanded[pid]) {
				covered = true
				break
			}
		}
		if !covered {
			uncovered = append(uncovered, pid)
		}
	}
	out := []SubstitutionSuggestion{}
	if len(uncovered) == 0 {
		return out, nil
	}
	subs, err := tx.GetSubstitutions(ctx, uncovered)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		out = append(out, SubstitutionSuggestion{
			ProductID:    s.FromProductID,
			SubstituteID: s.ToProductID,
			Reason:       s.Reason,
			Notes:        s.Notes,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].SubstituteID < out[j].SubstituteID
	})
	return out, nil
}

func (o *Orchestrator) persist(ctx context.Context, tx Store, demand *DemandVersion, exec *Execution,
	singles, partials []RankedCandidate, group *GroupFormation, allocations []GroupAllocation) error {

	var candidates []*Candidate
	for _, c := range singles {
		candidates = append(candidates, singleCandidate(exec.ID, c))
	}

	if group != nil {
		sg := &SupplierGroup{
			DemandVersionID: demand.ID,
			ExecutionID:     exec.ID,
			Name:            fmt.Sprintf("Grupo demanda %d v%d", demand.DemandID, demand.VersionNumber),
			Status:          GroupStatusForming,
			Allocations:     allocations,
		}
		names := make([]string, 0, len(group.Members))
		ids := make([]int, 0, len(group.Members))
		for i, m := range group.Members {
			role := MemberRoleMember
			if i == 0 {
				role = MemberRoleLeader
			}
			sg.Members = append(sg.Members, GroupMember{ProducerID: m.Producer.Profile.ID, Role: role})
			names = append(names, m.Producer.Profile.DisplayName())
			ids = append(ids, m.Producer.Profile.ID)
		}
		if err := tx.PersistGroup(ctx, sg); err != nil {
			return fmt.Errorf("persist group: %w", err)
		}
		groupID := sg.ID
		coverage, _ := group.Covered.Div(demand.TotalQuantity()).Mul(decimal.NewFromInt(100)).Float64()
		candidates = append(candidates, &Candidate{
			ExecutionID:     exec.ID,
			Kind:            CandidateKindGroup,
			SupplierGroupID: &groupID,
			Score:           round(group.AggregateScore*100, 2),
			CoveragePercent: round(clamp(coverage, 0, 100), 2),
			Explanation:     CandidateExplanation{Members: names, ProducerIDs: ids},
			Status:          CandidateStatusActive,
		})
	}

	for _, c := range partials {
		candidates = append(candidates, singleCandidate(exec.ID, c))
	}
	if len(candidates) == 0 {
		return nil
	}
	if err := tx.PersistCandidates(ctx, candidates); err != nil {
		return fmt.Errorf("persist candidates: %w", err)
	}
	return nil
}

func singleCandidate(executionID int, c RankedCandidate) *Candidate {
	pid := c.Producer.Profile.ID
	return &Candidate{
		ExecutionID:     executionID,
		Kind:            CandidateKindSingle,
		ProducerID:      &pid,
		Score:           round(c.RankScore*100, 2),
		CoveragePercent: round(c.Result.CoveragePercent(), 2),
		Explanation:     CandidateExplanation{Justification: c.Result.Justification},
		Status:          CandidateStatusActive,
	}
}

// fail records the failure outside the rolled-back run transaction.
func (o *Orchestrator) fail(ctx context.Context, exec *Execution, cause error) {
	ctx = context.WithoutCancel(ctx)
	finished := o.Now()
	params, _ := json.Marshal(map[string]string{"error": cause.Error()})
	exec.Status = ExecutionStatusFailed
	exec.FinishedAt = &finished
	exec.Parameters = params

	err := o.Store.WithinTransaction(ctx, func(tx Store) error {
		if err := tx.FinishExecution(ctx, exec); err != nil {
			return err
		}
		return tx.EnqueueEvent(ctx, o.event(exec, EventExecutionFailed))
	})
	if err != nil {
		o.Logger.WithFields(logrus.Fields{
			"field":        "MatchOrchestrator",
			"execution_id": exec.ID,
		}).Error("could not record failed execution: " + err.Error())
	}
}

func (o *Orchestrator) event(exec *Execution, kind string) ExecutionEvent {
	occurred := o.Now()
	if exec.FinishedAt != nil {
		occurred = *exec.FinishedAt
	}
	return ExecutionEvent{
		Type:            kind,
		ExecutionID:     exec.ID,
		DemandVersionID: exec.DemandVersionID,
		Status:          string(exec.Status),
		Trigger:         string(exec.Trigger),
		CorrelationID:   exec.CorrelationID,
		OccurredAt:      occurred,
	}
}
