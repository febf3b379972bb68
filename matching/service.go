package matching

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ScoreProducer scores one producer against one demand version. The context is
// validated before anything is read.
func (o *Orchestrator) ScoreProducer(ctx context.Context, demandVersionID, producerID int, mctx *MatchContext) (*ScoreResult, error) {
	ctx, span := o.Tracer.Start(ctx, "match.score", trace.WithAttributes(
		attribute.Int("demand_version_id", demandVersionID),
		attribute.Int("producer_id", producerID),
	))
	defer span.End()

	if err := mctx.Validate(); err != nil {
		return nil, err
	}
	demand, err := o.Store.GetDemandVersion(ctx, demandVersionID)
	if err != nil {
		return nil, err
	}
	profile, err := o.Store.GetProducer(ctx, producerID)
	if err != nil {
		return nil, err
	}
	data, err := LoadProducerData(ctx, o.Store, *profile)
	if err != nil {
		return nil, err
	}
	res := Score(demand, data, mctx)
	return &res, nil
}

// ExecutionRecord is an execution together with the candidates it produced.
type ExecutionRecord struct {
	Execution  *Execution  `json:"execucao"`
	Candidates []Candidate `json:"candidatos"`
}

func (o *Orchestrator) GetExecutionRecord(ctx context.Context, executionID int) (*ExecutionRecord, error) {
	exec, err := o.Store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	candidates, err := o.Store.ListCandidates(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if candidates == nil {
		candidates = []Candidate{}
	}
	return &ExecutionRecord{Execution: exec, Candidates: candidates}, nil
}
