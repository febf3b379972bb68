package matching

import (
	"github.com/shopspring/decimal"
)

const (
	responseCeilingHours = 168.0

	fallbackCapacityWithItems   = 0.4
	fallbackHistory             = 0.35
	fallbackProximity           = 0.5
	fallbackResponseTime        = 0.5
	fallbackCertsProfileOK      = 0.4
	fallbackCertsProfilePending = 0.25
)

// ScoreResult is the full outcome of scoring one producer against one demand version.
type ScoreResult struct {
	DemandID        int
	DemandVersionID int
	ProducerID      int

	Breakdown  Breakdown
	BaseScore  float64
	Adjustment float64
	// Score is the base score plus context adjustments, clamped to [0,1].
	Score float64

	Confidence      float64
	ConfidenceLabel string
	Justification   string
	Strengths       []string
	Weaknesses      []string
	ContextNotes    []string

	DemandQuantity decimal.Decimal
	// CoveredQuantity only counts declared capacity; it is zero when capacity is unavailable.
	CoveredQuantity  decimal.Decimal
	CoveredByProduct map[int]decimal.Decimal
	DistanceKm       *float64

	DemandItemCount   int
	ProducerItemCount int
	ContextProvided   bool
}

// CoveragePercent is the share of the total demand the producer's declared capacity covers.
func (r *ScoreResult) CoveragePercent() float64 {
	if !r.DemandQuantity.IsPositive() {
		return 0
	}
	pct, _ := r.CoveredQuantity.Div(r.DemandQuantity).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// Score evaluates the six criteria for one producer. It is a pure function of its
// inputs; ctx is expected to be validated already.
func Score(demand *DemandVersion, producer *ProducerData, ctx *MatchContext) ScoreResult {
	res := ScoreResult{
		DemandID:          demand.DemandID,
		DemandVersionID:   demand.ID,
		ProducerID:        producer.Profile.ID,
		DemandQuantity:    demand.TotalQuantity(),
		DemandItemCount:   len(demand.ProductIDs()),
		ProducerItemCount: len(producer.Items),
		ContextProvided:   !ctx.IsEmpty(),
	}

	res.Breakdown.set(scoreProduct(demand, producer))
	capacity, covered, byProduct := scoreCapacity(demand, producer)
	res.Breakdown.set(capacity)
	res.CoveredQuantity = covered
	res.CoveredByProduct = byProduct
	res.Breakdown.set(scoreHistory(producer))
	proximity, distance := scoreProximity(demand, producer)
	res.Breakdown.set(proximity)
	res.DistanceKm = distance
	res.Breakdown.set(scoreResponseTime(producer))
	res.Breakdown.set(scoreCertifications(producer))

	res.BaseScore = res.Breakdown.BaseScore()
	res.Adjustment, res.ContextNotes = applyContext(&res.Breakdown, ctx)
	res.Score = clamp(res.BaseScore+res.Adjustment, 0, 1)

	res.Confidence, res.ConfidenceLabel = confidence(&res.Breakdown)
	res.Justification = justification(&res.Breakdown, res.Score)
	res.Strengths = strengths(&res.Breakdown)
	res.Weaknesses = weaknesses(&res.Breakdown)
	return res
}

func scoreProduct(demand *DemandVersion, producer *ProducerData) CriterionResult {
	demanded := demand.ProductIDs()
	offered := producer.ProductIDs()
	details := ProductDetails{DemandItems: len(demanded)}
	if len(demanded) == 0 || len(offered) == 0 {
		return CriterionResult{Kind: CriterionProduct, Score: 0, Available: false, Details: details}
	}
	for _, id := range demanded {
		if offered[id] {
			details.CoveredItems++
		}
	}
	return CriterionResult{
		Kind:      CriterionProduct,
		Score:     float64(details.CoveredItems) / float64(len(demanded)),
		Available: true,
		Details:   details,
	}
}

func scoreCapacity(demand *DemandVersion, producer *ProducerData) (CriterionResult, decimal.Decimal, map[int]decimal.Decimal) {
	total := demand.TotalQuantity()
	totalF := round(total.InexactFloat64(), 2)
	if !total.IsPositive() {
		return CriterionResult{Kind: CriterionCapacity, Score: 0, Available: false, Details: CapacityDetails{}}, decimal.Zero, nil
	}

	capacity := producer.CapacityByProduct()
	if len(capacity) == 0 {
		score := 0.0
		if len(producer.Items) > 0 {
			score = fallbackCapacityWithItems
		}
		// Without declared capacity the demand is assumed to be coverable.
		return CriterionResult{
			Kind:      CriterionCapacity,
			Score:     score,
			Available: false,
			Details:   CapacityDetails{DemandedQuantity: totalF, CoveredQuantity: totalF},
		}, decimal.Zero, nil
	}

	demanded := demand.QuantityByProduct()
	byProduct := make(map[int]decimal.Decimal, len(demanded))
	covered := decimal.Zero
	for _, id := range demand.ProductIDs() {
		c := decimal.Min(demanded[id], capacity[id])
		if !c.IsPositive() {
			continue
		}
		byProduct[id] = c
		covered = covered.Add(c)
	}
	ratio, _ := covered.Div(total).Float64()
	return CriterionResult{
		Kind:      CriterionCapacity,
		Score:     clamp(ratio, 0, 1),
		Available: true,
		Details:   CapacityDetails{DemandedQuantity: totalF, CoveredQuantity: round(covered.InexactFloat64(), 2)},
	}, covered, byProduct
}

func scoreHistory(producer *ProducerData) CriterionResult {
	stats := producer.Proposals
	details := HistoryDetails{TotalProposals: stats.Total, ClosedContracts: stats.ClosedContracts}
	if stats.Total <= 0 {
		return CriterionResult{Kind: CriterionHistory, Score: fallbackHistory, Available: false, Details: details}
	}
	return CriterionResult{
		Kind:      CriterionHistory,
		Score:     clamp(float64(stats.ClosedContracts)/float64(stats.Total), 0, 1),
		Available: true,
		Details:   details,
	}
}

func scoreProximity(demand *DemandVersion, producer *ProducerData) (CriterionResult, *float64) {
	distance := Distance(demand.Delivery, producer.Profile.Location)
	if distance == nil {
		return CriterionResult{Kind: CriterionProximity, Score: fallbackProximity, Available: false, Details: ProximityDetails{}}, nil
	}
	rounded := round(*distance, 1)
	return CriterionResult{
		Kind:      CriterionProximity,
		Score:     proximityTier(*distance),
		Available: true,
		Details:   ProximityDetails{DistanceKm: &rounded},
	}, distance
}

func scoreResponseTime(producer *ProducerData) CriterionResult {
	var sum float64
	var n int
	for _, c := range producer.Confirmations {
		if c.InvitedAt == nil || c.RespondedAt == nil {
			continue
		}
		hours := c.RespondedAt.Sub(*c.InvitedAt).Hours()
		if hours < 0 {
			hours = 0
		}
		sum += hours
		n++
	}
	if n == 0 {
		return CriterionResult{Kind: CriterionResponseTime, Score: fallbackResponseTime, Available: false, Details: ResponseTimeDetails{}}
	}
	mean := sum / float64(n)
	rounded := round(mean, 1)
	return CriterionResult{
		Kind:      CriterionResponseTime,
		Score:     clamp(1-mean/responseCeilingHours, 0, 1),
		Available: true,
		Details:   ResponseTimeDetails{AverageHours: &rounded},
	}
}

func scoreCertifications(producer *ProducerData) CriterionResult {
	docs := producer.Documents
	details := CertificationDetails{Evaluated: docs.Total, Approved: docs.Approved}
	if docs.Total <= 0 {
		score := fallbackCertsProfilePending
		if producer.Profile.Status == ProfileStatusComplete {
			score = fallbackCertsProfileOK
		}
		return CriterionResult{Kind: CriterionCertifications, Score: score, Available: false, Details: details}
	}
	return CriterionResult{
		Kind:      CriterionCertifications,
		Score:     clamp(float64(docs.Approved)/float64(docs.Total), 0, 1),
		Available: true,
		Details:   details,
	}
}
