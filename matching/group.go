package matching

import (
	"github.com/shopspring/decimal"
)

// RankedCandidate is a scored survivor of the filter stage.
type RankedCandidate struct {
	Producer *ProducerData
	Result   ScoreResult
	// RankScore is the score used for ordering: the context-adjusted score plus regional rules.
	RankScore float64
}

// GroupFormation is a complementary set of producers that together cover the demand.
type GroupFormation struct {
	Members        []RankedCandidate
	Covered        decimal.Decimal
	AggregateScore float64
}

// FormGroup walks the ranked list once, accumulating declared coverage until the
// demand is met. It never backtracks. A group needs at least two members.
func FormGroup(demand *DemandVersion, ranked []RankedCandidate) *GroupFormation {
	total := demand.TotalQuantity()
	if !total.IsPositive() {
		return nil
	}
	g := &GroupFormation{Covered: decimal.Zero}
	for _, c := range ranked {
		if !c.Result.CoveredQuantity.IsPositive() {
			continue
		}
		g.Members = append(g.Members, c)
		g.Covered = g.Covered.Add(c.Result.CoveredQuantity)
		if g.Covered.GreaterThanOrEqual(total) {
			break
		}
	}
	if g.Covered.LessThan(total) || len(g.Members) < 2 {
		return nil
	}
	sum := 0.0
	for _, m := range g.Members {
		sum += m.RankScore
	}
	g.AggregateScore = sum / float64(len(g.Members))
	return g
}

// Allocations splits every demand line across the members in member order.
func (g *GroupFormation) Allocations(demand *DemandVersion) []GroupAllocation {
	available := make([]map[int]decimal.Decimal, len(g.Members))
	for i, m := range g.Members {
		available[i] = make(map[int]decimal.Decimal, len(m.Result.CoveredByProduct))
		for pid, q := range m.Result.CoveredByProduct {
			available[i][pid] = q
		}
	}

	var out []GroupAllocation
	for _, line := range demand.Lines {
		remaining := line.Quantity
		for i, m := range g.Members {
			if !remaining.IsPositive() {
				break
			}
			q := decimal.Min(remaining, available[i][line.ProductID])
			if !q.IsPositive() {
				continue
			}
			available[i][line.ProductID] = available[i][line.ProductID].Sub(q)
			remaining = remaining.Sub(q)
			out = append(out, GroupAllocation{
				DemandLineID: line.ID,
				ProducerID:   m.Producer.Profile.ID,
				UnitID:       line.UnitID,
				Quantity:     q,
				Price:        basePrice(m.Producer, line.ProductID),
			})
		}
	}
	return out
}

func basePrice(p *ProducerData, productID int) *decimal.Decimal {
	for _, item := range p.Items {
		if item.ProductID == productID && item.BasePrice != nil {
			price := *item.BasePrice
			return &price
		}
	}
	return nil
}
