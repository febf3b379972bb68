package models

import (
	"encoding/json"
	"time"

	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/shopspring/decimal"
)

type MatchExecution struct {
	ID              int                      `gorm:"primary_key" json:"id"`
	DemandVersionID int                      `gorm:"not null;index" json:"demand_version_id"`
	Trigger         matching.Trigger         `gorm:"size:20;not null" json:"trigger"`
	Status          matching.ExecutionStatus `gorm:"size:20;not null;index" json:"status"`
	ParametersJSON  []byte                   `gorm:"type:json" json:"parameters"`
	StartedAt       time.Time                `gorm:"not null" json:"started_at"`
	FinishedAt      *time.Time               `json:"finished_at"`
	CreatedByUserID *int                     `json:"created_by_user_id"`
	CorrelationId   string                   `gorm:"size:64;index" json:"correlation_id"`
}

func newMatchExecution(e *matching.Execution) *MatchExecution {
	return &MatchExecution{
		ID:              e.ID,
		DemandVersionID: e.DemandVersionID,
		Trigger:         e.Trigger,
		Status:          e.Status,
		ParametersJSON:  []byte(e.Parameters),
		StartedAt:       e.StartedAt,
		FinishedAt:      e.FinishedAt,
		CreatedByUserID: e.CreatedByUserID,
		CorrelationId:   e.CorrelationID,
	}
}

func (m *MatchExecution) toDomain() *matching.Execution {
	out := &matching.Execution{
		ID:              m.ID,
		DemandVersionID: m.DemandVersionID,
		Trigger:         m.Trigger,
		Status:          m.Status,
		StartedAt:       m.StartedAt,
		FinishedAt:      m.FinishedAt,
		CreatedByUserID: m.CreatedByUserID,
		CorrelationID:   m.CorrelationId,
	}
	if len(m.ParametersJSON) > 0 {
		out.Parameters = json.RawMessage(m.ParametersJSON)
	}
	return out
}

type MatchCandidate struct {
	ID               int                      `gorm:"primary_key" json:"id"`
	MatchExecutionID int                      `gorm:"not null;index" json:"match_execution_id"`
	Kind             matching.CandidateKind   `gorm:"size:10;not null" json:"kind"`
	ProducerID       *int                     `gorm:"index" json:"producer_id"`
	SupplierGroupID  *int                     `gorm:"index" json:"supplier_group_id"`
	Score            decimal.Decimal          `gorm:"type:decimal(7,2);not null" json:"score"`
	CoveragePercent  decimal.Decimal          `gorm:"type:decimal(7,2);not null" json:"coverage_percent"`
	ExplanationJSON  []byte                   `gorm:"type:json" json:"explanation"`
	Status           matching.CandidateStatus `gorm:"size:20;not null;default:active" json:"status"`
	CreatedAt        time.Time                `gorm:"autoCreateTime" json:"created_at"`
}

func newMatchCandidate(c *matching.Candidate) (*MatchCandidate, error) {
	explanation, err := json.Marshal(c.Explanation)
	if err != nil {
		return nil, err
	}
	return &MatchCandidate{
		MatchExecutionID: c.ExecutionID,
		Kind:             c.Kind,
		ProducerID:       c.ProducerID,
		SupplierGroupID:  c.SupplierGroupID,
		Score:            decimal.NewFromFloat(c.Score).Round(2),
		CoveragePercent:  decimal.NewFromFloat(c.CoveragePercent).Round(2),
		ExplanationJSON:  explanation,
		Status:           c.Status,
	}, nil
}

func (m *MatchCandidate) toDomain() (matching.Candidate, error) {
	out := matching.Candidate{
		ID:              m.ID,
		ExecutionID:     m.MatchExecutionID,
		Kind:            m.Kind,
		ProducerID:      m.ProducerID,
		SupplierGroupID: m.SupplierGroupID,
		Score:           m.Score.InexactFloat64(),
		CoveragePercent: m.CoveragePercent.InexactFloat64(),
		Status:          m.Status,
	}
	if len(m.ExplanationJSON) > 0 {
		if err := json.Unmarshal(m.ExplanationJSON, &out.Explanation); err != nil {
			return out, err
		}
	}
	return out, nil
}

type SupplierGroup struct {
	ID               int                  `gorm:"primary_key" json:"id"`
	DemandVersionID  int                  `gorm:"not null;index" json:"demand_version_id"`
	MatchExecutionID int                  `gorm:"not null;index" json:"match_execution_id"`
	Name             string               `gorm:"size:255;not null" json:"name"`
	Status           matching.GroupStatus `gorm:"size:20;not null;default:forming" json:"status"`
	CreatedAt        time.Time            `gorm:"autoCreateTime" json:"created_at"`
	Members          []GroupMember        `gorm:"foreignKey:SupplierGroupID" json:"members"`
	Allocations      []GroupAllocation    `gorm:"foreignKey:SupplierGroupID" json:"allocations"`
}

type GroupMember struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	SupplierGroupID int                 `gorm:"not null;uniqueIndex:idx_group_member,priority:1" json:"supplier_group_id"`
	ProducerID      int                 `gorm:"not null;uniqueIndex:idx_group_member,priority:2" json:"producer_id"`
	Role            matching.MemberRole `gorm:"size:10;not null;default:member" json:"role"`
}

type GroupAllocation struct {
	ID              int              `gorm:"primary_key" json:"id"`
	SupplierGroupID int              `gorm:"not null;index" json:"supplier_group_id"`
	DemandLineID    int              `gorm:"not null;index" json:"demand_line_id"`
	ProducerID      int              `gorm:"not null;index" json:"producer_id"`
	UnitID          int              `gorm:"not null" json:"unit_id"`
	Quantity        decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Price           *decimal.Decimal `gorm:"type:decimal(20,4)" json:"price"`
}

func newSupplierGroup(g *matching.SupplierGroup) *SupplierGroup {
	out := &SupplierGroup{
		DemandVersionID:  g.DemandVersionID,
		MatchExecutionID: g.ExecutionID,
		Name:             g.Name,
		Status:           g.Status,
	}
	for _, m := range g.Members {
		out.Members = append(out.Members, GroupMember{ProducerID: m.ProducerID, Role: m.Role})
	}
	for _, a := range g.Allocations {
		out.Allocations = append(out.Allocations, GroupAllocation{
			DemandLineID: a.DemandLineID,
			ProducerID:   a.ProducerID,
			UnitID:       a.UnitID,
			Quantity:     a.Quantity,
			Price:        a.Price,
		})
	}
	return out
}
