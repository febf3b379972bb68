package models

import (
	"time"

	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/shopspring/decimal"
)

type ProducerProfile struct {
	ID           int                    `gorm:"primary_key" json:"id"`
	UserID       int                    `gorm:"not null;uniqueIndex" json:"user_id"`
	User         *User                  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status       matching.ProfileStatus `gorm:"size:20;not null;default:incomplete;index" json:"status"`
	ProducerKind string                 `gorm:"size:40" json:"producer_kind"`
	Document     string                 `gorm:"size:20" json:"document"`
	AddressJSON  []byte                 `gorm:"type:json" json:"address"`
	CreatedAt    time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *ProducerProfile) toDomain() matching.ProducerProfile {
	out := matching.ProducerProfile{
		ID:       p.ID,
		UserID:   p.UserID,
		Status:   p.Status,
		Kind:     p.ProducerKind,
		Location: decodeLocation(p.AddressJSON),
	}
	if p.User != nil {
		out.Name = p.User.Name
	}
	return out
}

type ProductionItem struct {
	ID         int              `gorm:"primary_key" json:"id"`
	ProducerID int              `gorm:"not null;index" json:"producer_id"`
	ProductID  int              `gorm:"not null;index" json:"product_id"`
	UnitID     int              `gorm:"not null" json:"unit_id"`
	BasePrice  *decimal.Decimal `gorm:"type:decimal(20,4)" json:"base_price"`
	Notes      string           `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

type CapacityPeriod struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ProductionItemID int             `gorm:"not null;index" json:"production_item_id"`
	PeriodKind       string          `gorm:"size:20;not null;default:mensal" json:"period_kind"`
	StartsOn         *time.Time      `json:"starts_on"`
	EndsOn           *time.Time      `json:"ends_on"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
}

type ProposalStatus string

const (
	ProposalStatusDraft             ProposalStatus = "draft"
	ProposalStatusPendingValidation ProposalStatus = "pending_validation"
	ProposalStatusValidated         ProposalStatus = "validated"
	ProposalStatusSubmitted         ProposalStatus = "submitted"
	ProposalStatusReceived          ProposalStatus = "received"
	ProposalStatusAwarded           ProposalStatus = "awarded"
	ProposalStatusRejected          ProposalStatus = "rejected"
	ProposalStatusCancelled         ProposalStatus = "cancelled"
)

// OpenProposalStatuses still take producer attention and count toward the
// open-proposal limit of the filter stage.
var OpenProposalStatuses = []ProposalStatus{
	ProposalStatusDraft,
	ProposalStatusPendingValidation,
	ProposalStatusValidated,
	ProposalStatusSubmitted,
	ProposalStatusReceived,
}

type Proposal struct {
	ID              int            `gorm:"primary_key" json:"id"`
	DemandVersionID int            `gorm:"not null;index" json:"demand_version_id"`
	ProducerID      *int           `gorm:"index" json:"producer_id"`
	SupplierGroupID *int           `gorm:"index" json:"supplier_group_id"`
	Status          ProposalStatus `gorm:"size:30;not null;default:draft;index" json:"status"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// ParticipantConfirmation records an invitation to a producer and when they answered.
type ParticipantConfirmation struct {
	ID          int        `gorm:"primary_key" json:"id"`
	ProposalID  *int       `gorm:"index" json:"proposal_id"`
	ProducerID  int        `gorm:"not null;index" json:"producer_id"`
	Status      string     `gorm:"size:20;not null;default:pending" json:"status"`
	InvitedAt   *time.Time `json:"invited_at"`
	RespondedAt *time.Time `json:"responded_at"`
}

type ContractStatus string

const (
	ContractStatusDraft     ContractStatus = "draft"
	ContractStatusGenerated ContractStatus = "generated"
	ContractStatusSigned    ContractStatus = "signed"
	ContractStatusCancelled ContractStatus = "cancelled"
)

// ClosedContractStatuses count as a successful contract in the producer history.
var ClosedContractStatuses = []ContractStatus{ContractStatusGenerated, ContractStatusSigned}

type Contract struct {
	ID         int            `gorm:"primary_key" json:"id"`
	ProposalID *int           `gorm:"index" json:"proposal_id"`
	ProducerID int            `gorm:"not null;index" json:"producer_id"`
	Status     ContractStatus `gorm:"size:20;not null;default:draft;index" json:"status"`
	SignedAt   *time.Time     `json:"signed_at"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

const DocumentStatusApproved = "approved"

type ProducerDocument struct {
	ID           int        `gorm:"primary_key" json:"id"`
	ProducerID   int        `gorm:"not null;index" json:"producer_id"`
	DocumentType string     `gorm:"size:60;not null" json:"document_type"`
	Status       string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	ValidUntil   *time.Time `json:"valid_until"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
