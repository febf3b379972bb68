package models

import (
	"encoding/json"
	"time"

	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/shopspring/decimal"
)

type DemandStatus string

const (
	DemandStatusDraft     DemandStatus = "draft"
	DemandStatusPublished DemandStatus = "published"
	DemandStatusClosed    DemandStatus = "closed"
)

// Demand is a procurement notice. DeliveryLocationJSON is a free-form address
// payload (city plus optional coordinates).
type Demand struct {
	ID                   int          `gorm:"primary_key" json:"id"`
	Title                string       `gorm:"size:255;not null" json:"title"`
	Buyer                string       `gorm:"size:255" json:"buyer"`
	Status               DemandStatus `gorm:"size:20;not null;default:draft;index" json:"status"`
	DeliveryLocationJSON []byte       `gorm:"type:json" json:"delivery_location"`
	CreatedByUserID      *int         `json:"created_by_user_id"`
	CreatedAt            time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// DemandVersion is an immutable revision of a demand. The current version is
// the highest VersionNumber.
type DemandVersion struct {
	ID            int          `gorm:"primary_key" json:"id"`
	DemandID      int          `gorm:"not null;uniqueIndex:idx_demand_version,priority:1" json:"demand_id"`
	VersionNumber int          `gorm:"not null;uniqueIndex:idx_demand_version,priority:2" json:"version_number"`
	Notes         string       `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	Lines         []DemandLine `gorm:"foreignKey:DemandVersionID" json:"lines"`
}

type DemandLine struct {
	ID              int              `gorm:"primary_key" json:"id"`
	DemandVersionID int              `gorm:"not null;index" json:"demand_version_id"`
	ProductID       int              `gorm:"not null;index" json:"product_id"`
	UnitID          int              `gorm:"not null" json:"unit_id"`
	Quantity        decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"quantity"`
	MaxPrice        *decimal.Decimal `gorm:"type:decimal(20,4)" json:"max_price"`
	DeliveryNotes   string           `gorm:"type:text" json:"delivery_notes"`
}

func decodeLocation(raw []byte) matching.Location {
	if len(raw) == 0 {
		return matching.Location{}
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return matching.Location{}
	}
	return matching.ParseLocation(payload)
}

func (v *DemandVersion) toDomain(d *Demand) *matching.DemandVersion {
	out := &matching.DemandVersion{
		ID:            v.ID,
		DemandID:      v.DemandID,
		VersionNumber: v.VersionNumber,
		Delivery:      decodeLocation(d.DeliveryLocationJSON),
		Lines:         make([]matching.DemandLine, 0, len(v.Lines)),
	}
	for _, l := range v.Lines {
		out.Lines = append(out.Lines, matching.DemandLine{
			ID:            l.ID,
			ProductID:     l.ProductID,
			UnitID:        l.UnitID,
			Quantity:      l.Quantity,
			MaxPrice:      l.MaxPrice,
			DeliveryNotes: l.DeliveryNotes,
		})
	}
	return out
}
