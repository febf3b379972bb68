package models

import (
	"time"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleBuyer    UserRole = "buyer"
	UserRoleProducer UserRole = "producer"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     *string   `gorm:"size:100;unique" json:"email"`
	Role      UserRole  `gorm:"size:20;not null;default:producer" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Unit struct {
	ID           int    `gorm:"primary_key" json:"id"`
	Code         string `gorm:"size:20;not null;unique" json:"code"`
	Name         string `gorm:"size:60;not null" json:"name"`
	Abbreviation string `gorm:"size:10" json:"abbreviation"`
}

type CatalogProduct struct {
	ID            int       `gorm:"primary_key" json:"id"`
	Name          string    `gorm:"size:120;not null;index" json:"name"`
	Category      string    `gorm:"size:60;index" json:"category"`
	DefaultUnitID *int      `json:"default_unit_id"`
	IsActive      *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SubstitutionEquivalence declares that ToProductID can replace FromProductID in a demand.
type SubstitutionEquivalence struct {
	ID            int       `gorm:"primary_key" json:"id"`
	FromProductID int       `gorm:"not null;index" json:"from_product_id"`
	ToProductID   int       `gorm:"not null;index" json:"to_product_id"`
	Reason        string    `gorm:"size:255" json:"reason"`
	Notes         string    `gorm:"type:text" json:"notes"`
	IsActive      *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
