package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense Model
type Expense struct {
	ID           string          `gorm:"primaryKey;type:char(36)" json:"id"`             // Primary key
	UserID       string          `gorm:"type:char(36);not null;index" json:"-"`          // Owner
	CategoryID   string          `gorm:"type:char(36);not null;index" json:"categoryId"` // Category the expense is logged against
	ItemName     string          `gorm:"type:varchar(200)" json:"itemName"`              // Optional item name
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`      // Always positive
	Date         time.Time       `gorm:"not null;index" json:"date"`                     // When the expense happened
	Description  string          `gorm:"type:varchar(1000)" json:"description"`          // Free text, searchable
	CustomFields CustomFields    `gorm:"type:text" json:"customFields"`                  // Values for the category's fields
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (e *Expense) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ExportRow is the flattened projection used by CSV and PDF exports
type ExportRow struct {
	Date        time.Time
	Category    string
	Amount      decimal.Decimal
	Description string
}
