package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment Model. Payments are append-only; a category's balance is always
// derived from the full expense and payment history.
type Payment struct {
	ID         string          `gorm:"primaryKey;type:char(36)" json:"id"`             // Primary key
	UserID     string          `gorm:"type:char(36);not null;index" json:"-"`          // Owner
	CategoryID string          `gorm:"type:char(36);not null;index" json:"categoryId"` // Category credited
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`      // Always positive
	Date       time.Time       `gorm:"not null;index" json:"date"`                     // Payment date
	Note       string          `gorm:"type:varchar(500)" json:"note"`                  // Optional note
	CreatedAt  time.Time       `json:"createdAt"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
