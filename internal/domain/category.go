package domain

import (
	"time"

	"github.com/google/uuid" // ID generation
	"gorm.io/gorm"           // GORM ORM library
)

// Category Model
type Category struct {
	ID        string      `gorm:"primaryKey;type:char(36)" json:"id"`                                         // Primary key
	UserID    string      `gorm:"type:char(36);not null;uniqueIndex:idx_category_owner_name" json:"-"`        // Owner
	Name      string      `gorm:"type:varchar(100);not null;uniqueIndex:idx_category_owner_name" json:"name"` // Unique per owner, ignoring case
	Fields    FieldSchema `gorm:"type:text" json:"fields"`                                                    // Custom field schema
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Fields == nil {
		c.Fields = FieldSchema{}
	}
	return nil
}
