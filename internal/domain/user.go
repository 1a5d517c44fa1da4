package domain

import (
	"time"

	"github.com/google/uuid" // ID generation
	"gorm.io/gorm"           // GORM ORM library
)

// User Model
type User struct {
	ID           string    `gorm:"primaryKey;type:char(36)" json:"id"`                  // Primary key
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`              // Display name
	Email        string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"` // Unique, lowercased email
	PasswordHash string    `gorm:"not null" json:"-"`                                   // bcrypt hash
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// PublicUser is the user shape returned to clients
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public strips the password hash and timestamps
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}
