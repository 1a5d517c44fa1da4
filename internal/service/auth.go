package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"expense_tracker/internal/apperr"
	"expense_tracker/internal/domain"
)

// BcryptCost is the work factor for stored password hashes
const BcryptCost = 12

const minPasswordLen = 6

// AuthService registers users and checks their credentials. Session tokens
// are issued by the HTTP layer.
type AuthService struct {
	db   *gorm.DB
	cost int
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db, cost: BcryptCost}
}

var (
	errEmailTaken         = apperr.Conflict("Email already registered")
	errInvalidCredentials = apperr.Unauthorized("Invalid credentials")
	errUserNotFound       = apperr.NotFound("User not found")
)

// NormalizeEmail lowercases and trims an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a user with a bcrypt password hash
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	var errs []apperr.FieldError
	if name == "" {
		errs = append(errs, apperr.FieldError{Field: "name", Message: "is required"})
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		errs = append(errs, apperr.FieldError{Field: "email", Message: "must be a valid email"})
	}
	if len(password) < minPasswordLen {
		errs = append(errs, apperr.FieldError{Field: "password", Message: "must be at least 6 characters"})
	}
	if len(errs) > 0 {
		return nil, apperr.Validation("Invalid input", errs...)
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if n > 0 {
		return nil, errEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := domain.User{Name: name, Email: email, PasswordHash: string(hash)}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	logrus.WithFields(logrus.Fields{"user_id": u.ID}).Info("User registered")
	return &u, nil
}

// Login returns the user whose credentials match; any mismatch is the same
// Unauthorized error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	var u domain.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return &u, nil
}

// User loads a user by id
func (s *AuthService) User(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}
