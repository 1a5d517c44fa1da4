// Package testutil provides an isolated in-memory database and Redis for
// tests, plus small fixtures for users and categories.
package testutil

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"expense_tracker/internal/db"
	"expense_tracker/internal/domain"
)

// SetupTestDB opens a fresh in-memory SQLite database with every table
// migrated. Each call gets its own database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// SetupRedis starts a miniredis server and returns a client connected to it
func SetupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// CreateUser inserts a user without a usable password
func CreateUser(t *testing.T, gdb *gorm.DB, email string) *domain.User {
	t.Helper()

	u := domain.User{Name: "Test User", Email: email, PasswordHash: "x"}
	if err := gdb.WithContext(context.Background()).Create(&u).Error; err != nil {
		t.Fatalf("failed to create user %q: %v", email, err)
	}
	return &u
}

// CreateCategory inserts a category owned by userID
func CreateCategory(t *testing.T, gdb *gorm.DB, userID, name string, fields ...domain.FieldDef) *domain.Category {
	t.Helper()

	c := domain.Category{UserID: userID, Name: name, Fields: domain.FieldSchema(fields)}
	if c.Fields == nil {
		c.Fields = domain.FieldSchema{}
	}
	if err := gdb.Create(&c).Error; err != nil {
		t.Fatalf("failed to create category %q: %v", name, err)
	}
	return &c
}
