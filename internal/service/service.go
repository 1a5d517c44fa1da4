// Package service holds the business operations. Every method takes the
// acting user's id explicitly and scopes all reads and writes to it.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"expense_tracker/internal/apperr"
	"expense_tracker/internal/domain"
)

// Cache stores derived per-user reports. Implementations must tolerate
// concurrent use. Set only stores when the user's generation still equals
// gen, and Invalidate advances the generation, so a report computed before a
// write can never be stored after that write's invalidation.
type Cache interface {
	Generation(ctx context.Context, userID string) (int64, error)
	Get(ctx context.Context, userID, field string, dest any) (bool, error)
	Set(ctx context.Context, userID, field string, gen int64, value any) (bool, error)
	Invalidate(ctx context.Context, userID string) error
}

type noopCache struct{}

func (noopCache) Generation(context.Context, string) (int64, error)             { return 0, nil }
func (noopCache) Get(context.Context, string, string, any) (bool, error)        { return false, nil }
func (noopCache) Set(context.Context, string, string, int64, any) (bool, error) { return false, nil }
func (noopCache) Invalidate(context.Context, string) error                      { return nil }

func orNoop(c Cache) Cache {
	if c == nil {
		return noopCache{}
	}
	return c
}

// invalidate drops a user's cached reports; a cache failure never fails the
// write that triggered it.
func invalidate(ctx context.Context, c Cache, userID string) {
	if err := c.Invalidate(ctx, userID); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Report cache invalidation failed")
	}
}

// cached loads field from the cache, or computes it and stores it unless the
// user's data changed while it was being computed.
func cached[T any](ctx context.Context, c Cache, userID, field string, compute func() (T, error)) (T, error) {
	var v T
	if found, err := c.Get(ctx, userID, field, &v); err == nil && found {
		return v, nil
	} else if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "field": field, "error": err.Error()}).Warn("Report cache read failed")
	}
	// read before computing so a concurrent invalidation is detected at Set
	gen, genErr := c.Generation(ctx, userID)
	if genErr != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": genErr.Error()}).Warn("Report cache generation read failed")
	}
	v, err := compute()
	if err != nil || genErr != nil {
		return v, err
	}
	if _, err := c.Set(ctx, userID, field, gen, v); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "field": field, "error": err.Error()}).Warn("Report cache write failed")
	}
	return v, nil
}

var errInvalidCategory = apperr.NotFound("Invalid category")

// ownedCategory loads a category that belongs to userID; notFound is
// returned when it is absent or owned by someone else.
func ownedCategory(ctx context.Context, db *gorm.DB, userID, id string, notFound *apperr.Error) (*domain.Category, error) {
	if id == "" {
		return nil, notFound
	}
	var c domain.Category
	err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}
	return &c, nil
}

// categoryNames maps every category id owned by userID to its name
func categoryNames(ctx context.Context, db *gorm.DB, userID string) (map[string]string, error) {
	var cats []domain.Category
	if err := db.WithContext(ctx).Select("id", "name").Where("user_id = ?", userID).Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("load category names: %w", err)
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}
