package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"expense_tracker/internal/apperr"
	"expense_tracker/internal/domain"
)

// CategoryService manages category definitions and their field schemas
type CategoryService struct {
	db    *gorm.DB
	cache Cache
}

func NewCategoryService(db *gorm.DB, cache Cache) *CategoryService {
	return &CategoryService{db: db, cache: orNoop(cache)}
}

var (
	errCategoryNotFound = apperr.NotFound("Category not found")
	errCategoryExists   = apperr.Conflict("Category already exists")
	errCategoryInUse    = apperr.Conflict("Category has related expenses")
)

// List returns the user's categories ordered by name
func (s *CategoryService) List(ctx context.Context, userID string) ([]domain.Category, error) {
	var cats []domain.Category
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name asc").Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Create adds a category; the name must be unused by this user
func (s *CategoryService) Create(ctx context.Context, userID, name string, fields []domain.FieldDef) (*domain.Category, error) {
	name, schema, err := validateCategory(name, fields)
	if err != nil {
		return nil, err
	}
	taken, err := s.nameTaken(ctx, userID, name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errCategoryExists
	}

	c := domain.Category{UserID: userID, Name: name, Fields: schema}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errCategoryExists
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	invalidate(ctx, s.cache, userID)
	logrus.WithFields(logrus.Fields{"user_id": userID, "category_id": c.ID, "name": c.Name}).Info("Category created")
	return &c, nil
}

// SeedDefaults creates every name in names that the user does not already
// own and returns how many were created. Names compare case-insensitively,
// as the unique index does on MySQL. Calling it again with the same names
// creates nothing.
func (s *CategoryService) SeedDefaults(ctx context.Context, userID string, names []string) (int, error) {
	existing, err := categoryNames(ctx, s.db, userID)
	if err != nil {
		return 0, err
	}
	owned := make(map[string]bool, len(existing))
	for _, n := range existing {
		owned[strings.ToLower(n)] = true
	}

	var toCreate []domain.Category
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || owned[key] || len(n) > maxCategoryName {
			continue
		}
		owned[key] = true
		toCreate = append(toCreate, domain.Category{UserID: userID, Name: n, Fields: domain.FieldSchema{}})
	}
	created, err := s.insertMissing(ctx, toCreate)
	if err != nil {
		return 0, err
	}
	if created > 0 {
		invalidate(ctx, s.cache, userID)
		logrus.WithFields(logrus.Fields{"user_id": userID, "created": created}).Info("Default categories seeded")
	}
	return created, nil
}

// insertMissing inserts cats, skipping any that collide with a category
// created concurrently, and returns how many rows were inserted.
func (s *CategoryService) insertMissing(ctx context.Context, cats []domain.Category) (int, error) {
	if len(cats) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&cats)
	if err := res.Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, errCategoryExists
		}
		return 0, fmt.Errorf("seed categories: %w", err)
	}
	return int(res.RowsAffected), nil
}

// Update renames a category and replaces its field schema wholesale
func (s *CategoryService) Update(ctx context.Context, userID, id, name string, fields []domain.FieldDef) (*domain.Category, error) {
	c, err := ownedCategory(ctx, s.db, userID, id, errCategoryNotFound)
	if err != nil {
		return nil, err
	}
	name, schema, err := validateCategory(name, fields)
	if err != nil {
		return nil, err
	}
	taken, err := s.nameTaken(ctx, userID, name, c.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errCategoryExists
	}

	c.Name = name
	c.Fields = schema
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errCategoryExists
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	invalidate(ctx, s.cache, userID)
	return c, nil
}

// Delete removes a category that no expense references
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	c, err := ownedCategory(ctx, s.db, userID, id, errCategoryNotFound)
	if err != nil {
		return err
	}
	var related int64
	if err := s.db.WithContext(ctx).Model(&domain.Expense{}).
		Where("user_id = ? AND category_id = ?", userID, c.ID).
		Count(&related).Error; err != nil {
		return fmt.Errorf("count related expenses: %w", err)
	}
	if related > 0 {
		return errCategoryInUse
	}
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", c.ID, userID).Delete(&domain.Category{}).Error; err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	invalidate(ctx, s.cache, userID)
	logrus.WithFields(logrus.Fields{"user_id": userID, "category_id": c.ID}).Info("Category deleted")
	return nil
}

func (s *CategoryService) nameTaken(ctx context.Context, userID, name, exceptID string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&domain.Category{}).Where("user_id = ? AND LOWER(name) = ?", userID, strings.ToLower(name))
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return n > 0, nil
}

const maxCategoryName = 100

// validateCategory trims the name and normalizes the field schema: type
// defaults to text, options are kept only for select fields and keys must be
// unique.
func validateCategory(name string, fields []domain.FieldDef) (string, domain.FieldSchema, error) {
	var errs []apperr.FieldError
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		errs = append(errs, apperr.FieldError{Field: "name", Message: "is required"})
	case len(name) > maxCategoryName:
		errs = append(errs, apperr.FieldError{Field: "name", Message: "is too long"})
	}

	schema := make(domain.FieldSchema, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		prefix := "fields[" + strconv.Itoa(i) + "]."
		f.Key = strings.TrimSpace(f.Key)
		f.Label = strings.TrimSpace(f.Label)
		if f.Type == "" {
			f.Type = domain.FieldText
		}
		if f.Key == "" {
			errs = append(errs, apperr.FieldError{Field: prefix + "key", Message: "is required"})
		} else if seen[f.Key] {
			errs = append(errs, apperr.FieldError{Field: prefix + "key", Message: "is duplicated"})
		}
		seen[f.Key] = true
		if f.Label == "" {
			errs = append(errs, apperr.FieldError{Field: prefix + "label", Message: "is required"})
		}
		if !f.Type.Valid() {
			errs = append(errs, apperr.FieldError{Field: prefix + "type", Message: "must be one of text, number, date, boolean, select"})
		}
		if f.Type == domain.FieldSelect {
			opts := make([]string, 0, len(f.Options))
			for _, o := range f.Options {
				if o = strings.TrimSpace(o); o != "" {
					opts = append(opts, o)
				}
			}
			if len(opts) == 0 {
				errs = append(errs, apperr.FieldError{Field: prefix + "options", Message: "select fields need at least one option"})
			}
			f.Options = opts
		} else {
			f.Options = []string{}
		}
		schema = append(schema, f)
	}
	if len(errs) > 0 {
		return "", nil, apperr.Validation("Invalid input", errs...)
	}
	return name, schema, nil
}
