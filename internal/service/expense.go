package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"expense_tracker/internal/apperr"
	"expense_tracker/internal/domain"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	maxBulkDays     = 36500
)

// ExpenseService logs, lists, exports and deletes expenses
type ExpenseService struct {
	db    *gorm.DB
	cache Cache
	now   func() time.Time
}

func NewExpenseService(db *gorm.DB, cache Cache) *ExpenseService {
	return &ExpenseService{db: db, cache: orNoop(cache), now: time.Now}
}

var errExpenseNotFound = apperr.NotFound("Not found")

// ExpenseInput carries the writable fields of an expense. CustomFields holds
// raw client values; they are checked against the category's schema.
type ExpenseInput struct {
	CategoryID   string
	ItemName     string
	Amount       decimal.Decimal
	Date         time.Time
	Description  string
	CustomFields map[string]json.RawMessage
}

// CategoryRef is the category summary embedded in listed expenses
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExpenseView is an expense joined with its category name
type ExpenseView struct {
	ID           string              `json:"id"`
	ItemName     string              `json:"itemName"`
	Amount       decimal.Decimal     `json:"amount"`
	Date         time.Time           `json:"date"`
	Description  string              `json:"description"`
	Category     CategoryRef         `json:"category"`
	CustomFields domain.CustomFields `json:"customFields"`
}

// ListQuery selects one page of expenses
type ListQuery struct {
	Page       int
	Limit      int
	SortKey    string
	SortDir    string
	CategoryID string
	Search     string
}

// ListResult is a page of expenses plus the number of matches overall
type ListResult struct {
	Items []ExpenseView `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// ExportQuery filters an unpaginated export
type ExportQuery struct {
	CategoryID string
	Search     string
}

// BulkDeleteInput selects expenses of one category either by age (Days) or
// by an inclusive date range (From, To). Exactly one mode may be set.
type BulkDeleteInput struct {
	CategoryID string
	Days       *int
	From       *time.Time
	To         *time.Time
}

var sortColumns = map[string]string{
	"date":        "date",
	"amount":      "amount",
	"description": "description",
	"itemName":    "item_name",
	"createdAt":   "created_at",
}

// ParseSort splits "key:dir". Unknown keys fall back to date, anything but
// "asc" sorts descending.
func ParseSort(s string) (key, dir string) {
	key, dir, _ = strings.Cut(s, ":")
	if _, ok := sortColumns[key]; !ok {
		key = "date"
	}
	if strings.ToLower(dir) == "asc" {
		return key, "asc"
	}
	return key, "desc"
}

// List returns one page of the user's expenses
func (s *ExpenseService) List(ctx context.Context, userID string, q ListQuery) (*ListResult, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	key, dir := ParseSort(q.SortKey + ":" + q.SortDir)

	var total int64
	if err := s.filtered(ctx, userID, q.CategoryID, q.Search).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count expenses: %w", err)
	}

	var expenses []domain.Expense
	err := s.filtered(ctx, userID, q.CategoryID, q.Search).
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortColumns[key]}, Desc: dir == "desc"}).
		Order("id").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&expenses).Error
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	names, err := categoryNames(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	items := make([]ExpenseView, len(expenses))
	for i, e := range expenses {
		items[i] = ExpenseView{
			ID:           e.ID,
			ItemName:     e.ItemName,
			Amount:       e.Amount,
			Date:         e.Date,
			Description:  e.Description,
			Category:     CategoryRef{ID: e.CategoryID, Name: names[e.CategoryID]},
			CustomFields: e.CustomFields,
		}
	}
	return &ListResult{Items: items, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// Create logs a new expense
func (s *ExpenseService) Create(ctx context.Context, userID string, in ExpenseInput) (*domain.Expense, error) {
	if err := validateExpense(in); err != nil {
		return nil, err
	}
	cat, err := ownedCategory(ctx, s.db, userID, in.CategoryID, errInvalidCategory)
	if err != nil {
		return nil, err
	}
	fields, err := sanitizeCustomFields(cat.Fields, in.CustomFields)
	if err != nil {
		return nil, err
	}

	e := domain.Expense{
		UserID:       userID,
		CategoryID:   cat.ID,
		ItemName:     strings.TrimSpace(in.ItemName),
		Amount:       in.Amount,
		Date:         in.Date.UTC(),
		Description:  strings.TrimSpace(in.Description),
		CustomFields: fields,
	}
	if err := s.db.WithContext(ctx).Create(&e).Error; err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	invalidate(ctx, s.cache, userID)
	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"expense_id":  e.ID,
		"category_id": e.CategoryID,
		"amount":      e.Amount.String(),
	}).Info("Expense created")
	return &e, nil
}

// Update replaces every writable field of an existing expense
func (s *ExpenseService) Update(ctx context.Context, userID, id string, in ExpenseInput) (*domain.Expense, error) {
	if err := validateExpense(in); err != nil {
		return nil, err
	}
	var e domain.Expense
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load expense: %w", err)
	}
	cat, err := ownedCategory(ctx, s.db, userID, in.CategoryID, errInvalidCategory)
	if err != nil {
		return nil, err
	}
	fields, err := sanitizeCustomFields(cat.Fields, in.CustomFields)
	if err != nil {
		return nil, err
	}

	e.CategoryID = cat.ID
	e.ItemName = strings.TrimSpace(in.ItemName)
	e.Amount = in.Amount
	e.Date = in.Date.UTC()
	e.Description = strings.TrimSpace(in.Description)
	e.CustomFields = fields
	if err := s.db.WithContext(ctx).Save(&e).Error; err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	invalidate(ctx, s.cache, userID)
	return &e, nil
}

// Delete removes one expense
func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Expense{})
	if res.Error != nil {
		return fmt.Errorf("delete expense: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errExpenseNotFound
	}
	invalidate(ctx, s.cache, userID)
	return nil
}

// BulkDelete removes a category's expenses from the last Days days, or
// between From and the end of To's calendar day, and returns the count. The
// calendar day is taken in To's own location.
func (s *ExpenseService) BulkDelete(ctx context.Context, userID string, in BulkDeleteInput) (int64, error) {
	if err := validateBulkDelete(in); err != nil {
		return 0, err
	}
	cat, err := ownedCategory(ctx, s.db, userID, in.CategoryID, errInvalidCategory)
	if err != nil {
		return 0, err
	}

	q := s.db.WithContext(ctx).Where("user_id = ? AND category_id = ?", userID, cat.ID)
	if in.Days != nil {
		since := s.now().UTC().Add(-time.Duration(*in.Days) * 24 * time.Hour)
		q = q.Where("date >= ?", since)
	} else {
		q = q.Where("date >= ? AND date <= ?", in.From.UTC(), domain.EndOfDay(*in.To).UTC())
	}
	res := q.Delete(&domain.Expense{})
	if res.Error != nil {
		return 0, fmt.Errorf("bulk delete expenses: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		invalidate(ctx, s.cache, userID)
	}
	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"category_id": cat.ID,
		"deleted":     res.RowsAffected,
	}).Info("Expenses bulk deleted")
	return res.RowsAffected, nil
}

// Export streams every matching expense, newest first, to fn
func (s *ExpenseService) Export(ctx context.Context, userID string, q ExportQuery, fn func(domain.ExportRow) error) error {
	names, err := categoryNames(ctx, s.db, userID)
	if err != nil {
		return err
	}
	rows, err := s.filtered(ctx, userID, q.CategoryID, q.Search).Order("date desc").Order("id").Rows()
	if err != nil {
		return fmt.Errorf("export expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.Expense
		if err := s.db.ScanRows(rows, &e); err != nil {
			return fmt.Errorf("scan expense: %w", err)
		}
		row := domain.ExportRow{
			Date:        e.Date,
			Category:    names[e.CategoryID],
			Amount:      e.Amount,
			Description: e.Description,
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// filtered scopes the expense table to the user, an optional category and an
// optional search: description substring (case-insensitive) or exact amount.
func (s *ExpenseService) filtered(ctx context.Context, userID, categoryID, search string) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&domain.Expense{}).Where("user_id = ?", userID)
	if categoryID != "" {
		q = q.Where("category_id = ?", categoryID)
	}
	search = strings.TrimSpace(search)
	if search == "" {
		return q
	}
	pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
	if num, err := strconv.ParseFloat(search, 64); err == nil && !math.IsNaN(num) && !math.IsInf(num, 0) {
		return q.Where("(LOWER(description) LIKE ? ESCAPE '!' OR amount = ?)", pattern, num)
	}
	return q.Where("LOWER(description) LIKE ? ESCAPE '!'", pattern)
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func validateExpense(in ExpenseInput) error {
	var errs []apperr.FieldError
	if strings.TrimSpace(in.CategoryID) == "" {
		errs = append(errs, apperr.FieldError{Field: "categoryId", Message: "is required"})
	}
	if msg := domain.AmountError(in.Amount); msg != "" {
		errs = append(errs, apperr.FieldError{Field: "amount", Message: msg})
	}
	if in.Date.IsZero() {
		errs = append(errs, apperr.FieldError{Field: "date", Message: "is required"})
	}
	if len(errs) > 0 {
		return apperr.Validation("Invalid input", errs...)
	}
	return nil
}

func validateBulkDelete(in BulkDeleteInput) error {
	var errs []apperr.FieldError
	if strings.TrimSpace(in.CategoryID) == "" {
		errs = append(errs, apperr.FieldError{Field: "categoryId", Message: "is required"})
	}
	hasRange := in.From != nil || in.To != nil
	switch {
	case in.Days != nil && hasRange:
		return apperr.Validation("Provide either days or both from and to dates, not both")
	case in.Days != nil:
		if *in.Days <= 0 || *in.Days >= maxBulkDays {
			errs = append(errs, apperr.FieldError{Field: "days", Message: "must be between 1 and 36499"})
		}
	case in.From != nil && in.To != nil:
		if in.From.After(*in.To) {
			errs = append(errs, apperr.FieldError{Field: "from", Message: "must not be after to"})
		}
	default:
		return apperr.Validation("Provide either days or both from and to dates")
	}
	if len(errs) > 0 {
		return apperr.Validation("Invalid input", errs...)
	}
	return nil
}

// sanitizeCustomFields keeps only keys declared on the schema and coerces each
// value to its declared type. Unknown keys are dropped silently; values that
// do not fit their type are validation errors.
func sanitizeCustomFields(schema domain.FieldSchema, raw map[string]json.RawMessage) (domain.CustomFields, error) {
	out := domain.CustomFields{}
	var errs []apperr.FieldError
	for _, def := range schema {
		v, ok := raw[def.Key]
		if !ok || domain.IsEmptyJSON(v) {
			continue
		}
		val, err := domain.ParseFieldValue(def, v)
		if err != nil {
			errs = append(errs, apperr.FieldError{Field: "customFields." + def.Key, Message: err.Error()})
			continue
		}
		out[def.Key] = val
	}
	if len(errs) > 0 {
		return nil, apperr.Validation("Invalid custom fields", errs...)
	}
	return out, nil
}
