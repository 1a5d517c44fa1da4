package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"expense_tracker/internal/apperr"
	"expense_tracker/internal/domain"
)

// UnknownCategory labels aggregate rows whose category no longer resolves
const UnknownCategory = "Unknown"

// PaymentService records payments and derives per-category balances
type PaymentService struct {
	db    *gorm.DB
	cache Cache
	now   func() time.Time
}

func NewPaymentService(db *gorm.DB, cache Cache) *PaymentService {
	return &PaymentService{db: db, cache: orNoop(cache), now: time.Now}
}

// PaymentInput carries a new payment; a nil Date means now
type PaymentInput struct {
	CategoryID string
	Amount     decimal.Decimal
	Date       *time.Time
	Note       string
}

// SummaryQuery selects the balance rows to report. With IncludeAll unset only
// categories that are partly paid and still owe something are returned.
type SummaryQuery struct {
	CategoryID string
	IncludeAll bool
}

// BalanceRow is one category's position
type BalanceRow struct {
	CategoryID    string          `json:"categoryId"`
	Name          string          `json:"name"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	TotalPaid     decimal.Decimal `json:"totalPaid"`
	Balance       decimal.Decimal `json:"balance"`
}

// Summary is the payments report. Payments is only filled when a single
// category was requested.
type Summary struct {
	Summary  []BalanceRow     `json:"summary"`
	Payments []domain.Payment `json:"payments"`
}

// RecordPayment appends a payment against an owned category
func (s *PaymentService) RecordPayment(ctx context.Context, userID string, in PaymentInput) (*domain.Payment, error) {
	var errs []apperr.FieldError
	if strings.TrimSpace(in.CategoryID) == "" {
		errs = append(errs, apperr.FieldError{Field: "categoryId", Message: "is required"})
	}
	if msg := domain.AmountError(in.Amount); msg != "" {
		errs = append(errs, apperr.FieldError{Field: "amount", Message: msg})
	}
	if len(errs) > 0 {
		return nil, apperr.Validation("Invalid input", errs...)
	}
	cat, err := ownedCategory(ctx, s.db, userID, in.CategoryID, errInvalidCategory)
	if err != nil {
		return nil, err
	}

	date := s.now().UTC()
	if in.Date != nil && !in.Date.IsZero() {
		date = in.Date.UTC()
	}
	p := domain.Payment{
		UserID:     userID,
		CategoryID: cat.ID,
		Amount:     in.Amount,
		Date:       date,
		Note:       strings.TrimSpace(in.Note),
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	invalidate(ctx, s.cache, userID)
	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"payment_id":  p.ID,
		"category_id": p.CategoryID,
		"amount":      p.Amount.String(),
	}).Info("Payment recorded")
	return &p, nil
}

// Summary merges per-category expense and payment totals into balances
func (s *PaymentService) Summary(ctx context.Context, userID string, q SummaryQuery) (*Summary, error) {
	if q.CategoryID != "" {
		if _, err := ownedCategory(ctx, s.db, userID, q.CategoryID, errInvalidCategory); err != nil {
			return nil, err
		}
	}
	field := "payments:summary:" + q.CategoryID + ":" + strconv.FormatBool(q.IncludeAll)
	if q.CategoryID == "" {
		field = "payments:summary:all:" + strconv.FormatBool(q.IncludeAll)
	}
	return cached(ctx, s.cache, userID, field, func() (*Summary, error) {
		return s.summary(ctx, userID, q)
	})
}

func (s *PaymentService) summary(ctx context.Context, userID string, q SummaryQuery) (*Summary, error) {
	var expenses, payments []categoryTotal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = sumByCategory(gctx, s.db, &domain.Expense{}, userID, q.CategoryID)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = sumByCategory(gctx, s.db, &domain.Payment{}, userID, q.CategoryID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names, err := categoryNames(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	rows := mergeBalances(expenses, payments, names, q)

	out := &Summary{Summary: rows, Payments: []domain.Payment{}}
	if q.CategoryID != "" {
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND category_id = ?", userID, q.CategoryID).
			Order("date desc").Order("created_at desc").
			Find(&out.Payments).Error
		if err != nil {
			return nil, fmt.Errorf("load payments: %w", err)
		}
	}
	return out, nil
}

type categoryTotal struct {
	CategoryID string
	Total      decimal.Decimal
}

// sumByCategory groups model's amounts by category for one user
func sumByCategory(ctx context.Context, db *gorm.DB, model any, userID, categoryID string) ([]categoryTotal, error) {
	q := db.WithContext(ctx).Model(model).
		Select("category_id, SUM(amount) AS total").
		Where("user_id = ?", userID)
	if categoryID != "" {
		q = q.Where("category_id = ?", categoryID)
	}
	var totals []categoryTotal
	if err := q.Group("category_id").Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("sum amounts: %w", err)
	}
	for i := range totals {
		totals[i].Total = totals[i].Total.Round(2)
	}
	return totals, nil
}

// mergeBalances outer-joins expense and payment totals by category. A side
// that is missing counts as zero and the balance never goes below zero.
func mergeBalances(expenses, payments []categoryTotal, names map[string]string, q SummaryQuery) []BalanceRow {
	byID := make(map[string]*BalanceRow)
	row := func(id string) *BalanceRow {
		r, ok := byID[id]
		if !ok {
			r = &BalanceRow{CategoryID: id, TotalExpenses: decimal.Zero, TotalPaid: decimal.Zero}
			byID[id] = r
		}
		return r
	}
	for _, t := range expenses {
		r := row(t.CategoryID)
		r.TotalExpenses = r.TotalExpenses.Add(t.Total)
	}
	for _, t := range payments {
		r := row(t.CategoryID)
		r.TotalPaid = r.TotalPaid.Add(t.Total)
	}
	if q.CategoryID != "" {
		row(q.CategoryID)
	}

	rows := make([]BalanceRow, 0, len(byID))
	for id, r := range byID {
		r.Balance = domain.MaxZero(r.TotalExpenses.Sub(r.TotalPaid))
		r.Name = UnknownCategory
		if name, ok := names[id]; ok {
			r.Name = name
		}
		if !q.IncludeAll && !(r.TotalPaid.IsPositive() && r.Balance.IsPositive()) {
			continue
		}
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].CategoryID < rows[j].CategoryID
	})
	return rows
}
