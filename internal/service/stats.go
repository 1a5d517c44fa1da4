package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"expense_tracker/internal/domain"
)

// StatsService builds the chart aggregates
type StatsService struct {
	db    *gorm.DB
	cache Cache
}

func NewStatsService(db *gorm.DB, cache Cache) *StatsService {
	return &StatsService{db: db, cache: orNoop(cache)}
}

type CategoryStat struct {
	CategoryID string          `json:"categoryId"`
	Name       string          `json:"name"`
	Total      decimal.Decimal `json:"total"`
}

type DateStat struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// Stats holds spending per category (largest first) and per day (oldest first)
type Stats struct {
	ByCategory []CategoryStat `json:"byCategory"`
	ByDate     []DateStat     `json:"byDate"`
}

// Summary returns the user's spending aggregates
func (s *StatsService) Summary(ctx context.Context, userID string) (*Stats, error) {
	return cached(ctx, s.cache, userID, "stats:summary", func() (*Stats, error) {
		return s.summary(ctx, userID)
	})
}

func (s *StatsService) summary(ctx context.Context, userID string) (*Stats, error) {
	out := &Stats{ByCategory: []CategoryStat{}, ByDate: []DateStat{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		totals, err := sumByCategory(gctx, s.db, &domain.Expense{}, userID, "")
		if err != nil {
			return err
		}
		names, err := categoryNames(gctx, s.db, userID)
		if err != nil {
			return err
		}
		for _, t := range totals {
			name, ok := names[t.CategoryID]
			if !ok {
				continue
			}
			out.ByCategory = append(out.ByCategory, CategoryStat{CategoryID: t.CategoryID, Name: name, Total: t.Total})
		}
		sort.Slice(out.ByCategory, func(i, j int) bool {
			a, b := out.ByCategory[i], out.ByCategory[j]
			if !a.Total.Equal(b.Total) {
				return a.Total.GreaterThan(b.Total)
			}
			return a.Name < b.Name
		})
		return nil
	})
	g.Go(func() error {
		byDate, err := s.byDate(gctx, userID)
		if err != nil {
			return err
		}
		out.ByDate = byDate
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// byDate groups in process by UTC calendar day so MySQL and SQLite agree on
// the bucket boundaries.
func (s *StatsService) byDate(ctx context.Context, userID string) ([]DateStat, error) {
	rows, err := s.db.WithContext(ctx).Model(&domain.Expense{}).
		Select("date, amount").
		Where("user_id = ?", userID).
		Order("date asc").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("load expense dates: %w", err)
	}
	defer rows.Close()

	out := []DateStat{}
	for rows.Next() {
		var (
			date   time.Time
			amount decimal.Decimal
		)
		if err := rows.Scan(&date, &amount); err != nil {
			return nil, fmt.Errorf("scan expense date: %w", err)
		}
		day := date.UTC().Format(domain.DateLayout)
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Total = out[n-1].Total.Add(amount)
			continue
		}
		out = append(out, DateStat{Date: day, Total: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Total = out[i].Total.Round(2)
	}
	return out, nil
}
