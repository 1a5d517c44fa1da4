package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expense_tracker/internal/domain"
	"expense_tracker/internal/testutil"
)

func TestStatsSummary(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	user := testutil.CreateUser(t, gdb, "a@example.com")
	food := testutil.CreateCategory(t, gdb, user.ID, "Food")
	rent := testutil.CreateCategory(t, gdb, user.ID, "Rent")
	expenses := NewExpenseService(gdb, nil)
	stats := NewStatsService(gdb, nil)
	ctx := context.Background()

	mustCreateExpense(t, expenses, user.ID, ExpenseInput{CategoryID: food.ID, Amount: dec("12.50"), Date: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)})
	mustCreateExpense(t, expenses, user.ID, ExpenseInput{CategoryID: food.ID, Amount: dec("7.50"), Date: time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)})
	mustCreateExpense(t, expenses, user.ID, ExpenseInput{CategoryID: rent.ID, Amount: dec("700"), Date: day(2024, 1, 3)})
	// an expense whose category vanished is left out of byCategory
	require.NoError(t, gdb.Create(&domain.Expense{UserID: user.ID, CategoryID: "missing", Amount: dec("1"), Date: day(2024, 1, 2)}).Error)

	s, err := stats.Summary(ctx, user.ID)
	require.NoError(t, err)

	require.Len(t, s.ByCategory, 2)
	assert.Equal(t, "Rent", s.ByCategory[0].Name)
	assert.Equal(t, "Food", s.ByCategory[1].Name)
	assert.True(t, dec("20").Equal(s.ByCategory[1].Total), s.ByCategory[1].Total.String())

	require.Len(t, s.ByDate, 3)
	assert.Equal(t, "2024-01-01", s.ByDate[0].Date)
	assert.True(t, dec("20").Equal(s.ByDate[0].Total))
	assert.Equal(t, "2024-01-02", s.ByDate[1].Date)
	assert.Equal(t, "2024-01-03", s.ByDate[2].Date)
}

func TestStatsSummaryEmpty(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	user := testutil.CreateUser(t, gdb, "a@example.com")

	s, err := NewStatsService(gdb, nil).Summary(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, s.ByCategory)
	assert.Empty(t, s.ByCategory)
	assert.Empty(t, s.ByDate)
}
