package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expense_tracker/internal/apperr"
	"expense_tracker/internal/testutil"
	"expense_tracker/internal/utils"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPaymentSummaryForCategory(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	user := testutil.CreateUser(t, gdb, "a@example.com")
	x := testutil.CreateCategory(t, gdb, user.ID, "X")
	expenses := NewExpenseService(gdb, nil)
	payments := NewPaymentService(gdb, nil)
	ctx := context.Background()

	mustCreateExpense(t, expenses, user.ID, ExpenseInput{CategoryID: x.ID, Amount: dec("100"), Date: day(2024, 1, 1)})
	mustCreateExpense(t, expenses, user.ID, ExpenseInput{CategoryID: x.ID, Amount: dec("200"), Date: day(2024, 1, 2)})
	_, err := payments.RecordPayment(ctx, user.ID, PaymentInput{CategoryID: x.ID, Amount: dec("120"), Note: "first"})
	require.NoError(t, err)

	sum, err := payments.Summary(ctx, user.ID, SummaryQuery{CategoryID: x.ID, IncludeAll: true})
	require.NoError(t, err)
	require.Len(t, sum.Summary, 1)
	row := sum.Summary[0]
	assert.Equal(t, "X", row.Name)
	assert.True(t, dec("300").Equal(row.TotalExpenses), row.TotalExpenses.String())
	assert.True(t, dec("120").Equal(row.TotalPaid), row.TotalPaid.String())
	assert.True(t, dec("180").Equal(row.Balance), row.Balance.String())
	require.Len(t, sum.Payments, 1)
	assert.Equal(t, "first", sum.Payments[0].Note)
}

func TestPaymentBalanceNeverNegative(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	user := testutil.CreateUser(t, gdb, "a@example.com")
	x := testutil.CreateCategory(t, gdb, user.ID, "X")
	expenses := NewExpenseService(gdb, nil)
	payments := NewPaymentService(gdb, nil)
	ctx := context.Background()

	mustCreateExpense(t, expenses, user.ID, ExpenseInput{CategoryID: x.ID, Amount: dec("50"), Date: day(2024, 1, 1)})
	for _, amt := range []string{"40", "30.25"} {
		_, err := payments.RecordPayment(ctx, user.ID, PaymentInput{CategoryID: x.ID, Amount: dec(amt)})
		require.NoError(t, err)
	}

	sum, err := payments.Summary(ctx, user.ID, SummaryQuery{CategoryID: x.ID, IncludeAll: true})
	require.NoError(t, err)
	require.Len(t, sum.Summary, 1)
	assert.True(t, dec("70.25").Equal(sum.Summary[0].TotalPaid))
	assert.True(t, sum.Summary[0].Balance.IsZero())
}

func TestPaymentGlobalSummaryFilter(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	user := testutil.CreateUser(t, gdb, "a@example.com")
	unpaid := testutil.CreateCategory(t, gdb, user.ID, "Unpaid")
	partial := testutil.CreateCategory(t, gdb, user.ID, "Partial")
	settled := testutil.CreateCategory(t, gdb, user.ID, "Settled")
	expenses := NewExpenseService(gdb, nil)
	payments := NewPaymentService(gdb, nil)
	ctx := context.Background()

	for _, c := range []string{unpaid.ID, partial.ID, settled.ID} {
		mustCreateExpense(t, expenses, user.ID, ExpenseInput{CategoryID: c, Amount: dec("100"), Date: day(2024, 1, 1)})
	}
	_, err := payments.RecordPayment(ctx, user.ID, PaymentInput{CategoryID: partial.ID, Amount: dec("40")})
	require.NoError(t, err)
	_, err = payments.RecordPayment(ctx, user.ID, PaymentInput{CategoryID: settled.ID, Amount: dec("100")})
	require.NoError(t, err)

	sum, err := payments.Summary(ctx, user.ID, SummaryQuery{})
	require.NoError(t, err)
	require.Len(t, sum.Summary, 1)
	assert.Equal(t, "Partial", sum.Summary[0].Name)
	assert.True(t, dec("60").Equal(sum.Summary[0].Balance))
	assert.Empty(t, sum.Payments)

	sum, err = payments.Summary(ctx, user.ID, SummaryQuery{IncludeAll: true})
	require.NoError(t, err)
	require.Len(t, sum.Summary, 3)
	assert.Equal(t, []string{"Partial", "Settled", "Unpaid"}, []string{sum.Summary[0].Name, sum.Summary[1].Name, sum.Summary[2].Name})
}

func TestPaymentSummaryEmptyCategoryAndOwnership(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	user := testutil.CreateUser(t, gdb, "a@example.com")
	other := testutil.CreateUser(t, gdb, "b@example.com")
	empty := testutil.CreateCategory(t, gdb, user.ID, "Empty")
	theirs := testutil.CreateCategory(t, gdb, other.ID, "Theirs")
	payments := NewPaymentService(gdb, nil)
	ctx := context.Background()

	sum, err := payments.Summary(ctx, user.ID, SummaryQuery{CategoryID: empty.ID, IncludeAll: true})
	require.NoError(t, err)
	require.Len(t, sum.Summary, 1)
	assert.Equal(t, "Empty", sum.Summary[0].Name)
	assert.True(t, sum.Summary[0].TotalExpenses.IsZero())
	assert.True(t, sum.Summary[0].Balance.IsZero())

	_, err = payments.Summary(ctx, user.ID, SummaryQuery{CategoryID: theirs.ID, IncludeAll: true})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = payments.RecordPayment(ctx, user.ID, PaymentInput{CategoryID: theirs.ID, Amount: dec("1")})
	assert.EqualError(t, err, "Invalid category")

	_, err = payments.RecordPayment(ctx, user.ID, PaymentInput{CategoryID: empty.ID, Amount: dec("0")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRecordPaymentDefaultsDateToNow(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	user := testutil.CreateUser(t, gdb, "a@example.com")
	x := testutil.CreateCategory(t, gdb, user.ID, "X")
	payments := NewPaymentService(gdb, nil)
	now := time.Date(2024, 5, 5, 10, 0, 0, 0, time.UTC)
	payments.now = func() time.Time { return now }
	ctx := context.Background()

	p, err := payments.RecordPayment(ctx, user.ID, PaymentInput{CategoryID: x.ID, Amount: dec("5")})
	require.NoError(t, err)
	assert.True(t, p.Date.Equal(now))

	older := day(2024, 1, 1)
	p2, err := payments.RecordPayment(ctx, user.ID, PaymentInput{CategoryID: x.ID, Amount: dec("5"), Date: &older})
	require.NoError(t, err)
	assert.True(t, p2.Date.Equal(older))

	sum, err := payments.Summary(ctx, user.ID, SummaryQuery{CategoryID: x.ID, IncludeAll: true})
	require.NoError(t, err)
	require.Len(t, sum.Payments, 2)
	assert.Equal(t, p.ID, sum.Payments[0].ID, "history is newest first")
}

func TestRecordPaymentRejectsSubCentAmount(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	user := testutil.CreateUser(t, gdb, "a@example.com")
	x := testutil.CreateCategory(t, gdb, user.ID, "X")
	payments := NewPaymentService(gdb, nil)
	ctx := context.Background()

	for _, amount := range []string{"0.004", "10000000000"} {
		_, err := payments.RecordPayment(ctx, user.ID, PaymentInput{CategoryID: x.ID, Amount: dec(amount)})
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr, amount)
		assert.Equal(t, "amount", appErr.Fields[0].Field)
	}

	sum, err := payments.Summary(ctx, user.ID, SummaryQuery{CategoryID: x.ID, IncludeAll: true})
	require.NoError(t, err)
	assert.True(t, sum.Summary[0].TotalPaid.IsZero())
	assert.Empty(t, sum.Payments)
}

func TestMergeBalances(t *testing.T) {
	expenses := []categoryTotal{{CategoryID: "a", Total: dec("10")}, {CategoryID: "gone", Total: dec("5")}}
	payments := []categoryTotal{{CategoryID: "a", Total: dec("4")}, {CategoryID: "b", Total: dec("3")}}
	names := map[string]string{"a": "Alpha", "b": "Beta"}

	rows := mergeBalances(expenses, payments, names, SummaryQuery{IncludeAll: true})
	require.Len(t, rows, 3)
	assert.Equal(t, "Alpha", rows[0].Name)
	assert.True(t, dec("6").Equal(rows[0].Balance))
	assert.Equal(t, "Beta", rows[1].Name)
	assert.True(t, rows[1].TotalExpenses.IsZero())
	assert.True(t, rows[1].Balance.IsZero())
	assert.Equal(t, UnknownCategory, rows[2].Name)
	assert.True(t, rows[2].TotalPaid.IsZero())

	rows = mergeBalances(expenses, payments, names, SummaryQuery{})
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].CategoryID)
}

func TestPaymentSummaryCacheInvalidatedOnWrite(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	_, rdb := testutil.SetupRedis(t)
	cache := utils.NewReportCache(rdb, time.Minute)
	user := testutil.CreateUser(t, gdb, "a@example.com")
	x := testutil.CreateCategory(t, gdb, user.ID, "X")
	expenses := NewExpenseService(gdb, cache)
	payments := NewPaymentService(gdb, cache)
	ctx := context.Background()

	mustCreateExpense(t, expenses, user.ID, ExpenseInput{CategoryID: x.ID, Amount: dec("100"), Date: day(2024, 1, 1)})
	q := SummaryQuery{CategoryID: x.ID, IncludeAll: true}
	sum, err := payments.Summary(ctx, user.ID, q)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(sum.Summary[0].Balance))

	found, err := cache.Get(ctx, user.ID, "payments:summary:"+x.ID+":true", &Summary{})
	require.NoError(t, err)
	assert.True(t, found, "summary is cached")

	_, err = payments.RecordPayment(ctx, user.ID, PaymentInput{CategoryID: x.ID, Amount: dec("30")})
	require.NoError(t, err)

	sum, err = payments.Summary(ctx, user.ID, q)
	require.NoError(t, err)
	assert.True(t, dec("70").Equal(sum.Summary[0].Balance), "write dropped the stale summary")
}

// writeDuringSet runs write once, between computing a report and storing it
type writeDuringSet struct {
	*utils.ReportCache
	write func()
}

func (c *writeDuringSet) Set(ctx context.Context, userID, field string, gen int64, value any) (bool, error) {
	if w := c.write; w != nil {
		c.write = nil
		w()
	}
	return c.ReportCache.Set(ctx, userID, field, gen, value)
}

func TestPaymentSummaryNotCachedAcrossConcurrentWrite(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	_, rdb := testutil.SetupRedis(t)
	cache := &writeDuringSet{ReportCache: utils.NewReportCache(rdb, time.Minute)}
	user := testutil.CreateUser(t, gdb, "a@example.com")
	x := testutil.CreateCategory(t, gdb, user.ID, "X")
	expenses := NewExpenseService(gdb, cache)
	payments := NewPaymentService(gdb, cache)
	ctx := context.Background()

	mustCreateExpense(t, expenses, user.ID, ExpenseInput{CategoryID: x.ID, Amount: dec("100"), Date: day(2024, 1, 1)})
	cache.write = func() {
		_, err := payments.RecordPayment(ctx, user.ID, PaymentInput{CategoryID: x.ID, Amount: dec("30")})
		require.NoError(t, err)
	}

	q := SummaryQuery{CategoryID: x.ID, IncludeAll: true}
	sum, err := payments.Summary(ctx, user.ID, q)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(sum.Summary[0].Balance), "computed before the payment")

	sum, err = payments.Summary(ctx, user.ID, q)
	require.NoError(t, err)
	assert.True(t, dec("70").Equal(sum.Summary[0].Balance), sum.Summary[0].Balance.String())
	assert.Len(t, sum.Payments, 1)
}
