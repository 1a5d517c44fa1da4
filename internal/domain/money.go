package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, not quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

// DateLayout is the calendar-day format accepted and produced by the API
const DateLayout = "2006-01-02"

// ParseDate accepts a calendar day (2006-01-02) or an RFC 3339 timestamp and
// returns it in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := ParseDateInZone(s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseDateInZone is ParseDate keeping the timestamp's own offset, so the
// caller can reason about the client's calendar day. Calendar days are UTC.
func ParseDateInZone(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// StartOfDay truncates t to midnight of its calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// MaxAmount is the largest value an amount column (decimal(12,2)) holds
var MaxAmount = decimal.RequireFromString("9999999999.99")

// AmountError describes why d cannot be stored as an amount, or returns ""
// when it can: amounts are positive, whole cents and at most MaxAmount.
func AmountError(d decimal.Decimal) string {
	switch {
	case !d.IsPositive():
		return "must be greater than 0"
	case !d.Equal(d.Round(2)):
		return "must have at most 2 decimal places"
	case d.GreaterThan(MaxAmount):
		return "must not exceed " + MaxAmount.StringFixed(2)
	}
	return ""
}

// MaxZero floors a balance at zero
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
