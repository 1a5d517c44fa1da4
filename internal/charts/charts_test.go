package charts

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expense_tracker/internal/service"
)

func TestCategoryPie(t *testing.T) {
	png, err := CategoryPie([]service.CategoryStat{
		{CategoryID: "a", Name: "Rent", Total: decimal.NewFromInt(700)},
		{CategoryID: "b", Name: "Food", Total: decimal.RequireFromString("120.50")},
	})
	require.NoError(t, err)
	require.NotEmpty(t, png)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "output is a PNG")
}

func TestCategoryPieNoData(t *testing.T) {
	png, err := CategoryPie(nil)
	require.NoError(t, err)
	assert.Nil(t, png)

	png, err = CategoryPie([]service.CategoryStat{{Name: "Zero", Total: decimal.Zero}})
	require.NoError(t, err)
	assert.Nil(t, png)
}
