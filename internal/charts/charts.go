// Package charts renders spending charts as PNG images.
package charts

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	"expense_tracker/internal/service"
)

// CategoryPie draws each category's share of total spending. It returns nil
// when there is nothing to draw.
func CategoryPie(stats []service.CategoryStat) ([]byte, error) {
	var total float64
	values := make([]chart.Value, 0, len(stats))
	for _, s := range stats {
		amount := s.Total.InexactFloat64()
		if amount <= 0 {
			continue
		}
		total += amount
		values = append(values, chart.Value{Label: s.Name, Value: amount})
	}
	if len(values) == 0 {
		return nil, nil
	}
	for i := range values {
		v := values[i].Value
		values[i].Label = fmt.Sprintf("%s: %.2f (%.1f%%)", values[i].Label, v, v/total*100)
	}

	pie := chart.PieChart{
		Title:  "Spending by category",
		Width:  800,
		Height: 600,
		Values: values,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   40,
				Right:  40,
				Bottom: 40,
			},
			FillColor: chart.ColorWhite,
		},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render category pie: %w", err)
	}
	return buffer.Bytes(), nil
}
