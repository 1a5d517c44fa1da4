// Package export writes expense rows as CSV or PDF downloads.
package export

import (
	"encoding/csv"
	"io"

	"expense_tracker/internal/domain"
)

var csvHeader = []string{"Date", "Category", "Amount", "Description"}

// CSVWriter streams export rows as CSV with a header line
type CSVWriter struct {
	w      *csv.Writer
	header bool
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write appends one row, emitting the header first
func (c *CSVWriter) Write(row domain.ExportRow) error {
	if !c.header {
		if err := c.w.Write(csvHeader); err != nil {
			return err
		}
		c.header = true
	}
	return c.w.Write([]string{
		row.Date.UTC().Format(domain.DateLayout),
		row.Category,
		row.Amount.StringFixed(2),
		row.Description,
	})
}

// Close writes the header if no row was written and flushes
func (c *CSVWriter) Close() error {
	if !c.header {
		if err := c.w.Write(csvHeader); err != nil {
			return err
		}
		c.header = true
	}
	c.w.Flush()
	return c.w.Error()
}
