package export

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"expense_tracker/internal/domain"
	"expense_tracker/internal/service"
)

const (
	reportTitle = "Expenses Report"
	lineHeight  = 6.0
)

// PDFReport collects export rows and lays them out as a one-table report.
// fpdf builds the document in memory, so rows are buffered until Render.
type PDFReport struct {
	rows   []domain.ExportRow
	total  decimal.Decimal
	totals map[string]decimal.Decimal
}

func NewPDFReport() *PDFReport {
	return &PDFReport{totals: map[string]decimal.Decimal{}}
}

// Add buffers one row; it matches the service export callback
func (r *PDFReport) Add(row domain.ExportRow) error {
	r.rows = append(r.rows, row)
	r.total = r.total.Add(row.Amount)
	r.totals[row.Category] = r.totals[row.Category].Add(row.Amount)
	return nil
}

// CategoryTotals sums the added rows per category name, largest first
func (r *PDFReport) CategoryTotals() []service.CategoryStat {
	out := make([]service.CategoryStat, 0, len(r.totals))
	for name, total := range r.totals {
		out = append(out, service.CategoryStat{Name: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Render writes the PDF. chartPNG, when present, is placed under the table.
func (r *PDFReport) Render(w io.Writer, chartPNG []byte, generated time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(reportTitle, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, reportTitle, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, "Generated "+generated.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{28, 42, 28, 92}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range csvHeader {
		align := "L"
		if i == 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	_, bottom := pdf.GetAutoPageBreak()
	_, pageHeight := pdf.GetPageSize()
	aligns := []string{"L", "L", "R", "L"}
	for _, row := range r.rows {
		cells := [][]string{
			{row.Date.UTC().Format(domain.DateLayout)},
			wrapCell(pdf, tr, row.Category, widths[1]),
			{row.Amount.StringFixed(2)},
			wrapCell(pdf, tr, row.Description, widths[3]),
		}
		lines := 1
		for _, c := range cells {
			lines = max(lines, len(c))
		}
		h := float64(lines) * lineHeight
		if pdf.GetY()+h > pageHeight-bottom {
			pdf.AddPage()
		}
		x0, y := pdf.GetXY()
		x := x0
		for i, c := range cells {
			pdf.Rect(x, y, widths[i], h, "D")
			for j, line := range c {
				pdf.SetXY(x, y+float64(j)*lineHeight)
				pdf.CellFormat(widths[i], lineHeight, line, "", 0, aligns[i], false, 0, "")
			}
			x += widths[i]
		}
		pdf.SetXY(x0, y+h)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(widths[0]+widths[1], 7, fmt.Sprintf("Total (%d expenses)", len(r.rows)), "1", 0, "L", false, 0, "")
	pdf.CellFormat(widths[2], 7, r.total.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 7, "", "1", 1, "L", false, 0, "")

	if len(chartPNG) > 0 {
		pdf.Ln(6)
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader("category-pie", opts, bytes.NewReader(chartPNG))
		pdf.ImageOptions("category-pie", 10, pdf.GetY(), 150, 0, true, opts, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	return pdf.Output(w)
}

// wrapCell splits s into the lines that fit a cell of width w in the current
// font; explicit newlines are kept.
func wrapCell(pdf *fpdf.Fpdf, tr func(string) string, s string, w float64) []string {
	var lines []string
	for _, l := range pdf.SplitLines([]byte(tr(s)), w) {
		lines = append(lines, string(l))
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
