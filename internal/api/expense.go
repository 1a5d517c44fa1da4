package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"expense_tracker/internal/apperr"
	"expense_tracker/internal/charts"
	"expense_tracker/internal/domain"
	"expense_tracker/internal/export"
	"expense_tracker/internal/middleware"
	"expense_tracker/internal/service"
)

// Request struct for creating or updating an expense
type ExpenseRequest struct {
	CategoryID   string                     `json:"categoryId" binding:"required"`
	ItemName     string                     `json:"itemName" binding:"max=200"`
	Amount       decimal.Decimal            `json:"amount"`
	Date         string                     `json:"date" binding:"required"`
	Description  string                     `json:"description" binding:"max=1000"`
	CustomFields map[string]json.RawMessage `json:"customFields"`
}

func (r ExpenseRequest) input() (service.ExpenseInput, error) {
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return service.ExpenseInput{}, apperr.Validation("Invalid input", apperr.FieldError{Field: "date", Message: "must be a date"})
	}
	return service.ExpenseInput{
		CategoryID:   r.CategoryID,
		ItemName:     r.ItemName,
		Amount:       r.Amount,
		Date:         date,
		Description:  r.Description,
		CustomFields: r.CustomFields,
	}, nil
}

// Query struct for listing expenses
type ExpenseListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1"`
	Sort     string `form:"sort"`
	Search   string `form:"search"`
	Category string `form:"category"`
}

// Query struct for exports
type ExportQuery struct {
	Search   string `form:"search"`
	Category string `form:"category"`
}

// Request struct for bulk deletion; either days or from and to
type BulkDeleteRequest struct {
	CategoryID string  `json:"categoryId" binding:"required"`
	Days       *int    `json:"days"`
	From       *string `json:"from"`
	To         *string `json:"to"`
}

// ListExpensesHandler returns one page of expenses
func ListExpensesHandler(svc *service.ExpenseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q ExpenseListQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			respondError(c, bindError(err))
			return
		}
		key, dir := service.ParseSort(q.Sort)
		res, err := svc.List(c.Request.Context(), middleware.UserID(c), service.ListQuery{
			Page:       q.Page,
			Limit:      q.Limit,
			SortKey:    key,
			SortDir:    dir,
			CategoryID: q.Category,
			Search:     q.Search,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// CreateExpenseHandler logs an expense
func CreateExpenseHandler(svc *service.ExpenseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ExpenseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		in, err := req.input()
		if err != nil {
			respondError(c, err)
			return
		}
		e, err := svc.Create(c.Request.Context(), middleware.UserID(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"expense": e})
	}
}

// UpdateExpenseHandler replaces an expense
func UpdateExpenseHandler(svc *service.ExpenseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ExpenseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		in, err := req.input()
		if err != nil {
			respondError(c, err)
			return
		}
		e, err := svc.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"expense": e})
	}
}

// DeleteExpenseHandler removes one expense
func DeleteExpenseHandler(svc *service.ExpenseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
	}
}

// BulkDeleteExpensesHandler removes a category's expenses by age or range
func BulkDeleteExpensesHandler(svc *service.ExpenseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BulkDeleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		in := service.BulkDeleteInput{CategoryID: req.CategoryID, Days: req.Days}
		var fields []apperr.FieldError
		for _, d := range []struct {
			name string
			raw  *string
			dst  **time.Time
		}{{"from", req.From, &in.From}, {"to", req.To, &in.To}} {
			if d.raw == nil || *d.raw == "" {
				continue
			}
			t, err := domain.ParseDateInZone(*d.raw)
			if err != nil {
				fields = append(fields, apperr.FieldError{Field: d.name, Message: "must be a date"})
				continue
			}
			*d.dst = &t
		}
		if len(fields) > 0 {
			respondError(c, apperr.Validation("Invalid input", fields...))
			return
		}
		n, err := svc.BulkDelete(c.Request.Context(), middleware.UserID(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": n})
	}
}

// ExportCSVHandler streams the filtered expenses as a CSV attachment
func ExportCSVHandler(svc *service.ExpenseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q ExportQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			respondError(c, bindError(err))
			return
		}
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="expenses.csv"`)
		w := export.NewCSVWriter(c.Writer)
		err := svc.Export(c.Request.Context(), middleware.UserID(c), service.ExportQuery{CategoryID: q.Category, Search: q.Search}, w.Write)
		if err == nil {
			err = w.Close()
		}
		if err != nil {
			if !c.Writer.Written() {
				c.Header("Content-Type", "")
				c.Header("Content-Disposition", "")
				respondError(c, err)
				return
			}
			// the status line is already out; all we can do is log
			logrus.WithFields(logrus.Fields{"user_id": middleware.UserID(c), "error": err.Error()}).Error("CSV export aborted")
			return
		}
		c.Status(http.StatusOK)
	}
}

// ExportPDFHandler renders the filtered expenses as a PDF attachment
func ExportPDFHandler(svc *service.ExpenseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q ExportQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			respondError(c, bindError(err))
			return
		}
		report := export.NewPDFReport()
		err := svc.Export(c.Request.Context(), middleware.UserID(c), service.ExportQuery{CategoryID: q.Category, Search: q.Search}, report.Add)
		if err != nil {
			respondError(c, err)
			return
		}
		pie, err := charts.CategoryPie(report.CategoryTotals())
		if err != nil {
			// render without the chart
			logrus.WithField("error", err.Error()).Warn("Category chart failed")
			pie = nil
		}
		var buf bytes.Buffer
		if err := report.Render(&buf, pie, time.Now()); err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="expenses.pdf"`)
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
	}
}
