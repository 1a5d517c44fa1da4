package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"expense_tracker/internal/apperr"
	"expense_tracker/internal/domain"
	"expense_tracker/internal/middleware"
	"expense_tracker/internal/service"
)

// Request struct for recording a payment
type PaymentRequest struct {
	CategoryID string          `json:"categoryId" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
	Note       string          `json:"note" binding:"max=500"`
}

// RecordPaymentHandler appends a payment to a category
func RecordPaymentHandler(svc *service.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		in := service.PaymentInput{CategoryID: req.CategoryID, Amount: req.Amount, Note: req.Note}
		if req.Date != "" {
			date, err := domain.ParseDate(req.Date)
			if err != nil {
				respondError(c, apperr.Validation("Invalid input", apperr.FieldError{Field: "date", Message: "must be a date"}))
				return
			}
			in.Date = &date
		}
		p, err := svc.RecordPayment(c.Request.Context(), middleware.UserID(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"payment": p})
	}
}

// PaymentSummaryHandler reports balances. includeAll defaults to true for a
// single category and to false for the overview.
func PaymentSummaryHandler(svc *service.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := service.SummaryQuery{CategoryID: c.Query("categoryId")}
		q.IncludeAll = q.CategoryID != ""
		if raw := c.Query("includeAll"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				respondError(c, apperr.Validation("Invalid input", apperr.FieldError{Field: "includeAll", Message: "must be true or false"}))
				return
			}
			q.IncludeAll = v
		}
		sum, err := svc.Summary(c.Request.Context(), middleware.UserID(c), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}
