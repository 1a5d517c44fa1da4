package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"expense_tracker/internal/charts"
	"expense_tracker/internal/middleware"
	"expense_tracker/internal/service"
)

// StatsSummaryHandler returns totals by category and by day
func StatsSummaryHandler(svc *service.StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Summary(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// CategoryChartHandler renders spending by category as a PNG; 204 when the
// user has no expenses.
func CategoryChartHandler(svc *service.StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Summary(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		png, err := charts.CategoryPie(stats.ByCategory)
		if err != nil {
			respondError(c, err)
			return
		}
		if png == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.Header("Cache-Control", "private, max-age="+strconv.Itoa(int(time.Minute.Seconds())))
		c.Data(http.StatusOK, "image/png", png)
	}
}
