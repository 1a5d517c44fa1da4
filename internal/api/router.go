package api

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"  // CORS for the SPA origin
	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library

	"expense_tracker/internal/config"
	"expense_tracker/internal/db"
	"expense_tracker/internal/middleware"
	"expense_tracker/internal/service"
	"expense_tracker/internal/utils"
)

// NewRouter wires services, middleware and routes. rdb may be nil, which
// disables the report cache and the auth rate limit.
func NewRouter(cfg *config.Config, gdb *gorm.DB, rdb *redis.Client) (*gin.Engine, error) {
	var cache service.Cache
	if rdb != nil {
		cache = utils.NewReportCache(rdb, cfg.CacheTTL)
	}
	auth := service.NewAuthService(gdb)
	categories := service.NewCategoryService(gdb, cache)
	expenses := service.NewExpenseService(gdb, cache)
	payments := service.NewPaymentService(gdb, cache)
	stats := service.NewStatsService(gdb, cache)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.SecurityHeaders(cfg.IsProd))

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.ClientOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", middleware.CSRFHeader},
		ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", HealthHandler(gdb, rdb))

	sess := session{secret: cfg.JWTSecret, cookieName: cfg.JWTCookieName, secure: cfg.IsProd}
	csrfKey := sha256.Sum256([]byte("csrf:" + cfg.JWTSecret))
	csrf := middleware.NewCSRF(csrfKey[:], cfg.CSRFCookieName, cfg.IsProd, originHost(cfg.ClientOrigin))

	apiGroup := r.Group("/api")
	apiGroup.Use(csrf.Middleware())
	apiGroup.GET("/csrf-token", CSRFTokenHandler(csrf))

	// Auth routes
	authLimit := middleware.RateLimit(rdb, "auth", cfg.AuthRateLimit, time.Minute)
	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/signup", authLimit, SignupHandler(auth, sess))
	authGroup.POST("/login", authLimit, LoginHandler(auth, sess))
	authGroup.POST("/logout", LogoutHandler(sess))
	authGroup.GET("/me", MeHandler(auth, sess))

	// Everything below requires a session
	protected := apiGroup.Group("")
	protected.Use(middleware.SessionAuthMiddleware(cfg.JWTSecret, cfg.JWTCookieName))

	categoryGroup := protected.Group("/categories")
	categoryGroup.GET("", ListCategoriesHandler(categories))
	categoryGroup.POST("", CreateCategoryHandler(categories))
	categoryGroup.POST("/seed-default", SeedCategoriesHandler(categories))
	categoryGroup.PUT("/:id", UpdateCategoryHandler(categories))
	categoryGroup.DELETE("/:id", DeleteCategoryHandler(categories))

	expenseGroup := protected.Group("/expenses")
	expenseGroup.GET("", ListExpensesHandler(expenses))
	expenseGroup.POST("", CreateExpenseHandler(expenses))
	expenseGroup.GET("/export/csv", ExportCSVHandler(expenses))
	expenseGroup.GET("/export/pdf", ExportPDFHandler(expenses))
	expenseGroup.POST("/bulk-delete", BulkDeleteExpensesHandler(expenses))
	expenseGroup.PUT("/:id", UpdateExpenseHandler(expenses))
	expenseGroup.DELETE("/:id", DeleteExpenseHandler(expenses))

	paymentGroup := protected.Group("/payments")
	paymentGroup.POST("", RecordPaymentHandler(payments))
	paymentGroup.GET("/summary", PaymentSummaryHandler(payments))

	statsGroup := protected.Group("/stats")
	statsGroup.GET("/summary", StatsSummaryHandler(stats))
	statsGroup.GET("/chart/categories.png", CategoryChartHandler(stats))

	return r, nil
}

// originHost returns the host[:port] of an origin URL, or "" when it has none
func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Host
}

// HealthHandler reports whether the database (and Redis, when configured)
// answer.
func HealthHandler(gdb *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := gin.H{"database": "ok"}
		code := http.StatusOK
		if err := db.Ping(ctx, gdb); err != nil {
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				// reports work without the cache
				status["redis"] = err.Error()
			}
		}
		c.JSON(code, status)
	}
}
