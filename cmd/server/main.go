package main

import (
	"context"   // context package is needed for Redis operations and shutdown
	"errors"    // errors package is needed to detect a closed server
	"net/http"  // HTTP server
	"os"        // Exit codes
	"os/signal" // Graceful shutdown on interrupt
	"syscall"   // SIGTERM
	"time"      // Shutdown deadline

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"github.com/spf13/cobra"       // Command line flags

	"expense_tracker/internal/api"    // Custom package for API handlers
	"expense_tracker/internal/config" // Custom package for configuration
	"expense_tracker/internal/db"     // Custom package for database access
	"expense_tracker/internal/utils"  // Logger setup
)

var (
	envFile     string
	autoMigrate bool
)

var rootCmd = &cobra.Command{
	Use:          "server",
	Short:        "Run the expense tracker API",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "env file to load (default: .env when present)")
	rootCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "migrate the schema before serving")
}

// Main function to set up and run the server
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(envFile) // Load configuration
	if err != nil {
		return err
	}
	if err := utils.ConfigureLogger(cfg.LogLevel, cfg.IsProd); err != nil {
		return err
	}

	// Connect to the database; startup fails if it is unreachable
	gdb, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return err
	}
	if autoMigrate {
		if err := db.Migrate(gdb); err != nil {
			return err
		}
	}

	// Setup Redis client when configured
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		defer redisClient.Close()
		// Test Redis connection
		if err := redisClient.Ping(cmd.Context()).Err(); err != nil {
			return err
		}
	} else {
		logrus.Warn("REDIS_ADDR not set; report cache and auth rate limit disabled")
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r, err := api.NewRouter(cfg, gdb, redisClient)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	logrus.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
