package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv" // For loading .env files
	"github.com/spf13/viper"   // Environment binding and defaults
)

// Config holds the application configuration
type Config struct {
	AppPort        string        // Application port
	DBDriver       string        // mysql or sqlite
	DBUser         string        // Database user
	DBPassword     string        // Database password
	DBHost         string        // Database host
	DBPort         string        // Database port
	DBName         string        // Database name
	DBDSN          string        // Full DSN, overrides the parts above (file path for sqlite)
	JWTSecret      string        // JWT secret key
	JWTCookieName  string        // Session cookie name
	CSRFCookieName string        // CSRF secret cookie name
	ClientOrigin   string        // SPA origin allowed by CORS
	RedisAddr      string        // Redis server address, empty disables caching
	RedisPass      string        // Redis password
	RedisDB        int           // Redis database number
	CacheTTL       time.Duration // Report cache lifetime
	AuthRateLimit  int           // Signup/login attempts per client per minute
	LogLevel       string        // logrus level name
	IsProd         bool          // Is production environment
	TrustedProxies []string      // Proxies allowed to set forwarding headers
}

var (
	ErrMissingSecret = errors.New("JWT_SECRET is required")
	ErrBadDriver     = errors.New("DB_DRIVER must be mysql or sqlite")
)

// LoadConfig loads configuration from the environment, after reading envFile
// (or .env when envFile is empty and the file exists).
func LoadConfig(envFile string) (*Config, error) {
	if envFile == "" {
		_ = godotenv.Load() // Load .env file if present
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_PORT", "5000")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("JWT_COOKIE_NAME", "token")
	v.SetDefault("CSRF_COOKIE_NAME", "_csrf")
	v.SetDefault("CLIENT_ORIGIN", "http://localhost:5173")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "60s")
	v.SetDefault("AUTH_RATE_LIMIT", 20)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("IS_PROD", false)
	v.SetDefault("TRUSTED_PROXIES", "127.0.0.1")

	cfg := &Config{
		AppPort:        v.GetString("APP_PORT"),
		DBDriver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBHost:         v.GetString("DB_HOST"),
		DBPort:         v.GetString("DB_PORT"),
		DBName:         v.GetString("DB_NAME"),
		DBDSN:          v.GetString("DB_DSN"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTCookieName:  v.GetString("JWT_COOKIE_NAME"),
		CSRFCookieName: v.GetString("CSRF_COOKIE_NAME"),
		ClientOrigin:   v.GetString("CLIENT_ORIGIN"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPass:      v.GetString("REDIS_PASS"),
		RedisDB:        v.GetInt("REDIS_DB"),
		CacheTTL:       v.GetDuration("CACHE_TTL"),
		AuthRateLimit:  v.GetInt("AUTH_RATE_LIMIT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		IsProd:         v.GetBool("IS_PROD"),
		TrustedProxies: splitList(v.GetString("TRUSTED_PROXIES")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingSecret
	}
	if c.DBDriver != "mysql" && c.DBDriver != "sqlite" {
		return ErrBadDriver
	}
	if c.DBDriver == "sqlite" && c.DBDSN == "" {
		return errors.New("DB_DSN is required for the sqlite driver")
	}
	return nil
}

// DSN returns the data source name for the configured driver
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	// Setup Data Source Name (DSN) for MySQL
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&loc=UTC"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
