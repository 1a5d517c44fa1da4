package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_NAME", "expenses")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.AppPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "token", cfg.JWTCookieName)
	assert.Equal(t, "_csrf", cfg.CSRFCookieName)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL)
	assert.Equal(t, 20, cfg.AuthRateLimit)
	assert.Equal(t, []string{"127.0.0.1"}, cfg.TrustedProxies)
	assert.False(t, cfg.IsProd)
	assert.Equal(t, ":@tcp(127.0.0.1:3306)/expenses?parseTime=true&loc=UTC", cfg.DSN())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_DSN", "/tmp/expenses.db")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("IS_PROD", "true")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2,")
	t.Setenv("REDIS_DB", "3")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/expenses.db", cfg.DSN())
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.IsProd)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.TrustedProxies)
}

func TestLoadConfigEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nAPP_PORT=8081\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("JWT_SECRET")
		_ = os.Unsetenv("APP_PORT")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "8081", cfg.AppPort)
}

func TestLoadConfigMissingEnvFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{name: "missing secret", cfg: Config{DBDriver: "mysql"}, err: ErrMissingSecret},
		{name: "unknown driver", cfg: Config{JWTSecret: "x", DBDriver: "postgres"}, err: ErrBadDriver},
		{name: "mysql ok", cfg: Config{JWTSecret: "x", DBDriver: "mysql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}

	cfg := Config{JWTSecret: "x", DBDriver: "sqlite"}
	assert.Error(t, cfg.Validate(), "sqlite needs a DSN")
}
