package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("CART_STORE", "")

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "memory", cfg.CartStore)
	assert.Equal(t, 5*time.Minute, cfg.ProductCacheTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("OTEL_METRICS_ENABLED", "no")

	cfg := LoadConfig()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 90*time.Minute, cfg.JWTTTL)
	assert.False(t, cfg.OTELMetricsEnabled)
}

func TestLoadConfig_BadValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("CART_TTL", "forever")

	cfg := LoadConfig()

	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 30*24*time.Hour, cfg.CartTTL)
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DBDriver:   "mysql",
		DBUser:     "shop",
		DBPassword: "secret",
		DBHost:     "db",
		DBPort:     "3306",
		DBName:     "storefront",
	}
	assert.Equal(t, "shop:secret@tcp(db:3306)/storefront?parseTime=true&charset=utf8mb4", cfg.GetDSN())

	cfg.DBDriver = "sqlite3"
	cfg.SQLitePath = "/tmp/shop.db"
	assert.Equal(t, "file:/tmp/shop.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", cfg.GetDSN())
}

func TestGetAppPortInt(t *testing.T) {
	assert.Equal(t, 9090, (&Config{AppPort: "9090"}).GetAppPortInt())
	assert.Equal(t, 8080, (&Config{AppPort: "abc"}).GetAppPortInt())
}

func TestValidate_JWTSecret(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		secret  string
		wantErr bool
	}{
		{"default secret in development", "development", DefaultJWTSecret, false},
		{"default secret in production", "production", DefaultJWTSecret, true},
		{"empty secret in production", "production", "", true},
		{"custom secret in production", "production", "s3cr3t-from-vault", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Config{AppEnv: tt.env, JWTSecret: tt.secret}).Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
