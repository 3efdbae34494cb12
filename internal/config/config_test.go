package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-key-32-bytes-long!!!"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PORTFOLIO_JWT_SECRET", secret)
	t.Setenv("PORTFOLIO_SESSION_SECRET", secret)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "localhost:3000", cfg.ServerAddr())
	assert.Equal(t, "http://localhost:3000/api", cfg.SiteAPIBaseURL())
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
	assert.False(t, cfg.UseRedisCache())
	assert.True(t, cfg.SiteEnabled)
	assert.Equal(t, []string{"127.0.0.1", "::1"}, cfg.TrustedProxies)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORTFOLIO_PORT", "8081")
	t.Setenv("PORTFOLIO_DB_DRIVER", "postgres")
	t.Setenv("PORTFOLIO_TOKEN_TTL", "2h")
	t.Setenv("PORTFOLIO_API_BASE_URL", "https://api.example.com/api")
	t.Setenv("PORTFOLIO_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PORTFOLIO_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "https://api.example.com/api", cfg.SiteAPIBaseURL())
	assert.True(t, cfg.UseRedisCache())
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.TrustedProxies)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"short jwt secret", "PORTFOLIO_JWT_SECRET", "short", "PORTFOLIO_JWT_SECRET"},
		{"short session secret", "PORTFOLIO_SESSION_SECRET", "short", "PORTFOLIO_SESSION_SECRET"},
		{"unknown driver", "PORTFOLIO_DB_DRIVER", "mongodb", "PORTFOLIO_DB_DRIVER"},
		{"bad port", "PORTFOLIO_PORT", "70000", "PORTFOLIO_PORT"},
		{"relative api url", "PORTFOLIO_API_BASE_URL", "/api", "PORTFOLIO_API_BASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}
