package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/civic")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ISSUE_DAILY_LIMIT", "")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("COOKIE_SECURE", "true")

	cfg := Load()
	assert.Equal(t, "civic-monitor", cfg.JWTIssuer)
	assert.Equal(t, 10, cfg.IssueDailyLimit)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CorsOrigins)
	assert.True(t, cfg.CookieSecure)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadPanicsWithoutSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/civic")
	t.Setenv("JWT_SECRET", "")
	assert.Panics(t, func() { Load() })
}

func TestEnvOrIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("MEDIA_MAX_UPLOAD_MB", "lots")
	assert.Equal(t, 50, envOrInt("MEDIA_MAX_UPLOAD_MB", 50))
}
