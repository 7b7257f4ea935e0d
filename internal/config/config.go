package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	DatabaseURL       string
	JWTSecret         string
	JWTIssuer         string
	AccessTTLSeconds  int64
	RefreshTTLSeconds int64
	CookieSecure      bool
	MediaStoragePath  string
	MediaMaxUploadMB  int
	RedisURL          string
	IssueDailyLimit   int
	ReferenceCacheTTL int
	HealthDiskPath    string
	CorsOrigins       []string
	LogLevel          string
	LogDir            string
	LogRetentionDays  int
	Port              string
}

func Load() Config {
	return Config{
		DatabaseURL:       mustEnv("DATABASE_URL"),
		JWTSecret:         mustEnv("JWT_SECRET"),
		JWTIssuer:         envOr("JWT_ISSUER", "civic-monitor"),
		AccessTTLSeconds:  int64(envOrInt("ACCESS_TTL_SECONDS", 14400)),
		RefreshTTLSeconds: int64(envOrInt("REFRESH_TTL_SECONDS", 1209600)),
		CookieSecure:      envOrBool("COOKIE_SECURE", false),
		MediaStoragePath:  envOr("MEDIA_STORAGE_PATH", "storage/media"),
		MediaMaxUploadMB:  envOrInt("MEDIA_MAX_UPLOAD_MB", 50),
		RedisURL:          envOr("REDIS_URL", ""),
		IssueDailyLimit:   envOrInt("ISSUE_DAILY_LIMIT", 10),
		ReferenceCacheTTL: envOrInt("REFERENCE_CACHE_TTL_SECONDS", 3600),
		HealthDiskPath:    envOr("HEALTH_DISK_PATH", "storage/media"),
		CorsOrigins:       parseCSV(envOr("CORS_ORIGINS", "")),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		LogDir:            envOr("LOG_DIR", "storage/logs"),
		LogRetentionDays:  envOrInt("LOG_RETENTION_DAYS", 7),
		Port:              envOr("PORT", "8080"),
	}
}

func mustEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		panic("missing env var: " + key)
	}
	return value
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
