package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	DatabaseURL          string
	PublicBaseURL        string
	StateEncryptionKey   string
	MailgunSigningKey    string
	GoogleClientID       string
	GoogleClientSecret   string
	SessionJWTSecret     string
	DefaultTenantID      string
	BootstrapOwnerUserID string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	StateMaxAge          time.Duration
	WebhookSkew          time.Duration
	ServiceName          string
	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
// Secrets have no defaults: a missing secret fails Load instead of degrading
// the crypto paths at request time.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		PublicBaseURL:        strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/"),
		StateEncryptionKey:   strings.TrimSpace(os.Getenv("STATE_ENCRYPTION_KEY")),
		MailgunSigningKey:    strings.TrimSpace(os.Getenv("MAILGUN_SIGNING_KEY")),
		GoogleClientID:       strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret:   strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		SessionJWTSecret:     strings.TrimSpace(os.Getenv("SESSION_JWT_SECRET")),
		DefaultTenantID:      strings.TrimSpace(os.Getenv("DEFAULT_TENANT")),
		BootstrapOwnerUserID: strings.TrimSpace(os.Getenv("BOOTSTRAP_OWNER_USER_ID")),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		StateMaxAge:          getDuration("OAUTH_STATE_MAX_AGE", 10*time.Minute),
		WebhookSkew:          getDuration("WEBHOOK_TIMESTAMP_SKEW", 5*time.Minute),
		ServiceName:          getEnv("SERVICE_NAME", "casedesk-integrations"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Tenant-ID"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.StateEncryptionKey == "" {
		return Config{}, fmt.Errorf("STATE_ENCRYPTION_KEY is required")
	}
	if cfg.MailgunSigningKey == "" {
		return Config{}, fmt.Errorf("MAILGUN_SIGNING_KEY is required")
	}
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return Config{}, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	if cfg.SessionJWTSecret == "" {
		return Config{}, fmt.Errorf("SESSION_JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
