package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	StoreDriver        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	AccessTokenTTL     time.Duration
	AdminEmail         string
	AdminPasswordHash  string
	CORSAllowedOrigins []string
	ListDefaultLimit   int
	ListMaxLimit       int
	RecordCacheTTL     time.Duration
	ReportSnapshotTTL  time.Duration
	IdempotencyTTL     time.Duration
	LoginRateLimit     int
	LoginRateWindow    time.Duration
	BodyLimitBytes     int64
	MigrateOnStart     bool
	WorkerConcurrency  int
	AuditEnabled       bool
	// APIRateLimit is a ulule formatted rate ("600-M") applied per client IP
	// across /api/v1. Empty or "off" disables it.
	APIRateLimit     string
	SnapshotDebounce time.Duration
	SnapshotSchedule string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		StoreDriver:        strings.ToLower(valueOrDefault(k.String("STORE_DRIVER"), StoreDriverPostgres)),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "backend-freight"),
		JWTAudience:        valueOrDefault(k.String("JWT_AUDIENCE"), "freight-console"),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "8h"),
		AdminEmail:         strings.ToLower(strings.TrimSpace(k.String("ADMIN_EMAIL"))),
		AdminPasswordHash:  strings.TrimSpace(k.String("ADMIN_PASSWORD_HASH")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		ListDefaultLimit:   parseInt(k.String("LIST_DEFAULT_LIMIT"), 10),
		ListMaxLimit:       parseInt(k.String("LIST_MAX_LIMIT"), 100),
		RecordCacheTTL:     parseDuration(k.String("RECORD_CACHE_TTL"), "30s"),
		ReportSnapshotTTL:  parseDuration(k.String("REPORT_SNAPSHOT_TTL"), "24h"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		LoginRateLimit:     parseInt(k.String("LOGIN_RATE_LIMIT"), 10),
		LoginRateWindow:    parseDuration(k.String("LOGIN_RATE_WINDOW"), "1m"),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START")),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 4),
		AuditEnabled:       parseBoolDefault(k.String("AUDIT_ENABLED"), true),
		APIRateLimit:       valueOrDefault(k.String("API_RATE_LIMIT"), "600-M"),
		SnapshotDebounce:   parseDuration(k.String("SNAPSHOT_DEBOUNCE"), "5s"),
		SnapshotSchedule:   valueOrDefault(k.String("SNAPSHOT_SCHEDULE"), "@every 15m"),
	}
	if strings.EqualFold(cfg.APIRateLimit, "off") {
		cfg.APIRateLimit = ""
	}

	if cfg.ListMaxLimit < 1 {
		cfg.ListMaxLimit = 100
	}
	if cfg.ListDefaultLimit < 1 || cfg.ListDefaultLimit > cfg.ListMaxLimit {
		cfg.ListDefaultLimit = min(10, cfg.ListMaxLimit)
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
