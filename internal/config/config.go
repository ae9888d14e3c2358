// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the HTTP API, the job store, and the
// dataset catalog.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Job store
	RedisURL      string        // redis:// URL; empty selects the in-memory store
	JobTTL        time.Duration // job record lifetime, refreshed on write (default 1h)
	HistoryDBPath string        // SQLite job history file; empty disables history

	// Datasets
	DataRoot          string            // root of the default datasource
	Datasources       map[string]string // extra named datasources: id -> root
	AllowedExtensions []string          // file extension allow-list (default .csv,.parquet,.jsonl)

	// Execution
	MaxWorkers      int // concurrent background jobs (default 4)
	DefaultRowLimit int // query result cap when the plan gives none (default 50000)
	InferRows       int // rows read per file during schema inference (default 10000)

	// Auth
	SharedSecret string // bearer token required on all /v1 routes; empty disables auth

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
// REDIS_URL is optional — without it jobs live in process memory.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:    os.Getenv("LISTEN_ADDR"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		Env:           os.Getenv("ENV"),
		RedisURL:      os.Getenv("REDIS_URL"),
		HistoryDBPath: os.Getenv("HISTORY_DB_PATH"),
		DataRoot:      os.Getenv("DATA_ROOT"),
		SharedSecret:  os.Getenv("AUTH_SHARED_SECRET"),
	}

	if v := os.Getenv("JOB_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JOB_TTL %q: %w", v, err)
		}
		cfg.JobTTL = d
	}
	if v := os.Getenv("MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxWorkers = n
		}
	}
	if v := os.Getenv("DEFAULT_ROW_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultRowLimit = n
		}
	}
	if v := os.Getenv("INFER_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.InferRows = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	if v := os.Getenv("ALLOWED_EXTENSIONS"); v != "" {
		cfg.AllowedExtensions = splitTrimmed(v)
	}

	// Extra datasources: DATASOURCES="sales=/data/sales,logs=/data/logs"
	if v := os.Getenv("DATASOURCES"); v != "" {
		cfg.Datasources = make(map[string]string)
		for _, pair := range splitTrimmed(v) {
			id, root, ok := strings.Cut(pair, "=")
			if !ok || id == "" || root == "" {
				return nil, fmt.Errorf("invalid DATASOURCES entry %q: want id=root", pair)
			}
			cfg.Datasources[strings.TrimSpace(id)] = strings.TrimSpace(root)
		}
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitTrimmed(v)
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.JobTTL == 0 {
		cfg.JobTTL = time.Hour
	}
	if cfg.DataRoot == "" {
		cfg.DataRoot = "."
		cfg.Warnings = append(cfg.Warnings, "DATA_ROOT not set — serving the current directory")
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.DefaultRowLimit <= 0 {
		cfg.DefaultRowLimit = 50000
	}
	if cfg.InferRows <= 0 {
		cfg.InferRows = 10000
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.RedisURL == "" {
		cfg.Warnings = append(cfg.Warnings, "REDIS_URL not set — job state is held in process memory and lost on restart")
	}
	if cfg.SharedSecret == "" {
		cfg.Warnings = append(cfg.Warnings, "AUTH_SHARED_SECRET not set — API is unauthenticated")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.SharedSecret == "" {
			return nil, fmt.Errorf("AUTH_SHARED_SECRET must be set in production (ENV=production)")
		}
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func splitTrimmed(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
