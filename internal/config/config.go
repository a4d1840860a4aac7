package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the AdFlow dashboard backend.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Snapshot   SnapshotConfig
	Meta       MetaConfig
	Gemini     GeminiConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ClickHouseConfig configures the optional activity log sink.
type ClickHouseConfig struct {
	Enabled  bool
	Addr     string
	Database string
	Username string
	Password string
}

// SnapshotConfig selects the durable backend for the two state slots.
type SnapshotConfig struct {
	// Backend is "redis", "postgres" or "memory".
	Backend string
}

// MetaConfig carries the Graph API application credentials. The login
// flow refuses to start unless RedirectURL is https or a localhost URL.
type MetaConfig struct {
	AppID       string
	AppSecret   string
	RedirectURL string
	GraphURL    string
}

// GeminiConfig carries the insight generator credentials and models.
type GeminiConfig struct {
	APIKey        string
	BaseURL       string
	AnalysisModel string
	ReportModel   string
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from the environment (and a .env file, if
// present) with sensible defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("ADFLOW_HTTP_ADDR", ":8080"),
			Env:             getEnv("ADFLOW_ENV", "development"),
			ShutdownTimeout: getDurationEnv("ADFLOW_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("ADFLOW_DB_HOST", "localhost"),
			Port:     getIntEnv("ADFLOW_DB_PORT", 5432),
			User:     getEnv("ADFLOW_DB_USER", "adflow"),
			Password: getEnv("ADFLOW_DB_PASSWORD", "adflow_secret"),
			DBName:   getEnv("ADFLOW_DB_NAME", "adflow"),
			SSLMode:  getEnv("ADFLOW_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("ADFLOW_DB_MAX_CONNS", 10),
			MinConns: getIntEnv("ADFLOW_DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("ADFLOW_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("ADFLOW_REDIS_PASSWORD", ""),
			DB:       getIntEnv("ADFLOW_REDIS_DB", 0),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:  getBoolEnv("ADFLOW_CLICKHOUSE_ENABLED", false),
			Addr:     getEnv("ADFLOW_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("ADFLOW_CLICKHOUSE_DB", "adflow"),
			Username: getEnv("ADFLOW_CLICKHOUSE_USER", "default"),
			Password: getEnv("ADFLOW_CLICKHOUSE_PASSWORD", ""),
		},
		Snapshot: SnapshotConfig{
			Backend: getEnv("ADFLOW_SNAPSHOT_BACKEND", "redis"),
		},
		Meta: MetaConfig{
			AppID:       getEnv("ADFLOW_META_APP_ID", ""),
			AppSecret:   getEnv("ADFLOW_META_APP_SECRET", ""),
			RedirectURL: getEnv("ADFLOW_META_REDIRECT_URL", "http://localhost:8080/api/meta/callback"),
			GraphURL:    getEnv("ADFLOW_META_GRAPH_URL", "https://graph.facebook.com/v18.0"),
		},
		Gemini: GeminiConfig{
			APIKey:        getEnv("ADFLOW_GEMINI_API_KEY", ""),
			BaseURL:       getEnv("ADFLOW_GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			AnalysisModel: getEnv("ADFLOW_GEMINI_ANALYSIS_MODEL", "gemini-3-pro-preview"),
			ReportModel:   getEnv("ADFLOW_GEMINI_REPORT_MODEL", "gemini-3-flash-preview"),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("ADFLOW_AUTH_ENABLED", false),
			MasterKey: getEnv("ADFLOW_API_KEY", ""),
			SkipPaths: getSliceEnv("ADFLOW_AUTH_SKIP_PATHS", []string{"/health", "/metrics", "/api/meta/callback"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("ADFLOW_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("ADFLOW_RATE_LIMIT_RPS", 50),
			Burst:   getIntEnv("ADFLOW_RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("ADFLOW_LOG_LEVEL", "info"),
			Format: getEnv("ADFLOW_LOG_FORMAT", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("ADFLOW_METRICS_ENABLED", true),
			Path:    getEnv("ADFLOW_METRICS_PATH", "/metrics"),
		},
	}

	// Unset format follows the environment: readable console output in
	// development, JSON in production.
	if cfg.Log.Format == "" {
		if cfg.IsDevelopment() {
			cfg.Log.Format = "console"
		} else {
			cfg.Log.Format = "json"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("ADFLOW_API_KEY is required when auth is enabled")
	}
	switch c.Snapshot.Backend {
	case "redis", "postgres", "memory":
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.Snapshot.Backend)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
