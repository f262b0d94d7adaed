package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database drivers supported for the attempt-record store.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds runtime configuration values for the dashboard service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseDriver    string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	RealtimeChannel   string
	SessionSecret     string
	SessionTTL        time.Duration
	UpstreamBaseURL   string
	UpstreamTimeout   time.Duration
	PollInterval      time.Duration
	ProcessingTimeout time.Duration
	MaxUploadMB       int
	SessionIdleTTL    time.Duration
	CacheTTL          time.Duration
	UploadRateLimit   int
	UploadRateWindow  time.Duration
	AllowedOrigins    string
	AccessLog         bool
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// MaxUploadBytes converts the configured upload limit to bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SYLLABUS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Syllabus Dashboard")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.access_log", false)
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.url", "syllabus_dashboard.db")
	v.SetDefault("realtime.channel", "syllabus:dashboard")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("ingestion.poll_interval", "1s")
	v.SetDefault("ingestion.processing_timeout", "10m")
	v.SetDefault("ingestion.max_upload_mb", 10)
	v.SetDefault("ingestion.session_idle_ttl", "2h")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("upload.rate_limit", 5)
	v.SetDefault("upload.rate_window", "1m")
	v.SetDefault("cors.allowed_origins", "*")

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		AccessLog:       v.GetBool("app.access_log"),
		DatabaseDriver:  strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		RealtimeChannel: v.GetString("realtime.channel"),
		SessionSecret:   v.GetString("session.secret"),
		UpstreamBaseURL: v.GetString("upstream.base_url"),
		MaxUploadMB:     v.GetInt("ingestion.max_upload_mb"),
		UploadRateLimit: v.GetInt("upload.rate_limit"),
		AllowedOrigins:  v.GetString("cors.allowed_origins"),
	}

	durations := map[string]*time.Duration{
		"session.ttl":                  &cfg.SessionTTL,
		"upstream.timeout":             &cfg.UpstreamTimeout,
		"ingestion.poll_interval":      &cfg.PollInterval,
		"ingestion.processing_timeout": &cfg.ProcessingTimeout,
		"ingestion.session_idle_ttl":   &cfg.SessionIdleTTL,
		"cache.ttl":                    &cfg.CacheTTL,
		"upload.rate_window":           &cfg.UploadRateWindow,
	}

	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		*target = parsed
	}

	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("session secret must be provided")
	}
	if cfg.UpstreamBaseURL == "" {
		return Config{}, fmt.Errorf("upstream base url must be provided")
	}
	if cfg.DatabaseDriver != DriverPostgres && cfg.DatabaseDriver != DriverSQLite {
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.UploadRateLimit <= 0 {
		cfg.UploadRateLimit = 5
	}

	return cfg, nil
}
