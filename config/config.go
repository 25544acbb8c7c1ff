package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"playsync/adapters/pebble"
	"playsync/adapters/redis"
	"playsync/adapters/sqlx"
	"playsync/core"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"PLAYSYNC_ENV"`
	Profile     string      `json:"profile" env:"PLAYSYNC_PROFILE"`

	// Sidecar HTTP server configuration
	Server ServerConfig `json:"server"`

	// Durable local key-value storage
	Local LocalConfig `json:"local"`

	// Games service connection
	Remote RemoteConfig `json:"remote"`

	// Mirrored leaderboard
	Leaderboard LeaderboardConfig `json:"leaderboard"`

	// Known achievements and their targets. File only.
	Catalog []CatalogEntry `json:"catalog,omitempty"`

	// Reconciliation settings
	Sync SyncConfig `json:"sync"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Event notifications
	Notify NotifyConfig `json:"notify"`

	// Security configuration
	Security SecurityConfig `json:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"PLAYSYNC_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"PLAYSYNC_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"PLAYSYNC_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"PLAYSYNC_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"PLAYSYNC_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"PLAYSYNC_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"PLAYSYNC_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"PLAYSYNC_SERVER_SHUTDOWN_TIMEOUT"`
}

// LocalConfig holds local storage adapter configuration
type LocalConfig struct {
	Adapter string        `json:"adapter" env:"PLAYSYNC_LOCAL_ADAPTER"`
	File    FileConfig    `json:"file,omitempty"`
	Pebble  pebble.Config `json:"pebble,omitempty"`
	Redis   redis.Config  `json:"redis,omitempty"`
	SQL     sqlx.Config   `json:"sql,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" env:"PLAYSYNC_LOCAL_FILE_PATH"`
}

// RemoteConfig selects the games service. Adapter "none" runs local-only,
// "memory" uses an in-process stand-in and "http" talks to BaseURL.
type RemoteConfig struct {
	Adapter         string        `json:"adapter" env:"PLAYSYNC_REMOTE_ADAPTER"`
	BaseURL         string        `json:"base_url" env:"PLAYSYNC_REMOTE_BASE_URL"`
	APIKey          string        `json:"api_key,omitempty" env:"PLAYSYNC_REMOTE_API_KEY"`
	AuthToken       string        `json:"auth_token,omitempty" env:"PLAYSYNC_REMOTE_AUTH_TOKEN"`
	AuthTokenSecret string        `json:"auth_token_secret,omitempty" env:"PLAYSYNC_REMOTE_AUTH_TOKEN_SECRET"`
	Timeout         time.Duration `json:"timeout" env:"PLAYSYNC_REMOTE_TIMEOUT"`
	Player          string        `json:"player,omitempty" env:"PLAYSYNC_REMOTE_PLAYER"`
}

// LeaderboardConfig holds the mirrored leaderboard settings
type LeaderboardConfig struct {
	ID    string `json:"id" env:"PLAYSYNC_LEADERBOARD_ID"`
	Order string `json:"order" env:"PLAYSYNC_LEADERBOARD_ORDER"`
}

// ScoreOrder parses Order.
func (l LeaderboardConfig) ScoreOrder() core.ScoreOrder {
	o, _ := core.ParseScoreOrder(l.Order)
	return o
}

// CatalogEntry declares an achievement and its target.
type CatalogEntry struct {
	ID     string `json:"id"`
	Target int64  `json:"target"`
}

// Achievements converts the catalog into zero-progress achievements.
func (c *Config) Achievements() []core.Achievement {
	out := make([]core.Achievement, 0, len(c.Catalog))
	for _, e := range c.Catalog {
		out = append(out, core.Achievement{ID: core.AchievementID(e.ID), Target: e.Target})
	}
	return out
}

// SyncConfig holds reconciliation settings
type SyncConfig struct {
	RemoteTimeout time.Duration `json:"remote_timeout" env:"PLAYSYNC_SYNC_REMOTE_TIMEOUT"`
	Interval      time.Duration `json:"interval" env:"PLAYSYNC_SYNC_INTERVAL"`
	User          string        `json:"user,omitempty" env:"PLAYSYNC_SYNC_USER"`
	Dispatch      string        `json:"dispatch" env:"PLAYSYNC_SYNC_DISPATCH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"PLAYSYNC_LOG_LEVEL"`
	Format     string            `json:"format" env:"PLAYSYNC_LOG_FORMAT"`
	Output     string            `json:"output" env:"PLAYSYNC_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"PLAYSYNC_LOG_ATTRIBUTES"`
}

// NotifyConfig holds webhook delivery configuration
type NotifyConfig struct {
	Webhooks   []string      `json:"webhooks,omitempty" env:"PLAYSYNC_NOTIFY_WEBHOOKS"`
	EventTypes []string      `json:"event_types,omitempty" env:"PLAYSYNC_NOTIFY_EVENT_TYPES"`
	Timeout    time.Duration `json:"timeout" env:"PLAYSYNC_NOTIFY_TIMEOUT"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"PLAYSYNC_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" env:"PLAYSYNC_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" env:"PLAYSYNC_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" env:"PLAYSYNC_SECURITY_RATE_LIMIT_BURST"`
}

// Load builds configuration from defaults (or the PLAYSYNC_PROFILE profile)
// and environment variables, then validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if name := os.Getenv("PLAYSYNC_PROFILE"); name != "" {
		p, err := LoadProfile(name)
		if err != nil {
			return nil, err
		}
		cfg = p
	}

	// Load from environment variables
	if err := ParseEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(path string) (*Config, error) {
	// Validate the path for security
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	// Open the file safely after validation
	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Environment variables override file values
	if err := ParseEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           "127.0.0.1:8787",
			PathPrefix:        "/api",
			CORSOrigin:        "",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Local: LocalConfig{
			Adapter: "memory",
			File: FileConfig{
				Path: "./data/playsync.json",
			},
			Pebble: pebble.DefaultConfig(),
			Redis:  redis.DefaultConfig(),
			SQL:    sqlx.DefaultConfig(),
		},
		Remote: RemoteConfig{
			Adapter: "none",
			Timeout: 10 * time.Second,
		},
		Leaderboard: LeaderboardConfig{
			Order: core.HigherIsBetter.String(),
		},
		Sync: SyncConfig{
			RemoteTimeout: 15 * time.Second,
			Interval:      0,
			Dispatch:      "async",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Notify: NotifyConfig{
			Timeout: 2 * time.Second,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 600,
				BurstSize:         50,
			},
			APIKeys: []string{},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	// Validate environment
	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	sections := []struct {
		name string
		err  error
	}{
		{"server", c.Server.Validate()},
		{"local", c.Local.Validate()},
		{"remote", c.Remote.Validate()},
		{"leaderboard", c.Leaderboard.Validate()},
		{"catalog", validateCatalog(c.Catalog)},
		{"sync", c.Sync.Validate()},
		{"logging", c.Logging.Validate()},
		{"notify", c.Notify.Validate()},
		{"security", c.Security.Validate()},
	}
	for _, s := range sections {
		if s.err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, s.err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	// Create a copy for redaction
	cfg := *c

	// Redact sensitive information
	if cfg.Local.SQL.DSN != "" {
		cfg.Local.SQL.DSN = "[REDACTED]"
	}
	if cfg.Local.Redis.Password != "" {
		cfg.Local.Redis.Password = "[REDACTED]"
	}
	if cfg.Remote.APIKey != "" {
		cfg.Remote.APIKey = "[REDACTED]"
	}
	if cfg.Remote.AuthToken != "" {
		cfg.Remote.AuthToken = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{"[REDACTED]"}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
