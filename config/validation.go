package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"playsync/adapters/sqlx"
	"playsync/core"
)

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}

	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}

	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	return joinErrs(errs)
}

// Validate validates local storage configuration
func (l *LocalConfig) Validate() error {
	var errs []string

	validAdapters := []string{"memory", "file", "pebble", "redis", "sql"}
	if !slices.Contains(validAdapters, l.Adapter) {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(validAdapters, ", ")))
	}

	// Validate adapter-specific configs
	switch l.Adapter {
	case "file":
		if err := l.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "pebble":
		if strings.TrimSpace(l.Pebble.Dir) == "" {
			errs = append(errs, "pebble config: dir cannot be empty")
		}
	case "redis":
		if strings.TrimSpace(l.Redis.Addr) == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	case "sql":
		if _, err := sqlx.ParseDriver(l.SQL.Driver); err != nil {
			errs = append(errs, fmt.Sprintf("sql config: %v", err))
		}
		if strings.TrimSpace(l.SQL.DSN) == "" {
			errs = append(errs, "sql config: dsn cannot be empty")
		}
	}

	return joinErrs(errs)
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates games service configuration
func (r *RemoteConfig) Validate() error {
	var errs []string

	validAdapters := []string{"none", "memory", "http"}
	if !slices.Contains(validAdapters, r.Adapter) {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(validAdapters, ", ")))
	}
	if r.Adapter == "http" {
		u, err := url.Parse(r.BaseURL)
		if r.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "base_url must be an absolute URL when adapter is http")
		}
	}
	if r.Timeout < 0 {
		errs = append(errs, "timeout cannot be negative")
	}

	return joinErrs(errs)
}

// Validate validates leaderboard configuration
func (l *LeaderboardConfig) Validate() error {
	var errs []string
	if l.ID != "" {
		if err := core.ValidateLeaderboardID(core.LeaderboardID(l.ID)); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if _, err := core.ParseScoreOrder(l.Order); err != nil {
		errs = append(errs, err.Error())
	}
	return joinErrs(errs)
}

func validateCatalog(entries []CatalogEntry) error {
	var errs []string
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if err := core.ValidateAchievementID(core.AchievementID(e.ID)); err != nil {
			errs = append(errs, fmt.Sprintf("[%d]: %v", i, err))
			continue
		}
		if _, dup := seen[e.ID]; dup {
			errs = append(errs, fmt.Sprintf("[%d]: duplicate id %q", i, e.ID))
		}
		seen[e.ID] = struct{}{}
		if e.Target <= 0 {
			errs = append(errs, fmt.Sprintf("[%d]: target must be positive", i))
		}
	}
	return joinErrs(errs)
}

// Validate validates sync configuration
func (s *SyncConfig) Validate() error {
	var errs []string
	if s.RemoteTimeout < 0 {
		errs = append(errs, "remote_timeout cannot be negative")
	}
	if s.Interval < 0 {
		errs = append(errs, "interval cannot be negative")
	}
	if s.Dispatch != "async" && s.Dispatch != "sync" {
		errs = append(errs, "dispatch must be one of: async, sync")
	}
	return joinErrs(errs)
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, l.Level) {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(validLevels, ", ")))
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, l.Format) {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(validFormats, ", ")))
	}

	validOutputs := []string{"stdout", "stderr"}
	if !slices.Contains(validOutputs, l.Output) {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(validOutputs, ", ")))
	}

	return joinErrs(errs)
}

// Validate validates notification configuration
func (n *NotifyConfig) Validate() error {
	var errs []string
	for i, hook := range n.Webhooks {
		u, err := url.Parse(hook)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("webhooks[%d] must be an http(s) URL", i))
		}
	}
	if len(n.Webhooks) > 0 && n.Timeout <= 0 {
		errs = append(errs, "timeout must be positive when webhooks are set")
	}
	return joinErrs(errs)
}

// Validate validates security settings.
func (s SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	return joinErrs(errs)
}

func joinErrs(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
