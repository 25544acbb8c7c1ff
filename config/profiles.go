package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the defaults for a named deployment profile. The
// result is not validated; callers apply overrides first.
func LoadProfile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name
	switch name {
	case "development":
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
		cfg.Local.Adapter = "file"
		cfg.Remote.Adapter = "memory"
		cfg.Remote.Player = "dev-player"
		cfg.Server.CORSOrigin = "*"
	case "testing":
		cfg.Environment = EnvTesting
		cfg.Logging.Level = "warn"
		cfg.Local.Adapter = "memory"
		cfg.Remote.Adapter = "memory"
		cfg.Remote.Player = "test-player"
		cfg.Sync.Dispatch = "sync"
		cfg.Sync.RemoteTimeout = 2 * time.Second
	case "staging":
		cfg.Environment = EnvStaging
		cfg.Local.Adapter = "pebble"
		cfg.Remote.Adapter = "http"
		cfg.Sync.Interval = time.Minute
	case "production":
		cfg.Environment = EnvProduction
		cfg.Local.Adapter = "pebble"
		cfg.Remote.Adapter = "http"
		cfg.Sync.Interval = 5 * time.Minute
		cfg.Security.EnableRateLimit = true
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return cfg, nil
}
