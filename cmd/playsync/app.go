package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"playsync/adapters/gamesapi"
	"playsync/adapters/jsonfile"
	mem "playsync/adapters/memory"
	pebbleAdapter "playsync/adapters/pebble"
	redisAdapter "playsync/adapters/redis"
	sqlxAdapter "playsync/adapters/sqlx"
	"playsync/analytics"
	"playsync/api/httpapi"
	"playsync/config"
	"playsync/core"
	"playsync/engine"
	"playsync/integrations/webhook"
	"playsync/playsync"
	"playsync/realtime"
)

// ConfigPath is the optional JSON config file given on the command line.
type ConfigPath string

// App aggregates the assembled components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Metrics *analytics.SyncMetrics
	Client  *engine.Client
	Handler http.Handler
	Server  *http.Server
}

func provideConfig(ctx context.Context, path ConfigPath) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(string(path))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ResolveRemoteToken(ctx, config.NewEnvironmentSecretStore()); err != nil {
		return nil, fmt.Errorf("resolve games service token: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg, os.Stdout, os.Stderr)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideMetrics() *analytics.SyncMetrics {
	return analytics.NewSyncMetrics()
}

func provideLocalStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.LocalStore, func(), error) {
	store, err := setupLocalStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Error("failed to close local store", "error", err)
			}
		}
	}
	return store, cleanup, nil
}

func provideRemote(cfg *config.Config, logger *slog.Logger) (engine.RemoteStore, error) {
	return setupRemote(cfg, logger)
}

func provideWebhooks(cfg *config.Config, logger *slog.Logger) []*webhook.Sink {
	if len(cfg.Notify.Webhooks) == 0 {
		return nil
	}
	types := make([]core.EventType, 0, len(cfg.Notify.EventTypes))
	for _, t := range cfg.Notify.EventTypes {
		types = append(types, core.EventType(t))
	}
	return []*webhook.Sink{webhook.New(cfg.Notify.Webhooks,
		webhook.WithClient(&http.Client{Timeout: cfg.Notify.Timeout}),
		webhook.WithEventTypes(types...),
		webhook.WithLogger(logger),
	)}
}

func provideClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, hub *realtime.Hub, metrics *analytics.SyncMetrics, local engine.LocalStore, remote engine.RemoteStore, sinks []*webhook.Sink) (*engine.Client, func(), error) {
	mode := engine.DispatchAsync
	if cfg.Sync.Dispatch == "sync" {
		mode = engine.DispatchSync
	}
	opts := []playsync.Option{
		playsync.WithLocalStore(local),
		playsync.WithLeaderboard(core.LeaderboardID(cfg.Leaderboard.ID), cfg.Leaderboard.ScoreOrder()),
		playsync.WithCatalog(cfg.Achievements()...),
		playsync.WithDispatchMode(mode),
		playsync.WithRealtime(hub),
		playsync.WithWebhooks(sinks...),
		playsync.WithAnalytics(metrics),
		playsync.WithRemoteTimeout(cfg.Sync.RemoteTimeout),
		playsync.WithLogger(logger),
	}
	if remote != nil {
		opts = append(opts, playsync.WithRemote(remote))
	}
	client, err := playsync.New(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

func provideHandler(client *engine.Client, hub *realtime.Hub, metrics *analytics.SyncMetrics, cfg *config.Config) http.Handler {
	return httpapi.NewMux(client, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Stats:            metrics,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config, stdout, stderr io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := stderr
	if cfg.Logging.Output == "stdout" {
		out = stdout
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupLocalStore creates the local storage adapter selected by configuration.
func setupLocalStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.LocalStore, error) {
	switch cfg.Local.Adapter {
	case "memory":
		return mem.New(), nil
	case "file":
		return jsonfile.New(cfg.Local.File.Path)
	case "pebble":
		return pebbleAdapter.Open(cfg.Local.Pebble, logger)
	case "redis":
		return redisAdapter.New(cfg.Local.Redis)
	case "sql":
		return sqlxAdapter.New(ctx, cfg.Local.SQL)
	default:
		return nil, fmt.Errorf("unknown local adapter: %s", cfg.Local.Adapter)
	}
}

// setupRemote creates the games service client. A nil store means local-only.
func setupRemote(cfg *config.Config, logger *slog.Logger) (engine.RemoteStore, error) {
	switch cfg.Remote.Adapter {
	case "", "none":
		return nil, nil
	case "memory":
		return mem.NewRemote(core.UserID(cfg.Remote.Player)), nil
	case "http":
		return gamesapi.NewClient(cfg.Remote.BaseURL,
			gamesapi.WithAPIKey(cfg.Remote.APIKey),
			gamesapi.WithAuthToken(cfg.Remote.AuthToken),
			gamesapi.WithTimeout(cfg.Remote.Timeout),
			gamesapi.WithHeader("User-Agent", "playsync"),
			gamesapi.WithLogger(logger.With("component", "gamesapi")),
		)
	default:
		return nil, errors.New("unknown remote adapter: " + cfg.Remote.Adapter)
	}
}
