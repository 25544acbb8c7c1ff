package playsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"playsync/adapters/gamesapi"
	"playsync/adapters/jsonfile"
	"playsync/adapters/memory"
	"playsync/adapters/pebble"
	"playsync/adapters/redis"
	"playsync/adapters/sqlx"
	"playsync/analytics"
	"playsync/core"
	"playsync/engine"
	"playsync/integrations/webhook"
	"playsync/realtime"
)

// Option configures the client builder.
type Option func(*config)

type config struct {
	local         engine.LocalStore
	remote        engine.RemoteStore
	avail         engine.Availability
	session       *core.Session
	board         core.LeaderboardID
	order         core.ScoreOrder
	catalog       []core.Achievement
	mode          engine.DispatchMode
	rules         engine.RuleEngine
	hub           *realtime.Hub
	sinks         []*webhook.Sink
	hooks         []analytics.Hook
	remoteTimeout time.Duration
	logger        *slog.Logger
}

// WithLocalStore sets the durable key-value store.
func WithLocalStore(s engine.LocalStore) Option { return func(c *config) { c.local = s } }

// WithRemote sets the games service. If it also implements
// engine.Availability and no availability was given, it answers that too.
func WithRemote(r engine.RemoteStore) Option { return func(c *config) { c.remote = r } }

// WithAvailability sets the "is the games service present" check.
func WithAvailability(a engine.Availability) Option { return func(c *config) { c.avail = a } }

// WithLeaderboard selects the leaderboard mirrored locally and how scores rank.
func WithLeaderboard(id core.LeaderboardID, order core.ScoreOrder) Option {
	return func(c *config) {
		c.board = id
		c.order = order
	}
}

// WithCatalog seeds known achievements and their targets.
func WithCatalog(achievements ...core.Achievement) Option {
	return func(c *config) { c.catalog = append(c.catalog, achievements...) }
}

// WithRuleEngine sets the rule engine.
func WithRuleEngine(r engine.RuleEngine) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all client events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithWebhooks forwards all client events to the given sinks.
func WithWebhooks(sinks ...*webhook.Sink) Option {
	return func(c *config) { c.sinks = append(c.sinks, sinks...) }
}

// WithAnalytics feeds all client events to the given hooks.
func WithAnalytics(hooks ...analytics.Hook) Option {
	return func(c *config) { c.hooks = append(c.hooks, hooks...) }
}

// WithSession shares a session with other components.
func WithSession(s *core.Session) Option { return func(c *config) { c.session = s } }

// WithRemoteTimeout bounds each remote await.
func WithRemoteTimeout(d time.Duration) Option { return func(c *config) { c.remoteTimeout = d } }

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// New builds a Client and hydrates it from local storage. If not provided,
// defaults are used:
//   - local store: in-memory
//   - remote: none (local-only)
//   - rules: DefaultRuleEngine
//   - dispatch: async
func New(ctx context.Context, opts ...Option) (*engine.Client, error) {
	cfg := &config{mode: engine.DispatchAsync, rules: engine.DefaultRuleEngine(), logger: slog.Default()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.local == nil {
		cfg.local = memory.New()
	}
	if cfg.board != "" {
		if err := core.ValidateLeaderboardID(cfg.board); err != nil {
			return nil, err
		}
	}
	for _, a := range cfg.catalog {
		if err := core.ValidateAchievementID(a.ID); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
	}
	if cfg.avail == nil {
		if a, ok := cfg.remote.(engine.Availability); ok {
			cfg.avail = a
		}
	}

	bus := engine.NewEventBus(cfg.mode)
	bus.SetLogger(cfg.logger)
	if cfg.hub != nil {
		bus.SubscribeAll(cfg.hub.Broadcast)
	}
	for _, s := range cfg.sinks {
		bus.SubscribeAll(s.OnEvent)
	}
	if len(cfg.hooks) > 0 {
		bus.SubscribeAll(analytics.NewBridge(cfg.hooks...).OnEvent)
	}

	client := engine.NewClient(cfg.local, bus, cfg.rules, engine.Options{
		Remote:        cfg.remote,
		Availability:  cfg.avail,
		Session:       cfg.session,
		Leaderboard:   cfg.board,
		Order:         cfg.order,
		Catalog:       cfg.catalog,
		RemoteTimeout: cfg.remoteTimeout,
		Logger:        cfg.logger,
	})
	if err := client.LoadLocal(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("load local state: %w", err)
	}
	return client, nil
}

var (
	_ engine.LocalStore = (*memory.Store)(nil)
	_ engine.LocalStore = (*jsonfile.Store)(nil)
	_ engine.LocalStore = (*pebble.Store)(nil)
	_ engine.LocalStore = (*redis.Store)(nil)
	_ engine.LocalStore = (*sqlx.Store)(nil)

	_ engine.RemoteStore = (*memory.Remote)(nil)
	_ engine.RemoteStore = (*gamesapi.Client)(nil)
)
