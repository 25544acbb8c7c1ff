package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	wsadapter "playsync/adapters/websocket"
	"playsync/analytics"
	"playsync/core"
	"playsync/engine"
	"playsync/leaderboard"
	"playsync/realtime"
)

// Client is the sync surface the API drives.
type Client interface {
	SignIn(ctx context.Context) bool
	Session() *core.Session
	RemoteAvailable() bool
	UpdateAchievement(ctx context.Context, id core.AchievementID, steps int64) bool
	AchievementStates() core.AchievementState
	PushAchievements(ctx context.Context) int
	PostScore(ctx context.Context, user core.UserID, value int64) error
	LocalScore(user core.UserID) (core.Score, bool)
	LocalRank(user core.UserID) (int, bool)
	Leaderboard() (core.LeaderboardID, core.ScoreOrder)
	LeaderboardTop(n int) []leaderboard.Entry
	Sync(ctx context.Context, user core.UserID) (engine.SyncReport, error)
	Ping(ctx context.Context) error
}

// StatsSource reports event counters.
type StatsSource interface {
	Summary() analytics.Summary
}

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Stats, if set, is served at {prefix}/stats.
	Stats StatsSource
}

// NewMux builds an http.Handler that lets a local game process drive the sync layer.
// Routes:
//   - GET  {prefix}/achievements
//   - POST {prefix}/achievements/{id}/progress?steps=1
//   - POST {prefix}/achievements/push
//   - POST {prefix}/scores?user=alice&value=100
//   - GET  {prefix}/scores/{user}
//   - GET  {prefix}/leaderboard?n=10
//   - POST {prefix}/sync?user=alice
//   - POST {prefix}/signin
//   - GET  {prefix}/healthz
//   - GET  {prefix}/stats
//   - WS   {prefix}/ws
func NewMux(client Client, hub *realtime.Hub, opts Options) http.Handler {
	mux := http.NewServeMux()
	route := func(method, path string) string { return method + " " + withPrefix(opts.PathPrefix, path) }

	// health
	mux.HandleFunc(route(http.MethodGet, "/healthz"), func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, client)
	})

	if opts.Stats != nil {
		mux.HandleFunc(route(http.MethodGet, "/stats"), func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, opts.Stats.Summary())
		})
	}

	// WebSocket events
	if hub != nil {
		mux.Handle(route(http.MethodGet, "/ws"), wsadapter.Handler(hub))
	}

	mux.HandleFunc(route(http.MethodGet, "/achievements"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"items": achievementList(client.AchievementStates())})
	})

	mux.HandleFunc(route(http.MethodPost, "/achievements/push"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"pushed": client.PushAchievements(r.Context())})
	})

	mux.HandleFunc(route(http.MethodPost, "/achievements/{id}/progress"), func(w http.ResponseWriter, r *http.Request) {
		id := core.AchievementID(r.PathValue("id"))
		if err := core.ValidateAchievementID(id); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_achievement", err.Error(), nil)
			return
		}
		steps := int64(1)
		if raw := r.URL.Query().Get("steps"); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_steps", "steps must be a positive integer", nil)
				return
			}
			steps = n
		}
		changed := client.UpdateAchievement(r.Context(), id, steps)
		a, _ := client.AchievementStates().Achievement(id)
		writeJSON(w, map[string]any{"changed": changed, "achievement": a, "unlocked": a.Unlocked()})
	})

	mux.HandleFunc(route(http.MethodPost, "/scores"), func(w http.ResponseWriter, r *http.Request) {
		user, err := core.NormalizeUserID(core.UserID(r.URL.Query().Get("user")))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
			return
		}
		value, err := strconv.ParseInt(r.URL.Query().Get("value"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_value", "value must be an integer", nil)
			return
		}
		if err := client.PostScore(r.Context(), user, value); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
			return
		}
		best, _ := client.LocalScore(user)
		writeJSON(w, map[string]any{"ok": true, "best": best})
	})

	mux.HandleFunc(route(http.MethodGet, "/scores/{user}"), func(w http.ResponseWriter, r *http.Request) {
		user := core.UserID(r.PathValue("user"))
		s, ok := client.LocalScore(user)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "no score recorded", nil)
			return
		}
		rank, _ := client.LocalRank(user)
		writeJSON(w, rankedScore{Score: s, Rank: rank})
	})

	mux.HandleFunc(route(http.MethodGet, "/leaderboard"), func(w http.ResponseWriter, r *http.Request) {
		n := 10
		if raw := r.URL.Query().Get("n"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_n", "n must be a positive integer", nil)
				return
			}
			n = v
		}
		board, order := client.Leaderboard()
		writeJSON(w, map[string]any{"leaderboard": board, "order": order.String(), "entries": client.LeaderboardTop(n)})
	})

	mux.HandleFunc(route(http.MethodPost, "/sync"), func(w http.ResponseWriter, r *http.Request) {
		// an absent user falls back to the signed-in player
		var user core.UserID
		if raw, ok := r.URL.Query()["user"]; ok {
			u, err := core.NormalizeUserID(core.UserID(raw[0]))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
				return
			}
			user = u
		}
		report, err := client.Sync(r.Context(), user)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "sync_failed", err.Error(), nil)
			return
		}
		writeJSON(w, report)
	})

	mux.HandleFunc(route(http.MethodPost, "/signin"), func(w http.ResponseWriter, r *http.Request) {
		ok := client.SignIn(r.Context())
		st := client.Session().Snapshot()
		writeJSON(w, map[string]any{"authenticated": ok, "player_id": st.PlayerID})
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

// Helpers

// healthCheck verifies local storage answers and reports remote status.
func healthCheck(w http.ResponseWriter, r *http.Request, client Client) {
	checks := map[string]any{
		"storage":   "ok",
		"remote":    "unavailable",
		"signed_in": client.Session().Authenticated(),
	}
	if client.RemoteAvailable() {
		checks["remote"] = "available"
	}
	status := map[string]any{"status": "healthy", "checks": checks}

	w.Header().Set("Content-Type", "application/json")
	if err := client.Ping(r.Context()); err != nil {
		status["status"] = "unhealthy"
		checks["storage"] = "failed"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func achievementList(state core.AchievementState) []core.Achievement {
	out := make([]core.Achievement, 0, len(state))
	for id := range state {
		a, _ := state.Achievement(id)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type rankedScore struct {
	core.Score
	Rank int `json:"rank"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a simple token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}

var (
	_ Client      = (*engine.Client)(nil)
	_ StatsSource = (*analytics.SyncMetrics)(nil)
)
