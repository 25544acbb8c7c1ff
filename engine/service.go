package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"playsync/core"
	"playsync/leaderboard"
)

// Options configures a Client. Zero values are valid: without a Remote the
// client runs local-only.
type Options struct {
	Remote        RemoteStore
	Availability  Availability
	Session       *core.Session
	Leaderboard   core.LeaderboardID
	Order         core.ScoreOrder
	Catalog       []core.Achievement
	RemoteTimeout time.Duration
	Logger        *slog.Logger
}

// Client mirrors achievements and leaderboard scores between local storage
// and the games service.
type Client struct {
	local         LocalStore
	remote        RemoteStore
	avail         Availability
	session       *core.Session
	bus           *EventBus
	rules         RuleEngine
	board         core.LeaderboardID
	order         core.ScoreOrder
	remoteTimeout time.Duration
	logger        *slog.Logger

	mu            sync.Mutex
	achievements  core.AchievementState
	remoteKnown   core.AchievementState
	remoteFetched bool
	scores        leaderboard.Board

	// serializes Sync and PostScore so a sync never interleaves a score post
	syncMu sync.Mutex
	// orders achievement writes to local storage; taken before mu
	persistMu sync.Mutex
}

func NewClient(local LocalStore, bus *EventBus, rules RuleEngine, opts Options) *Client {
	if local == nil || bus == nil || rules == nil {
		panic("NewClient requires non-nil local store, bus, and rules")
	}
	c := &Client{
		local:         local,
		remote:        opts.Remote,
		avail:         opts.Availability,
		session:       opts.Session,
		bus:           bus,
		rules:         rules,
		board:         opts.Leaderboard,
		order:         opts.Order,
		remoteTimeout: opts.RemoteTimeout,
		logger:        opts.Logger,
		achievements:  core.AchievementState{},
		remoteKnown:   core.AchievementState{},
		scores:        leaderboard.NewSkipList(opts.Order),
	}
	if c.avail == nil {
		c.avail = Always
	}
	if c.session == nil {
		c.session = core.NewSession()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	for _, a := range opts.Catalog {
		c.achievements[a.ID] = core.Progress{Current: a.Current, Target: a.Target}
	}
	return c
}

func DefaultRuleEngine() RuleEngine {
	return &simpleRuleEngine{rules: []core.Rule{core.UnlockRule{}}}
}

// Subscribe convenience method.
func (c *Client) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return c.bus.Subscribe(typ, handler)
}

// Session returns the shared session state.
func (c *Client) Session() *core.Session { return c.session }

// Leaderboard returns the configured leaderboard id and score order.
func (c *Client) Leaderboard() (core.LeaderboardID, core.ScoreOrder) { return c.board, c.order }

// RemoteAvailable reports whether the games service can be used at all.
func (c *Client) RemoteAvailable() bool {
	return c.remote != nil && c.avail.Available()
}

// LoadLocal hydrates the in-memory caches from local storage.
func (c *Client) LoadLocal(ctx context.Context) error {
	state, err := LoadAchievements(ctx, c.local)
	if err != nil {
		return err
	}
	var scores []core.Score
	if c.board != "" {
		if scores, err = LoadScores(ctx, c.local, c.board); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.achievements = core.MergeAchievements(c.achievements, state)
	c.mu.Unlock()
	for _, s := range scores {
		c.scores.Offer(s.User, s.Value)
	}
	return nil
}

// SignIn checks the player's authentication with the games service and
// records the outcome in the session.
func (c *Client) SignIn(ctx context.Context) bool {
	if !c.RemoteAvailable() {
		c.logger.Debug("games service unavailable, skipping sign-in")
		return false
	}
	cctx, cancel := c.remoteCtx(ctx)
	defer cancel()
	st, err := c.remote.CheckAuthenticated(cctx).Await(cctx)
	if err != nil {
		// status unknown, not signed out
		c.session.Reset()
		c.logger.Warn("sign-in check failed", "error", err)
		return false
	}
	c.session.Record(st.Authenticated, st.PlayerID)
	if !st.Authenticated {
		c.logger.Info("player not signed in to games service")
		return false
	}
	c.logger.Debug("signed in to games service", "player", st.PlayerID)
	c.bus.Publish(ctx, core.NewSignedIn(st.PlayerID))
	return true
}

// remoteReady gates every remote call: the service must be available and the
// player signed in, attempting a sign-in when the session is not yet authenticated.
func (c *Client) remoteReady(ctx context.Context) bool {
	if !c.RemoteAvailable() {
		return false
	}
	if c.session.Authenticated() {
		return true
	}
	return c.SignIn(ctx)
}

func (c *Client) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.remoteTimeout > 0 {
		return context.WithTimeout(ctx, c.remoteTimeout)
	}
	return context.WithCancel(ctx)
}

// UpdateAchievement advances achievement id by steps and persists it locally.
// It reports whether the stored progress changed.
func (c *Client) UpdateAchievement(ctx context.Context, id core.AchievementID, steps int64) bool {
	if err := core.ValidateAchievementID(id); err != nil {
		c.logger.Warn("rejecting achievement update", "achievement", id, "error", err)
		return false
	}
	c.persistMu.Lock()
	c.mu.Lock()
	p := c.achievements[id]
	before := core.Achievement{ID: id, Current: p.Current, Target: p.Target}
	after := before.Advance(steps)
	if after.Current == before.Current {
		c.mu.Unlock()
		c.persistMu.Unlock()
		return false
	}
	progress := core.Progress{Current: after.Current, Target: after.Target}
	c.achievements[id] = progress
	snapshot := c.achievements.Clone()
	c.mu.Unlock()

	err := SaveAchievement(ctx, c.local, id, progress)
	c.persistMu.Unlock()
	if err != nil {
		c.logger.Error("failed to persist achievement", "achievement", id, "error", err)
	}
	ev := core.NewAchievementProgressed(after)
	ev.Metadata = map[string]any{"previous": before.Current}
	c.publish(ctx, snapshot, ev)
	return true
}

// UpdateAchievements raises each achievement to at least the given progress.
// Targets unknown locally are adopted from states.
func (c *Client) UpdateAchievements(ctx context.Context, states core.AchievementState) {
	for _, id := range sortedIDs(states) {
		want := states[id]
		c.mu.Lock()
		have, ok := c.achievements[id]
		if (!ok || have.Target == 0) && want.Target > 0 {
			have.Target = want.Target
			c.achievements[id] = have
		}
		c.mu.Unlock()
		c.logger.Debug("updating achievement", "achievement", id, "current", want.Current)
		c.UpdateAchievement(ctx, id, want.Current-have.Current)
	}
}

// AchievementStates returns a snapshot of in-memory achievement progress.
func (c *Client) AchievementStates() core.AchievementState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.achievements.Clone()
}

// PushAchievement sends local progress for id that the games service has not
// seen yet. It reports whether an increment was accepted.
func (c *Client) PushAchievement(ctx context.Context, id core.AchievementID) bool {
	if !c.remoteReady(ctx) {
		return false
	}
	c.refreshRemoteKnown(ctx)

	c.mu.Lock()
	local := c.achievements[id]
	known := c.remoteKnown[id]
	c.mu.Unlock()
	delta := local.Current - known.Current
	if delta <= 0 {
		return false
	}

	cctx, cancel := c.remoteCtx(ctx)
	defer cancel()
	p, err := c.remote.IncrementAchievement(cctx, id, delta).Await(cctx)
	if err != nil {
		c.logger.Warn("remote achievement increment failed", "achievement", id, "steps", delta, "error", err)
		return false
	}
	c.mu.Lock()
	k := c.remoteKnown[id]
	k.Current = max(k.Current, p.Current, known.Current+delta)
	k.Target = max(k.Target, p.Target, local.Target)
	c.remoteKnown[id] = k
	c.mu.Unlock()
	return true
}

// PushAchievements pushes every achievement with unsent progress.
func (c *Client) PushAchievements(ctx context.Context) int {
	if !c.remoteReady(ctx) {
		return 0
	}
	pushed := 0
	for _, id := range sortedIDs(c.AchievementStates()) {
		if c.PushAchievement(ctx, id) {
			pushed++
		}
	}
	return pushed
}

// refreshRemoteKnown fetches remote progress once so pushes send deltas only.
func (c *Client) refreshRemoteKnown(ctx context.Context) {
	c.mu.Lock()
	fetched := c.remoteFetched
	c.mu.Unlock()
	if fetched {
		return
	}
	cctx, cancel := c.remoteCtx(ctx)
	defer cancel()
	remote, err := c.remote.FetchAchievements(cctx).Await(cctx)
	if err != nil {
		c.logger.Debug("could not fetch remote achievements before push", "error", err)
		return
	}
	c.mu.Lock()
	c.remoteKnown = core.MergeAchievements(c.remoteKnown, remote)
	c.remoteFetched = true
	c.mu.Unlock()
}

// PostScore records value for user locally, keeping the best score per the
// board's order, then submits it to the games service. The remote submission
// completes (or fails) before PostScore returns.
func (c *Client) PostScore(ctx context.Context, user core.UserID, value int64) error {
	if c.board == "" {
		return errors.New("no leaderboard configured")
	}
	uid, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	score := core.Score{User: uid, Value: value, Time: time.Now().UTC()}
	best := score
	prev, ok, err := LoadScore(ctx, c.local, c.board, uid)
	if err != nil {
		return err
	}
	if ok {
		best = core.BestScore(c.order, prev, score)
	}
	if !ok || best.Value != prev.Value {
		if err := SaveScore(ctx, c.local, c.board, best); err != nil {
			return err
		}
	}
	c.scores.Offer(uid, best.Value)
	c.bus.Publish(ctx, core.NewScorePosted(c.board, score))

	if !c.remoteReady(ctx) {
		c.logger.Debug("score kept locally only", "user", uid, "value", value)
		return nil
	}
	cctx, cancel := c.remoteCtx(ctx)
	defer cancel()
	submit := c.remote.SubmitScore(cctx, c.board, score)
	if _, err := submit.Await(cctx); err != nil {
		c.logger.Warn("remote score submission failed", "user", uid, "value", value, "error", err)
		if cctx.Err() != nil {
			submit.OnComplete(func(_ struct{}, err error) {
				c.logger.Debug("timed out score submission completed", "user", uid, "value", value, "error", err)
			})
		}
	}
	return nil
}

// LeaderboardTop returns the n best scores known locally.
func (c *Client) LeaderboardTop(n int) []leaderboard.Entry {
	return c.scores.TopN(n)
}

// LocalScore returns the best score known locally for user.
// LocalRank returns the 1-based position of user on the cached board.
func (c *Client) LocalRank(user core.UserID) (int, bool) {
	uid, err := core.NormalizeUserID(user)
	if err != nil {
		return 0, false
	}
	return c.scores.Rank(uid)
}

func (c *Client) LocalScore(user core.UserID) (core.Score, bool) {
	uid, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Score{}, false
	}
	e, ok := c.scores.Get(uid)
	if !ok {
		return core.Score{}, false
	}
	return core.Score{User: e.User, Value: e.Score}, true
}

// Ping verifies the local store answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.local.Keys(ctx, achievementPrefix)
	return err
}

func (c *Client) Close() { c.bus.Close() }

func (c *Client) publish(ctx context.Context, state core.AchievementState, ev core.Event) {
	c.bus.Publish(ctx, ev)
	for _, d := range c.rules.Evaluate(ctx, state, ev) {
		c.bus.Publish(ctx, d)
	}
}

func sortedIDs(s core.AchievementState) []core.AchievementID {
	ids := make([]core.AchievementID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type simpleRuleEngine struct{ rules []core.Rule }

func (s *simpleRuleEngine) Evaluate(ctx context.Context, state core.AchievementState, trigger core.Event) []core.Event {
	var out []core.Event
	for _, r := range s.rules {
		out = append(out, r.Evaluate(ctx, state, trigger)...)
	}
	return out
}
