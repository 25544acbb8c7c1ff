package engine

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"playsync/core"
)

// SyncReport summarizes one reconciliation pass. Remote failures are
// reported here as strings; they never fail the sync.
type SyncReport struct {
	User                core.UserID          `json:"user,omitempty"`
	RemoteAttempted     bool                 `json:"remote_attempted"`
	Achievements        int                  `json:"achievements"`
	AchievementsChanged []core.AchievementID `json:"achievements_changed,omitempty"`
	AchievementsError   string               `json:"achievements_error,omitempty"`
	Score               *core.Score          `json:"score,omitempty"`
	ScoreChanged        bool                 `json:"score_changed"`
	LeaderboardError    string               `json:"leaderboard_error,omitempty"`
	Duration            time.Duration        `json:"duration"`
}

type achievementLeg struct {
	total   int
	changed []core.AchievementID
	err     error
}

type leaderboardLeg struct {
	score   *core.Score
	changed bool
	err     error
}

// Sync reconciles local and remote state. Achievements merge by taking the
// larger increment per id; the leaderboard keeps the better of the local and
// remote score for user. Merged state is written locally only; nothing is
// pushed to the games service. When a remote fetch fails, the corresponding
// local state is left untouched. The returned error covers local storage only.
func (c *Client) Sync(ctx context.Context, user core.UserID) (SyncReport, error) {
	start := time.Now()
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	ready := c.remoteReady(ctx)
	if user == "" {
		user = c.session.Snapshot().PlayerID
	}
	if user != "" {
		uid, err := core.NormalizeUserID(user)
		if err != nil {
			return SyncReport{}, err
		}
		user = uid
	}

	report := SyncReport{User: user, RemoteAttempted: ready}

	var ach achievementLeg
	var lb leaderboardLeg
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ach, err = c.syncAchievements(gctx, ready)
		return err
	})
	g.Go(func() error {
		var err error
		lb, err = c.syncLeaderboard(gctx, user, ready)
		return err
	})
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Achievements = ach.total
	report.AchievementsChanged = ach.changed
	if ach.err != nil {
		report.AchievementsError = ach.err.Error()
	}
	report.Score = lb.score
	report.ScoreChanged = lb.changed
	if lb.err != nil {
		report.LeaderboardError = lb.err.Error()
	}
	report.Duration = time.Since(start)

	c.bus.Publish(ctx, core.NewSyncCompleted(user, map[string]any{
		"remote_attempted":     report.RemoteAttempted,
		"achievements_changed": len(report.AchievementsChanged),
		"score_changed":        report.ScoreChanged,
	}))
	return report, nil
}

func (c *Client) syncAchievements(ctx context.Context, ready bool) (achievementLeg, error) {
	stored, err := LoadAchievements(ctx, c.local)
	if err != nil {
		return achievementLeg{}, err
	}
	c.mu.Lock()
	view := core.MergeAchievements(c.achievements, stored)
	c.achievements = view.Clone()
	c.mu.Unlock()

	leg := achievementLeg{total: len(view)}
	if !ready {
		return leg, nil
	}

	cctx, cancel := c.remoteCtx(ctx)
	remote, err := c.remote.FetchAchievements(cctx).Await(cctx)
	cancel()
	if err != nil {
		c.logger.Warn("remote achievement fetch failed, keeping local state", "error", err)
		leg.err = err
		return leg, nil
	}

	// progress recorded while the fetch was in flight is already persisted;
	// merge against the live state so nothing written here is older
	c.persistMu.Lock()
	c.mu.Lock()
	live := c.achievements.Clone()
	merged := core.MergeAchievements(live, remote)
	c.achievements = merged.Clone()
	c.remoteKnown = core.MergeAchievements(c.remoteKnown, remote)
	c.remoteFetched = true
	snapshot := merged.Clone()
	c.mu.Unlock()

	for _, id := range sortedIDs(merged) {
		if prev, ok := stored[id]; !ok || prev != merged[id] {
			leg.changed = append(leg.changed, id)
		}
	}
	for _, id := range leg.changed {
		if err := SaveAchievement(ctx, c.local, id, merged[id]); err != nil {
			c.persistMu.Unlock()
			return leg, err
		}
	}
	c.persistMu.Unlock()

	for _, id := range leg.changed {
		before, _ := live.Achievement(id)
		after, _ := snapshot.Achievement(id)
		if after.Unlocked() && !before.Unlocked() {
			c.bus.Publish(ctx, core.NewAchievementUnlocked(after))
		}
	}
	leg.total = len(merged)
	return leg, nil
}

func (c *Client) syncLeaderboard(ctx context.Context, user core.UserID, ready bool) (leaderboardLeg, error) {
	var leg leaderboardLeg
	if c.board == "" || user == "" {
		return leg, nil
	}
	local, haveLocal, err := LoadScore(ctx, c.local, c.board, user)
	if err != nil {
		return leg, err
	}
	if haveLocal {
		c.scores.Offer(user, local.Value)
		leg.score = &local
	}
	if !ready {
		return leg, nil
	}

	cctx, cancel := c.remoteCtx(ctx)
	remote, err := c.remote.FetchScore(cctx, c.board, user).Await(cctx)
	cancel()
	switch {
	case errors.Is(err, core.ErrNotFound):
		c.logger.Debug("no remote score yet", "leaderboard", c.board, "user", user)
		return leg, nil
	case err != nil:
		c.logger.Warn("remote score fetch failed, keeping local score", "leaderboard", c.board, "error", err)
		leg.err = err
		return leg, nil
	}

	remote.User = user
	best := remote
	if haveLocal {
		best = core.BestScore(c.order, local, remote)
	}
	if !haveLocal || best.Value != local.Value {
		if err := SaveScore(ctx, c.local, c.board, best); err != nil {
			return leg, err
		}
		leg.changed = true
	}
	c.scores.Offer(user, best.Value)
	leg.score = &best
	return leg, nil
}
