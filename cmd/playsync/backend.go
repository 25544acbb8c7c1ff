package main

import (
	"context"
	"slices"

	"playsync/core"
	"playsync/engine"
	sdk "playsync/sdk/go"
)

// backend is what the CLI commands drive: either an in-process client or a
// running sidecar reached over HTTP.
type backend interface {
	Progress(ctx context.Context, id string, steps int64) (sdk.ProgressResult, error)
	Achievements(ctx context.Context) ([]core.Achievement, error)
	Push(ctx context.Context) (int, error)
	PostScore(ctx context.Context, user string, value int64) (core.Score, error)
	Leaderboard(ctx context.Context, n int) (sdk.LeaderboardView, error)
	Sync(ctx context.Context, user string) (engine.SyncReport, error)
	SignIn(ctx context.Context) (sdk.SignInResult, error)
}

// localBackend runs commands against an in-process client.
type localBackend struct {
	client *engine.Client
}

func (b localBackend) Progress(ctx context.Context, id string, steps int64) (sdk.ProgressResult, error) {
	aid := core.AchievementID(id)
	if err := core.ValidateAchievementID(aid); err != nil {
		return sdk.ProgressResult{}, err
	}
	changed := b.client.UpdateAchievement(ctx, aid, steps)
	a, _ := b.client.AchievementStates().Achievement(aid)
	return sdk.ProgressResult{Changed: changed, Achievement: a, Unlocked: a.Unlocked()}, nil
}

func (b localBackend) Achievements(_ context.Context) ([]core.Achievement, error) {
	state := b.client.AchievementStates()
	out := make([]core.Achievement, 0, len(state))
	for _, id := range sortedAchievementIDs(state) {
		a, _ := state.Achievement(id)
		out = append(out, a)
	}
	return out, nil
}

func (b localBackend) Push(ctx context.Context) (int, error) {
	return b.client.PushAchievements(ctx), nil
}

func (b localBackend) PostScore(ctx context.Context, user string, value int64) (core.Score, error) {
	uid, err := core.NormalizeUserID(core.UserID(user))
	if err != nil {
		return core.Score{}, err
	}
	if err := b.client.PostScore(ctx, uid, value); err != nil {
		return core.Score{}, err
	}
	best, _ := b.client.LocalScore(uid)
	return best, nil
}

func (b localBackend) Leaderboard(_ context.Context, n int) (sdk.LeaderboardView, error) {
	board, order := b.client.Leaderboard()
	return sdk.LeaderboardView{Leaderboard: board, Order: order.String(), Entries: b.client.LeaderboardTop(n)}, nil
}

func (b localBackend) Sync(ctx context.Context, user string) (engine.SyncReport, error) {
	return b.client.Sync(ctx, core.UserID(user))
}

func (b localBackend) SignIn(ctx context.Context) (sdk.SignInResult, error) {
	ok := b.client.SignIn(ctx)
	return sdk.SignInResult{Authenticated: ok, PlayerID: b.client.Session().Snapshot().PlayerID}, nil
}

func sortedAchievementIDs(s core.AchievementState) []core.AchievementID {
	ids := make([]core.AchievementID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

var (
	_ backend = localBackend{}
	_ backend = (*sdk.Client)(nil)
)
