package engine

import (
	"context"

	"playsync/core"
)

// LocalStore is the durable key-value storage mirrored by the client.
// Load reports ok=false when the key has never been saved.
type LocalStore interface {
	Load(ctx context.Context, key string) (value string, ok bool, err error)
	Save(ctx context.Context, key, value string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// RemoteStore is the games service. Every call returns immediately; the
// result arrives on the returned future from a background goroutine.
type RemoteStore interface {
	CheckAuthenticated(ctx context.Context) *core.Future[core.SessionState]
	FetchAchievements(ctx context.Context) *core.Future[core.AchievementState]
	FetchScore(ctx context.Context, board core.LeaderboardID, user core.UserID) *core.Future[core.Score]
	SubmitScore(ctx context.Context, board core.LeaderboardID, score core.Score) *core.Future[struct{}]
	IncrementAchievement(ctx context.Context, id core.AchievementID, steps int64) *core.Future[core.Progress]
}

// Availability reports whether the games service is present on this device.
// When it returns false the client never touches the RemoteStore.
type Availability interface {
	Available() bool
}

// AvailabilityFunc adapts a function to Availability.
type AvailabilityFunc func() bool

func (f AvailabilityFunc) Available() bool { return f() }

// Always and Never are fixed availability answers.
var (
	Always Availability = AvailabilityFunc(func() bool { return true })
	Never  Availability = AvailabilityFunc(func() bool { return false })
)

// RuleEngine evaluates rules and emits derived events.
type RuleEngine interface {
	Evaluate(ctx context.Context, state core.AchievementState, trigger core.Event) []core.Event
}
