package memory

import (
	"context"
	"sync"
	"time"

	"playsync/core"
)

// Op names a remote operation for failure injection and call counting.
type Op string

const (
	OpCheckAuthenticated   Op = "check_authenticated"
	OpFetchAchievements    Op = "fetch_achievements"
	OpFetchScore           Op = "fetch_score"
	OpSubmitScore          Op = "submit_score"
	OpIncrementAchievement Op = "increment_achievement"
)

// Remote is an in-process stand-in for the games service, used in offline
// mode and tests. Calls complete on background goroutines like the real one.
type Remote struct {
	mu            sync.Mutex
	authenticated bool
	player        core.UserID
	achievements  core.AchievementState
	scores        map[core.LeaderboardID]map[core.UserID]int64
	orders        map[core.LeaderboardID]core.ScoreOrder
	failures      map[Op]error
	hangs         map[Op]bool
	calls         map[Op]int
	latency       time.Duration
}

// NewRemote returns a remote with player signed in.
func NewRemote(player core.UserID) *Remote {
	return &Remote{
		authenticated: true,
		player:        player,
		achievements:  core.AchievementState{},
		scores:        map[core.LeaderboardID]map[core.UserID]int64{},
		orders:        map[core.LeaderboardID]core.ScoreOrder{},
		failures:      map[Op]error{},
		hangs:         map[Op]bool{},
		calls:         map[Op]int{},
	}
}

func (r *Remote) SetAuthenticated(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authenticated = ok
}

func (r *Remote) SetLatency(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latency = d
}

// SetOrder sets how board retains the best score per user.
func (r *Remote) SetOrder(board core.LeaderboardID, order core.ScoreOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[board] = order
}

func (r *Remote) SetAchievement(id core.AchievementID, p core.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.achievements[id] = p
}

func (r *Remote) SetScore(board core.LeaderboardID, user core.UserID, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scores[board] == nil {
		r.scores[board] = map[core.UserID]int64{}
	}
	r.scores[board][user] = value
}

// Fail makes every subsequent call to op complete with err.
func (r *Remote) Fail(op Op, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op] = err
}

// Hang makes every subsequent call to op never complete.
func (r *Remote) Hang(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hangs[op] = true
}

// Heal clears injected failures and hangs for op.
func (r *Remote) Heal(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, op)
	delete(r.hangs, op)
}

// Calls returns how many times op was invoked.
func (r *Remote) Calls(op Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// TotalCalls returns the number of invocations across all operations.
func (r *Remote) TotalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *Remote) Achievements() core.AchievementState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.achievements.Clone()
}

func (r *Remote) Score(board core.LeaderboardID, user core.UserID) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.scores[board][user]
	return v, ok
}

func (r *Remote) CheckAuthenticated(ctx context.Context) *core.Future[core.SessionState] {
	return run(ctx, r, OpCheckAuthenticated, func() (core.SessionState, error) {
		st := core.SessionState{Authenticated: r.authenticated, CheckedAt: time.Now().UTC()}
		if r.authenticated {
			st.PlayerID = r.player
		}
		return st, nil
	})
}

func (r *Remote) FetchAchievements(ctx context.Context) *core.Future[core.AchievementState] {
	return run(ctx, r, OpFetchAchievements, func() (core.AchievementState, error) {
		return r.achievements.Clone(), nil
	})
}

func (r *Remote) FetchScore(ctx context.Context, board core.LeaderboardID, user core.UserID) *core.Future[core.Score] {
	return run(ctx, r, OpFetchScore, func() (core.Score, error) {
		v, ok := r.scores[board][user]
		if !ok {
			return core.Score{}, core.ErrNotFound
		}
		return core.Score{User: user, Value: v}, nil
	})
}

func (r *Remote) SubmitScore(ctx context.Context, board core.LeaderboardID, score core.Score) *core.Future[struct{}] {
	return run(ctx, r, OpSubmitScore, func() (struct{}, error) {
		if r.scores[board] == nil {
			r.scores[board] = map[core.UserID]int64{}
		}
		prev, ok := r.scores[board][score.User]
		if !ok || r.orders[board].Better(score.Value, prev) {
			r.scores[board][score.User] = score.Value
		}
		return struct{}{}, nil
	})
}

func (r *Remote) IncrementAchievement(ctx context.Context, id core.AchievementID, steps int64) *core.Future[core.Progress] {
	return run(ctx, r, OpIncrementAchievement, func() (core.Progress, error) {
		p := r.achievements[id]
		a := core.Achievement{ID: id, Current: p.Current, Target: p.Target}.Advance(steps)
		next := core.Progress{Current: a.Current, Target: a.Target}
		r.achievements[id] = next
		return next, nil
	})
}

// run counts the call, then applies fn under the remote's lock on a
// background goroutine, honouring injected latency, failures and hangs.
func run[T any](ctx context.Context, r *Remote, op Op, fn func() (T, error)) *core.Future[T] {
	r.mu.Lock()
	r.calls[op]++
	hang := r.hangs[op]
	latency := r.latency
	r.mu.Unlock()
	if hang {
		return core.NewFuture[T]()
	}
	return core.Go(func() (T, error) {
		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			}
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.failures[op]; err != nil {
			var zero T
			return zero, err
		}
		if !r.authenticated && op != OpCheckAuthenticated {
			var zero T
			return zero, core.ErrNotAuthenticated
		}
		return fn()
	})
}
