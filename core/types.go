package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies a player.
type UserID string

// AchievementID identifies an incremental achievement.
type AchievementID string

// LeaderboardID identifies a leaderboard on the games service.
type LeaderboardID string

var (
	ErrNotFound         = errors.New("not found")
	ErrUnavailable      = errors.New("games service unavailable")
	ErrNotAuthenticated = errors.New("player not authenticated")
)

// Achievement is a named progress counter with a target threshold.
type Achievement struct {
	ID      AchievementID `json:"id"`
	Current int64         `json:"current"`
	Target  int64         `json:"target"`
}

// Advance adds steps to the counter, capped at the target.
// Non-positive steps leave the achievement untouched.
func (a Achievement) Advance(steps int64) Achievement {
	if steps <= 0 {
		return a
	}
	next, err := AddSafe(a.Current, steps)
	if err != nil {
		next = math.MaxInt64
	}
	a.Current = capProgress(next, a.Target)
	return a
}

// Unlocked reports whether the counter reached its target.
func (a Achievement) Unlocked() bool {
	return a.Target > 0 && a.Current >= a.Target
}

// Progress is the (current, target) pair stored per achievement.
type Progress struct {
	Current int64 `json:"current"`
	Target  int64 `json:"target"`
}

// AchievementState maps achievement identifiers to their progress.
type AchievementState map[AchievementID]Progress

// Clone returns a deep copy of the state.
func (s AchievementState) Clone() AchievementState {
	cp := make(AchievementState, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp
}

// Achievement returns the entry for id as an Achievement value.
func (s AchievementState) Achievement(id AchievementID) (Achievement, bool) {
	p, ok := s[id]
	return Achievement{ID: id, Current: p.Current, Target: p.Target}, ok
}

// MergeAchievements combines local and remote state. Identifiers present in
// either side are kept; for shared identifiers the larger increment wins.
func MergeAchievements(local, remote AchievementState) AchievementState {
	out := local.Clone()
	for id, r := range remote {
		l, ok := out[id]
		if !ok {
			out[id] = Progress{Current: capProgress(r.Current, r.Target), Target: r.Target}
			continue
		}
		target := max(l.Target, r.Target)
		out[id] = Progress{Current: capProgress(max(l.Current, r.Current), target), Target: target}
	}
	return out
}

func capProgress(current, target int64) int64 {
	if current < 0 {
		return 0
	}
	if target > 0 && current > target {
		return target
	}
	return current
}

// Score is a single leaderboard submission.
type Score struct {
	User  UserID    `json:"user_id"`
	Value int64     `json:"value"`
	Time  time.Time `json:"time,omitempty"`
}

// ScoreOrder decides which of two scores ranks better.
type ScoreOrder int

const (
	HigherIsBetter ScoreOrder = iota
	LowerIsBetter
)

func (o ScoreOrder) String() string {
	if o == LowerIsBetter {
		return "lower"
	}
	return "higher"
}

// ParseScoreOrder accepts "higher" or "lower" (and their long forms).
func ParseScoreOrder(s string) (ScoreOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "higher", "higher_is_better", "desc":
		return HigherIsBetter, nil
	case "lower", "lower_is_better", "asc":
		return LowerIsBetter, nil
	}
	return HigherIsBetter, fmt.Errorf("unknown score order %q", s)
}

// Better reports whether a strictly outranks b.
func (o ScoreOrder) Better(a, b int64) bool {
	if o == LowerIsBetter {
		return a < b
	}
	return a > b
}

// BestScore returns whichever score ranks better; ties keep a.
func BestScore(order ScoreOrder, a, b Score) Score {
	if order.Better(b.Value, a.Value) {
		return b
	}
	return a
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// ValidateAchievementID ensures a non-empty id with a key-safe charset.
func ValidateAchievementID(id AchievementID) error {
	if err := validateKeyPart(string(id)); err != nil {
		return fmt.Errorf("achievement id: %w", err)
	}
	return nil
}

// ValidateLeaderboardID ensures a non-empty id with a key-safe charset.
func ValidateLeaderboardID(id LeaderboardID) error {
	if err := validateKeyPart(string(id)); err != nil {
		return fmt.Errorf("leaderboard id: %w", err)
	}
	return nil
}

func validateKeyPart(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("empty")
	}
	// alnum, dash, underscore; dots are reserved as key separators
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q", r)
	}
	return nil
}
