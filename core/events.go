package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventAchievementProgressed EventType = "achievement_progressed"
	EventAchievementUnlocked   EventType = "achievement_unlocked"
	EventScorePosted           EventType = "score_posted"
	EventSyncCompleted         EventType = "sync_completed"
	EventSignedIn              EventType = "signed_in"
)

// Event represents an immutable domain event.
type Event struct {
	Type        EventType      `json:"type"`
	Time        time.Time      `json:"time"`
	UserID      UserID         `json:"user_id,omitempty"`
	Achievement AchievementID  `json:"achievement,omitempty"`
	Current     int64          `json:"current,omitempty"`
	Target      int64          `json:"target,omitempty"`
	Leaderboard LeaderboardID  `json:"leaderboard,omitempty"`
	Score       int64          `json:"score,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewAchievementProgressed(a Achievement) Event {
	return Event{Type: EventAchievementProgressed, Time: time.Now().UTC(), Achievement: a.ID, Current: a.Current, Target: a.Target}
}

func NewAchievementUnlocked(a Achievement) Event {
	return Event{Type: EventAchievementUnlocked, Time: time.Now().UTC(), Achievement: a.ID, Current: a.Current, Target: a.Target}
}

func NewScorePosted(board LeaderboardID, s Score) Event {
	return Event{Type: EventScorePosted, Time: time.Now().UTC(), UserID: s.User, Leaderboard: board, Score: s.Value}
}

func NewSignedIn(player UserID) Event {
	return Event{Type: EventSignedIn, Time: time.Now().UTC(), UserID: player}
}

// NewSyncCompleted carries a summary of a reconciliation pass in Metadata.
func NewSyncCompleted(user UserID, meta map[string]any) Event {
	return Event{Type: EventSyncCompleted, Time: time.Now().UTC(), UserID: user, Metadata: meta}
}
