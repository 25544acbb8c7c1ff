package leaderboard

import "playsync/core"

// Entry represents a score entry.
type Entry struct {
	User  core.UserID `json:"user_id"`
	Score int64       `json:"score"`
}

// Board abstracts leaderboard operations.
type Board interface {
	Offer(user core.UserID, score int64) bool
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int, bool)
}
