package analytics

import (
	"context"
	"time"

	"playsync/core"
)

// BridgeHook bridges an event source to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(ctx context.Context, e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(ctx, e)
	}
}

// Summary is a point-in-time view of SyncMetrics.
type Summary struct {
	Day                  string                       `json:"day"`
	AchievementsProgress int64                        `json:"achievements_progressed"`
	AchievementsUnlocked int64                        `json:"achievements_unlocked"`
	UnlockedByID         map[core.AchievementID]int64 `json:"unlocked_by_id,omitempty"`
	ScoresPosted         int64                        `json:"scores_posted"`
	ScoresByBoard        map[core.LeaderboardID]int64 `json:"scores_by_leaderboard,omitempty"`
	SignIns              int64                        `json:"sign_ins"`
	Syncs                int64                        `json:"syncs"`
	SyncsWithRemote      int64                        `json:"syncs_with_remote"`
	SyncChanges          int64                        `json:"sync_changes"`
	LastSync             *time.Time                   `json:"last_sync,omitempty"`
	LastSyncRemote       bool                         `json:"last_sync_remote"`
}

// Summary reports totals plus the counters for the current UTC day.
func (m *SyncMetrics) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day := dayKey(time.Now())
	s := Summary{
		Day:                  day,
		AchievementsProgress: m.progressedByDay[day],
		AchievementsUnlocked: m.unlockedByDay[day],
		UnlockedByID:         make(map[core.AchievementID]int64, len(m.unlockedByID)),
		ScoresPosted:         m.scoresByDay[day],
		ScoresByBoard:        make(map[core.LeaderboardID]int64, len(m.scoresByBoard)),
		SignIns:              m.signIns,
		Syncs:                m.syncs,
		SyncsWithRemote:      m.syncsWithRemote,
		SyncChanges:          m.syncChanges,
		LastSyncRemote:       m.lastSyncRemote,
	}
	for k, v := range m.unlockedByID {
		s.UnlockedByID[k] = v
	}
	for k, v := range m.scoresByBoard {
		s.ScoresByBoard[k] = v
	}
	if !m.lastSync.IsZero() {
		t := m.lastSync
		s.LastSync = &t
	}
	return s
}
