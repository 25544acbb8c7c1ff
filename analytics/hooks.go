package analytics

import (
	"context"
	"sync"
	"time"

	"playsync/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(ctx context.Context, e core.Event)
}

// DAU tracks daily active users.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(_ context.Context, e core.Event) {
	if e.UserID == "" {
		return
	}
	day := dayKey(e.Time)
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// SyncMetrics counts achievement, score and reconciliation activity.
type SyncMetrics struct {
	mu sync.RWMutex

	progressedByDay map[string]int64
	unlockedByDay   map[string]int64
	unlockedByID    map[core.AchievementID]int64
	scoresByDay     map[string]int64
	scoresByBoard   map[core.LeaderboardID]int64
	lastByBoard     map[core.LeaderboardID]map[core.UserID]int64
	signIns         int64
	syncs           int64
	syncsWithRemote int64
	syncChanges     int64
	lastSync        time.Time
	lastSyncRemote  bool
}

func NewSyncMetrics() *SyncMetrics {
	return &SyncMetrics{
		progressedByDay: make(map[string]int64),
		unlockedByDay:   make(map[string]int64),
		unlockedByID:    make(map[core.AchievementID]int64),
		scoresByDay:     make(map[string]int64),
		scoresByBoard:   make(map[core.LeaderboardID]int64),
		lastByBoard:     make(map[core.LeaderboardID]map[core.UserID]int64),
	}
}

func (m *SyncMetrics) OnEvent(_ context.Context, e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayKey(e.Time)
	switch e.Type {
	case core.EventAchievementProgressed:
		m.progressedByDay[day]++
	case core.EventAchievementUnlocked:
		m.unlockedByDay[day]++
		m.unlockedByID[e.Achievement]++
	case core.EventScorePosted:
		m.scoresByDay[day]++
		m.scoresByBoard[e.Leaderboard]++
		if m.lastByBoard[e.Leaderboard] == nil {
			m.lastByBoard[e.Leaderboard] = make(map[core.UserID]int64)
		}
		m.lastByBoard[e.Leaderboard][e.UserID] = e.Score
	case core.EventSignedIn:
		m.signIns++
	case core.EventSyncCompleted:
		m.syncs++
		m.lastSync = e.Time
		attempted, _ := e.Metadata["remote_attempted"].(bool)
		m.lastSyncRemote = attempted
		if attempted {
			m.syncsWithRemote++
		}
		if n, ok := e.Metadata["achievements_changed"].(int); ok {
			m.syncChanges += int64(n)
		}
		if changed, _ := e.Metadata["score_changed"].(bool); changed {
			m.syncChanges++
		}
	}
}

// ProgressedOn returns the number of progress events recorded on day (YYYY-MM-DD).
func (m *SyncMetrics) ProgressedOn(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progressedByDay[day]
}

// UnlockedOn returns the number of unlocks recorded on day.
func (m *SyncMetrics) UnlockedOn(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unlockedByDay[day]
}

// ScoresOn returns the number of scores posted on day.
func (m *SyncMetrics) ScoresOn(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scoresByDay[day]
}

// LastSubmission returns the most recent value posted by user on board.
func (m *SyncMetrics) LastSubmission(board core.LeaderboardID, user core.UserID) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.lastByBoard[board][user]
	return v, ok
}

func dayKey(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02")
}
