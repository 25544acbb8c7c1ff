package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mem "playsync/adapters/memory"
	"playsync/core"
)

func seed(t *testing.T, c *Client, store *mem.Store, state core.AchievementState) {
	t.Helper()
	ctx := context.Background()
	if err := SaveAchievements(ctx, store, state); err != nil {
		t.Fatal(err)
	}
	if err := c.LoadLocal(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSyncMergesMaxPerID(t *testing.T) {
	ctx := context.Background()
	remote := mem.NewRemote("alice")
	remote.SetAchievement("a", core.Progress{Current: 7, Target: 10})
	remote.SetAchievement("c", core.Progress{Current: 2, Target: 4})
	c, store := newTestClient(t, Options{Remote: remote})
	seed(t, c, store, core.AchievementState{
		"a": {Current: 3, Target: 10},
		"b": {Current: 1, Target: 5},
	})

	report, err := c.Sync(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	want := core.AchievementState{
		"a": {Current: 7, Target: 10},
		"b": {Current: 1, Target: 5},
		"c": {Current: 2, Target: 4},
	}
	stored, err := LoadAchievements(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	for id, p := range want {
		if stored[id] != p {
			t.Fatalf("stored %s = %+v, want %+v", id, stored[id], p)
		}
		if got := c.AchievementStates()[id]; got != p {
			t.Fatalf("memory %s = %+v, want %+v", id, got, p)
		}
	}
	if len(report.AchievementsChanged) != 2 || report.AchievementsChanged[0] != "a" || report.AchievementsChanged[1] != "c" {
		t.Fatalf("unexpected changed ids %v", report.AchievementsChanged)
	}
	if !report.RemoteAttempted || report.Achievements != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	if remote.Calls(mem.OpIncrementAchievement) != 0 || remote.Calls(mem.OpSubmitScore) != 0 {
		t.Fatal("sync must not push to the games service")
	}
}

func TestSyncRemoteFailureLeavesLocalUnchanged(t *testing.T) {
	ctx := context.Background()
	remote := mem.NewRemote("alice")
	remote.SetAchievement("a", core.Progress{Current: 9, Target: 10})
	remote.SetScore("main", "alice", 80)
	remote.Fail(mem.OpFetchAchievements, errors.New("network down"))
	remote.Fail(mem.OpFetchScore, errors.New("network down"))
	c, store := newTestClient(t, Options{Remote: remote, Leaderboard: "main"})
	if err := SaveScore(ctx, store, "main", core.Score{User: "alice", Value: 50}); err != nil {
		t.Fatal(err)
	}
	seed(t, c, store, core.AchievementState{"a": {Current: 3, Target: 10}})

	before := snapshotStore(t, store)
	report, err := c.Sync(ctx, "alice")
	if err != nil {
		t.Fatalf("remote failure must not fail sync: %v", err)
	}
	if report.AchievementsError == "" || report.LeaderboardError == "" {
		t.Fatalf("expected both legs to report failures: %+v", report)
	}
	after := snapshotStore(t, store)
	if len(before) != len(after) {
		t.Fatalf("store changed: %v -> %v", before, after)
	}
	for k, v := range before {
		if after[k] != v {
			t.Fatalf("key %s changed: %s -> %s", k, v, after[k])
		}
	}
}

func TestSyncLeaderboardKeepsBetterScore(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		order   core.ScoreOrder
		want    int64
		changed bool
	}{
		{"higher", core.HigherIsBetter, 80, true},
		{"lower", core.LowerIsBetter, 50, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remote := mem.NewRemote("alice")
			remote.SetScore("main", "alice", 80)
			c, store := newTestClient(t, Options{Remote: remote, Leaderboard: "main", Order: tc.order})
			if err := SaveScore(ctx, store, "main", core.Score{User: "alice", Value: 50}); err != nil {
				t.Fatal(err)
			}

			report, err := c.Sync(ctx, "alice")
			if err != nil {
				t.Fatal(err)
			}
			if report.Score == nil || report.Score.Value != tc.want || report.ScoreChanged != tc.changed {
				t.Fatalf("unexpected report %+v", report)
			}
			s, _, _ := LoadScore(ctx, store, "main", "alice")
			if s.Value != tc.want {
				t.Fatalf("stored %d, want %d", s.Value, tc.want)
			}
			if got, _ := c.LocalScore("alice"); got.Value != tc.want {
				t.Fatalf("cached %d, want %d", got.Value, tc.want)
			}
		})
	}
}

func TestSyncRemoteScoreMissingKeepsLocal(t *testing.T) {
	ctx := context.Background()
	remote := mem.NewRemote("alice")
	c, store := newTestClient(t, Options{Remote: remote, Leaderboard: "main"})
	if err := SaveScore(ctx, store, "main", core.Score{User: "alice", Value: 50}); err != nil {
		t.Fatal(err)
	}

	report, err := c.Sync(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if report.User != "alice" || report.LeaderboardError != "" || report.Score == nil || report.Score.Value != 50 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestSyncRemoteTimeoutCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	remote := mem.NewRemote("alice")
	remote.Hang(mem.OpFetchAchievements)
	c, store := newTestClient(t, Options{Remote: remote, RemoteTimeout: 50 * time.Millisecond})
	seed(t, c, store, core.AchievementState{"a": {Current: 3, Target: 10}})

	start := time.Now()
	report, err := c.Sync(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if report.AchievementsError == "" {
		t.Fatal("expected timeout to be reported")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("sync did not honour the remote timeout")
	}
	stored, _ := LoadAchievements(ctx, store)
	if stored["a"].Current != 3 {
		t.Fatalf("local state changed: %+v", stored["a"])
	}
}

func TestSyncPublishesUnlockAndCompletion(t *testing.T) {
	ctx := context.Background()
	remote := mem.NewRemote("alice")
	remote.SetAchievement("a", core.Progress{Current: 3, Target: 3})
	c, store := newTestClient(t, Options{Remote: remote})
	seed(t, c, store, core.AchievementState{"a": {Current: 1, Target: 3}})

	var unlocks, completed int32
	c.Subscribe(core.EventAchievementUnlocked, func(context.Context, core.Event) { atomic.AddInt32(&unlocks, 1) })
	c.Subscribe(core.EventSyncCompleted, func(context.Context, core.Event) { atomic.AddInt32(&completed, 1) })

	if _, err := c.Sync(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&unlocks) != 1 || atomic.LoadInt32(&completed) != 1 {
		t.Fatalf("unlocks=%d completed=%d", unlocks, completed)
	}

	// a second sync has nothing new to unlock
	if _, err := c.Sync(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&unlocks) != 1 {
		t.Fatalf("unexpected repeated unlock")
	}
}

func TestSyncAndPostScoreDoNotInterleave(t *testing.T) {
	ctx := context.Background()
	remote := mem.NewRemote("alice")
	remote.SetLatency(time.Millisecond)
	c, _ := newTestClient(t, Options{Remote: remote, Leaderboard: "main"})

	var wg sync.WaitGroup
	for i := int64(1); i <= 10; i++ {
		wg.Add(2)
		go func(v int64) {
			defer wg.Done()
			if err := c.PostScore(ctx, "alice", v); err != nil {
				t.Error(err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := c.Sync(ctx, "alice"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if s, _ := c.LocalScore("alice"); s.Value != 10 {
		t.Fatalf("expected best score 10, got %d", s.Value)
	}
	if v, _ := remote.Score("main", "alice"); v != 10 {
		t.Fatalf("expected remote best 10, got %d", v)
	}
}

func TestSyncKeepsProgressMadeDuringFetch(t *testing.T) {
	ctx := context.Background()
	remote := mem.NewRemote("alice")
	remote.SetAchievement("a", core.Progress{Current: 3, Target: 10})
	c, store := newTestClient(t, Options{Remote: remote, RemoteTimeout: 5 * time.Second})
	seed(t, c, store, core.AchievementState{"a": {Current: 1, Target: 10}})
	remote.SetLatency(200 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := c.Sync(ctx, "")
		done <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for remote.Calls(mem.OpFetchAchievements) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("fetch never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !c.UpdateAchievement(ctx, "a", 5) {
		t.Fatal("expected update to apply")
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	want := core.Progress{Current: 6, Target: 10}
	stored, err := LoadAchievements(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	if stored["a"] != want {
		t.Fatalf("stored a = %+v, want %+v", stored["a"], want)
	}
	if got := c.AchievementStates()["a"]; got != want {
		t.Fatalf("memory a = %+v, want %+v", got, want)
	}
}
