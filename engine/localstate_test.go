package engine

import (
	"context"
	"testing"

	mem "playsync/adapters/memory"
	"playsync/core"
)

func TestAchievementRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	in := core.AchievementState{
		"first_win": {Current: 1, Target: 1},
		"collector": {Current: 4, Target: 10},
		"no_target": {Current: 2},
	}
	if err := SaveAchievements(ctx, store, in); err != nil {
		t.Fatal(err)
	}
	out, err := LoadAchievements(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d achievements, want %d", len(out), len(in))
	}
	for id, p := range in {
		if out[id] != p {
			t.Fatalf("%s = %+v, want %+v", id, out[id], p)
		}
	}
}

func TestScoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	for _, s := range []core.Score{{User: "alice", Value: 10}, {User: "bob", Value: -3}} {
		if err := SaveScore(ctx, store, "main", s); err != nil {
			t.Fatal(err)
		}
	}
	// other boards are not listed
	if err := SaveScore(ctx, store, "mainx", core.Score{User: "carol", Value: 1}); err != nil {
		t.Fatal(err)
	}

	scores, err := LoadScores(ctx, store, "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 2 || scores[0].User != "alice" || scores[1].Value != -3 {
		t.Fatalf("unexpected scores %+v", scores)
	}
	if _, ok, err := LoadScore(ctx, store, "main", "dave"); ok || err != nil {
		t.Fatalf("expected missing score, ok=%v err=%v", ok, err)
	}
}

func TestLoadAchievementsRejectsCorruptValues(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	_ = store.Save(ctx, "achievement.a.current", "not-a-number")
	if _, err := LoadAchievements(ctx, store); err == nil {
		t.Fatal("expected parse error")
	}
}
