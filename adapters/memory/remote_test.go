package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"playsync/core"
)

func TestRemoteKeepsBestScore(t *testing.T) {
	r := NewRemote("p1")
	r.SetOrder("laps", core.LowerIsBetter)
	ctx := context.Background()

	for _, v := range []int64{500, 300, 400} {
		if _, err := r.SubmitScore(ctx, "laps", core.Score{User: "p1", Value: v}).Await(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if v, ok := r.Score("laps", "p1"); !ok || v != 300 {
		t.Fatalf("expected best 300, got %d %v", v, ok)
	}
	if r.Calls(OpSubmitScore) != 3 {
		t.Fatalf("expected 3 calls, got %d", r.Calls(OpSubmitScore))
	}
}

func TestRemoteIncrementCaps(t *testing.T) {
	r := NewRemote("p1")
	r.SetAchievement("a", core.Progress{Current: 8, Target: 10})
	p, err := r.IncrementAchievement(context.Background(), "a", 5).Await(context.Background())
	if err != nil || p.Current != 10 {
		t.Fatalf("got %+v %v", p, err)
	}
}

func TestRemoteFailureInjection(t *testing.T) {
	r := NewRemote("p1")
	boom := errors.New("network down")
	r.Fail(OpFetchAchievements, boom)
	if _, err := r.FetchAchievements(context.Background()).Await(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	r.Heal(OpFetchAchievements)
	if _, err := r.FetchAchievements(context.Background()).Await(context.Background()); err != nil {
		t.Fatalf("healed call failed: %v", err)
	}

	r.Hang(OpFetchScore)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.FetchScore(ctx, "b", "p1").Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected hang to time out, got %v", err)
	}
}

func TestRemoteRequiresAuthentication(t *testing.T) {
	r := NewRemote("p1")
	r.SetAuthenticated(false)
	st, err := r.CheckAuthenticated(context.Background()).Await(context.Background())
	if err != nil || st.Authenticated {
		t.Fatalf("got %+v %v", st, err)
	}
	if _, err := r.FetchAchievements(context.Background()).Await(context.Background()); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
}
