package gamesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"playsync/core"
)

// fakeService implements the REST surface the client expects.
type fakeService struct {
	mu           sync.Mutex
	authed       bool
	achievements map[string][2]int64
	scores       map[string]int64
	lastKey      string
}

func newFakeService() *fakeService {
	return &fakeService{
		authed:       true,
		achievements: map[string][2]int64{"first_win": {1, 5}},
		scores:       map[string]int64{"alice": 120},
	}
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/players/me", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastKey = r.Header.Get("X-API-Key")
		if !f.authed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, playerResponse{Authenticated: true, PlayerID: "alice"})
	})
	mux.HandleFunc("/v1/achievements", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var out achievementsResponse
		for id, p := range f.achievements {
			out.Items = append(out.Items, achievementItem{ID: id, CurrentSteps: p[0], TotalSteps: p[1]})
		}
		writeJSON(w, out)
	})
	mux.HandleFunc("/v1/achievements/", func(w http.ResponseWriter, r *http.Request) {
		// /v1/achievements/{id}/increment?steps=N
		rest := strings.TrimPrefix(r.URL.Path, "/v1/achievements/")
		id, ok := strings.CutSuffix(rest, "/increment")
		if !ok || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		steps, err := strconv.ParseInt(r.URL.Query().Get("steps"), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		p := f.achievements[id]
		p[0] = min(p[0]+steps, p[1])
		f.achievements[id] = p
		writeJSON(w, incrementResponse{CurrentSteps: p[0], TotalSteps: p[1]})
	})
	mux.HandleFunc("/v1/leaderboards/main/scores", func(w http.ResponseWriter, r *http.Request) {
		var in scoreBody
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if in.Value > f.scores[in.UserID] {
			f.scores[in.UserID] = in.Value
		}
		writeJSON(w, okResponse{OK: true})
	})
	mux.HandleFunc("/v1/leaderboards/main/scores/", func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimPrefix(r.URL.Path, "/v1/leaderboards/main/scores/")
		f.mu.Lock()
		defer f.mu.Unlock()
		v, ok := f.scores[user]
		if !ok {
			http.Error(w, "no score", http.StatusNotFound)
			return
		}
		writeJSON(w, scoreBody{UserID: user, Value: v})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeService, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/v1", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestClient_CheckAuthenticated(t *testing.T) {
	f := newFakeService()
	c := newTestClient(t, f, WithAPIKey("k1"))
	ctx := context.Background()

	st, err := c.CheckAuthenticated(ctx).Await(ctx)
	if err != nil || !st.Authenticated || st.PlayerID != "alice" {
		t.Fatalf("unexpected session %+v err=%v", st, err)
	}
	if f.lastKey != "k1" {
		t.Fatalf("api key header not sent, got %q", f.lastKey)
	}

	f.mu.Lock()
	f.authed = false
	f.mu.Unlock()
	st, err = c.CheckAuthenticated(ctx).Await(ctx)
	if err != nil || st.Authenticated {
		t.Fatalf("expected unauthenticated session, got %+v err=%v", st, err)
	}
}

func TestClient_AchievementsAndIncrement(t *testing.T) {
	c := newTestClient(t, newFakeService())
	ctx := context.Background()

	state, err := c.FetchAchievements(ctx).Await(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if state["first_win"] != (core.Progress{Current: 1, Target: 5}) {
		t.Fatalf("unexpected state %+v", state)
	}

	p, err := c.IncrementAchievement(ctx, "first_win", 10).Await(ctx)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if p.Current != 5 || p.Target != 5 {
		t.Fatalf("expected capped progress, got %+v", p)
	}
}

func TestClient_FetchSkipsInvalidIDs(t *testing.T) {
	f := newFakeService()
	f.achievements["a.b"] = [2]int64{2, 4}
	f.achievements[""] = [2]int64{1, 1}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newTestClient(t, f, WithLogger(logger))
	ctx := context.Background()

	state, err := c.FetchAchievements(ctx).Await(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(state) != 1 || state["first_win"] != (core.Progress{Current: 1, Target: 5}) {
		t.Fatalf("unexpected state %+v", state)
	}
	if !strings.Contains(logs.String(), "achievement=a.b") {
		t.Fatalf("expected skipped id to be logged, got %q", logs.String())
	}
}

func TestClient_Scores(t *testing.T) {
	c := newTestClient(t, newFakeService())
	ctx := context.Background()

	s, err := c.FetchScore(ctx, "main", "alice").Await(ctx)
	if err != nil || s.Value != 120 || s.User != "alice" {
		t.Fatalf("fetch score: %+v err=%v", s, err)
	}

	_, err = c.FetchScore(ctx, "main", "bob").Await(ctx)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := c.SubmitScore(ctx, "main", core.Score{User: "bob", Value: 30}).Await(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	s, err = c.FetchScore(ctx, "main", "bob").Await(ctx)
	if err != nil || s.Value != 30 {
		t.Fatalf("expected submitted score, got %+v err=%v", s, err)
	}
}

func TestClient_DisabledIssuesNoRequests(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithDisabled(true))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.Available() {
		t.Fatal("disabled client must not be available")
	}
	ctx := context.Background()
	if _, err := c.FetchAchievements(ctx).Await(ctx); !errors.Is(err, core.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if hits != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()
	if _, err := c.FetchAchievements(ctx).Await(ctx); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewClient("not a url"); err == nil {
		t.Fatal("expected invalid URL error")
	}
}
