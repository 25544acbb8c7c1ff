package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playsync/adapters/gamesapi"
	mem "playsync/adapters/memory"
	"playsync/api/httpapi"
	"playsync/config"
	"playsync/core"
	"playsync/engine"
	"playsync/playsync"
	sdk "playsync/sdk/go"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestSetupLogging(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Output = "stdout"
	cfg.Logging.Format = "json"
	cfg.Logging.Attributes = map[string]string{"service": "playsync"}

	var stdout, stderr bytes.Buffer
	logger := setupLogging(cfg, &stdout, &stderr)
	logger.Info("hello")

	assert.Empty(t, stderr.String())
	var line map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "playsync", line["service"])

	cfg.Logging.Output = "stderr"
	cfg.Logging.Format = "text"
	cfg.Logging.Level = "error"
	stdout.Reset()
	logger = setupLogging(cfg, &stdout, &stderr)
	logger.Info("dropped")
	logger.Error("kept")
	assert.Empty(t, stdout.String())
	assert.NotContains(t, stderr.String(), "dropped")
	assert.Contains(t, stderr.String(), "msg=kept")
}

func TestSetupLocalStore(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	dir := t.TempDir()

	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{name: "memory", mutate: func(c *config.Config) { c.Local.Adapter = "memory" }},
		{name: "file", mutate: func(c *config.Config) {
			c.Local.Adapter = "file"
			c.Local.File.Path = filepath.Join(dir, "prefs.json")
		}},
		{name: "pebble", mutate: func(c *config.Config) {
			c.Local.Adapter = "pebble"
			c.Local.Pebble.Dir = filepath.Join(dir, "pebble")
		}},
		{name: "sql", mutate: func(c *config.Config) {
			c.Local.Adapter = "sql"
			c.Local.SQL.DSN = "file:" + filepath.Join(dir, "prefs.db")
		}},
		{name: "unknown", mutate: func(c *config.Config) { c.Local.Adapter = "tape" }, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tc.mutate(cfg)
			store, cleanup, err := provideLocalStore(ctx, cfg, logger)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer cleanup()

			require.NoError(t, store.Save(ctx, "achievement.a.current", "1"))
			v, ok, err := store.Load(ctx, "achievement.a.current")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "1", v)
		})
	}
}

func TestSetupRemote(t *testing.T) {
	cfg := config.DefaultConfig()

	remote, err := setupRemote(cfg, slog.Default())
	require.NoError(t, err)
	assert.Nil(t, remote)

	cfg.Remote.Adapter = "memory"
	cfg.Remote.Player = "alice"
	remote, err = setupRemote(cfg, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &mem.Remote{}, remote)

	cfg.Remote.Adapter = "http"
	cfg.Remote.BaseURL = "https://games.example.com/v1"
	remote, err = setupRemote(cfg, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &gamesapi.Client{}, remote)

	cfg.Remote.BaseURL = "not a url"
	_, err = setupRemote(cfg, slog.Default())
	assert.Error(t, err)

	cfg.Remote.Adapter = "carrier-pigeon"
	_, err = setupRemote(cfg, slog.Default())
	assert.Error(t, err)
}

func TestProvideWebhooks(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Nil(t, provideWebhooks(cfg, slog.Default()))

	cfg.Notify.Webhooks = []string{"http://127.0.0.1:1/hook"}
	cfg.Notify.EventTypes = []string{string(core.EventAchievementUnlocked)}
	sinks := provideWebhooks(cfg, slog.Default())
	require.Len(t, sinks, 1)
	assert.True(t, sinks[0].Accepts(core.EventAchievementUnlocked))
	assert.False(t, sinks[0].Accepts(core.EventScorePosted))
}

func TestBuildApp(t *testing.T) {
	t.Setenv("PLAYSYNC_REMOTE_ADAPTER", "memory")
	t.Setenv("PLAYSYNC_REMOTE_PLAYER", "alice")
	t.Setenv("PLAYSYNC_LEADERBOARD_ID", "main")
	t.Setenv("PLAYSYNC_SERVER_ADDR", "127.0.0.1:0")
	t.Setenv("PLAYSYNC_LOG_LEVEL", "error")

	app, cleanup, err := BuildApp(context.Background(), "")
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "127.0.0.1:0", app.Server.Addr)
	assert.NotNil(t, app.Handler)
	assert.True(t, app.Client.RemoteAvailable())
	board, order := app.Client.Leaderboard()
	assert.Equal(t, core.LeaderboardID("main"), board)
	assert.Equal(t, core.HigherIsBetter, order)
}

func setLocalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PLAYSYNC_LOCAL_ADAPTER", "file")
	t.Setenv("PLAYSYNC_LOCAL_FILE_PATH", filepath.Join(t.TempDir(), "prefs.json"))
	t.Setenv("PLAYSYNC_REMOTE_ADAPTER", "memory")
	t.Setenv("PLAYSYNC_REMOTE_PLAYER", "alice")
	t.Setenv("PLAYSYNC_LEADERBOARD_ID", "main")
	t.Setenv("PLAYSYNC_SYNC_DISPATCH", "sync")
	t.Setenv("PLAYSYNC_LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.Bytes()
}

func TestCLI_ProgressPersistsAcrossRuns(t *testing.T) {
	setLocalEnv(t)

	var res sdk.ProgressResult
	require.NoError(t, json.Unmarshal(execute(t, "progress", "first_win", "3"), &res))
	assert.True(t, res.Changed)
	assert.Equal(t, int64(3), res.Achievement.Current)

	var items []core.Achievement
	require.NoError(t, json.Unmarshal(execute(t, "achievements"), &items))
	require.Len(t, items, 1)
	assert.Equal(t, core.AchievementID("first_win"), items[0].ID)
	assert.Equal(t, int64(3), items[0].Current)
}

func TestCLI_ScoreLeaderboardAndSync(t *testing.T) {
	setLocalEnv(t)

	var best core.Score
	require.NoError(t, json.Unmarshal(execute(t, "score", "Alice", "42"), &best))
	assert.Equal(t, core.UserID("alice"), best.User)
	assert.Equal(t, int64(42), best.Value)

	var view sdk.LeaderboardView
	require.NoError(t, json.Unmarshal(execute(t, "leaderboard", "-n", "5"), &view))
	require.Len(t, view.Entries, 1)
	assert.Equal(t, int64(42), view.Entries[0].Score)

	var report engine.SyncReport
	require.NoError(t, json.Unmarshal(execute(t, "sync"), &report))
	assert.Equal(t, core.UserID("alice"), report.User)
	assert.True(t, report.RemoteAttempted)
	require.NotNil(t, report.Score)
	assert.Equal(t, int64(42), report.Score.Value)
}

func TestCLI_RejectsBadArguments(t *testing.T) {
	setLocalEnv(t)

	for _, args := range [][]string{
		{"progress"},
		{"progress", "first_win", "zero"},
		{"progress", "first_win", "-1"},
		{"score", "alice"},
		{"score", "alice", "lots"},
		{"progress", "bad.id", "1"},
	} {
		cmd := newRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		assert.Error(t, cmd.Execute(), "args %v", args)
	}
}

func TestCLI_DrivesRunningSidecar(t *testing.T) {
	remote := mem.NewRemote("alice")
	client, err := playsync.New(context.Background(),
		playsync.WithRemote(remote),
		playsync.WithDispatchMode(engine.DispatchSync),
		playsync.WithLeaderboard("main", core.HigherIsBetter),
	)
	require.NoError(t, err)
	defer client.Close()
	srv := httptest.NewServer(httpapi.NewMux(client, nil, httpapi.Options{PathPrefix: "/api", APIKeys: []string{"k1"}}))
	defer srv.Close()

	base := srv.URL + "/api"
	execute(t, "--server", base, "--api-key", "k1", "progress", "first_win", "2")

	var pushed map[string]int
	require.NoError(t, json.Unmarshal(execute(t, "--server", base, "--api-key", "k1", "push"), &pushed))
	assert.Equal(t, 1, pushed["pushed"])
	assert.Equal(t, int64(2), remote.Achievements()["first_win"].Current)

	var signin sdk.SignInResult
	require.NoError(t, json.Unmarshal(execute(t, "--server", base, "--api-key", "k1", "signin"), &signin))
	assert.True(t, signin.Authenticated)
	assert.Equal(t, core.UserID("alice"), signin.PlayerID)
}

func TestPeriodicSync(t *testing.T) {
	remote := mem.NewRemote("alice")
	remote.SetAchievement("collector", core.Progress{Current: 4, Target: 10})
	client, err := playsync.New(context.Background(),
		playsync.WithRemote(remote),
		playsync.WithDispatchMode(engine.DispatchSync),
	)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- periodicSync(ctx, client, "", 10*time.Millisecond, slog.Default()) }()

	require.Eventually(t, func() bool {
		return client.AchievementStates()["collector"].Current == 4
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
