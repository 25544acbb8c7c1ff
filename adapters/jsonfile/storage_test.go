package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStorePersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs", "playsync.json")

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	if err := store.Save(ctx, "achievement.explorer.current", "4"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "achievement.explorer.target", "10"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "leaderboard.laps.alice", "42000"); err != nil {
		t.Fatalf("save: %v", err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload
	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	v, ok, err := reloaded.Load(ctx, "leaderboard.laps.alice")
	if err != nil || !ok || v != "42000" {
		t.Fatalf("load: %q %v %v", v, ok, err)
	}
	keys, err := reloaded.Keys(ctx, "achievement.")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "achievement.explorer.current" || keys[1] != "achievement.explorer.target" {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if _, ok, _ := reloaded.Load(ctx, "missing"); ok {
		t.Fatal("missing key should not load")
	}
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestStoreAcceptsNullFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "null.json")
	if err := os.WriteFile(path, []byte("null"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, "achievement.explorer.current", "1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if v, ok, _ := store.Load(ctx, "achievement.explorer.current"); !ok || v != "1" {
		t.Fatalf("load: %q %v", v, ok)
	}
}

func TestStoreSaveFailureRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playsync.json")
	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, "kept", "1"); err != nil {
		t.Fatalf("save: %v", err)
	}

	// a directory in place of the temp file makes every write fail
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "kept", "2"); err == nil {
		t.Fatal("expected write failure")
	}
	if err := store.Save(ctx, "added", "1"); err == nil {
		t.Fatal("expected write failure")
	}

	if v, _, _ := store.Load(ctx, "kept"); v != "1" {
		t.Fatalf("kept = %q, want previous value", v)
	}
	if _, ok, _ := store.Load(ctx, "added"); ok {
		t.Fatal("failed save must not leave the key behind")
	}
}
