// Package pebble provides a LocalStore backed by a Pebble LSM database on disk.
package pebble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble"
)

// Config holds Pebble store configuration.
type Config struct {
	Dir string `json:"dir" env:"PLAYSYNC_LOCAL_PEBBLE_DIR"`
	// Sync fsyncs every write; disable only for throwaway data.
	Sync bool `json:"sync" env:"PLAYSYNC_LOCAL_PEBBLE_SYNC"`
}

// DefaultConfig returns sensible defaults for Pebble configuration
func DefaultConfig() Config {
	return Config{Dir: "./data/playsync.pebble", Sync: true}
}

// Store is a Pebble-backed LocalStore.
type Store struct {
	db     *pebble.DB
	write  *pebble.WriteOptions
	logger *slog.Logger
}

// Open opens (or creates) the database in cfg.Dir.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	return OpenWithOptions(cfg.Dir, cfg.Sync, &pebble.Options{}, logger)
}

// OpenWithOptions opens the database with caller-supplied Pebble options,
// e.g. an in-memory vfs for tests.
func OpenWithOptions(dir string, sync bool, opts *pebble.Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Logger == nil {
		opts.Logger = &pebbleLogger{logger}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open %s: %w", dir, err)
	}
	write := pebble.NoSync
	if sync {
		write = pebble.Sync
	}
	logger.Info("pebble storage opened", "dir", dir)
	return &Store{db: db, write: write, logger: logger}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()
	return string(data), true, nil
}

func (s *Store) Save(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Set([]byte(key), []byte(value), s.write); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := &pebble.IterOptions{LowerBound: []byte(prefix), UpperBound: prefixEnd([]byte(prefix))}
	iter, err := s.db.NewIter(opts)
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer iter.Close()

	var keys []string
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return keys, nil
}

// prefixEnd returns the smallest key greater than every key with prefix,
// or nil when no such bound exists.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// pebbleLogger adapts slog to the pebble.Logger interface.
type pebbleLogger struct {
	l *slog.Logger
}

func (p *pebbleLogger) Infof(format string, args ...any) {
	p.l.Debug(fmt.Sprintf(format, args...), "component", "pebble")
}

func (p *pebbleLogger) Errorf(format string, args ...any) {
	p.l.Error(fmt.Sprintf(format, args...), "component", "pebble")
}

func (p *pebbleLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.l.Error(msg, "component", "pebble")
	panic(msg)
}
