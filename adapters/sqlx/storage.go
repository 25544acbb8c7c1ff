package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// ParseDriver maps a config value to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(s))) {
	case DriverSQLite, "sqlite3":
		return DriverSQLite, nil
	case DriverPostgres, "postgresql", "pg":
		return DriverPostgres, nil
	case DriverMySQL:
		return DriverMySQL, nil
	}
	return "", fmt.Errorf("unsupported sql driver %q", s)
}

// Config holds SQL connection configuration
type Config struct {
	Driver          string        `json:"driver" env:"PLAYSYNC_LOCAL_SQL_DRIVER"`
	DSN             string        `json:"dsn" env:"PLAYSYNC_LOCAL_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// DefaultConfig returns an embedded SQLite database next to the binary.
func DefaultConfig() Config {
	return Config{
		Driver:          string(DriverSQLite),
		DSN:             "file:playsync.db?_pragma=busy_timeout(5000)",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}
}

// Store implements engine.LocalStore over a single preferences table.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens the database, verifies the connection and creates the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(string(driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	s := NewWithDB(db, driver)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection. The schema is not created.
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the preferences table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	var ddl string
	switch s.driver {
	case DriverPostgres:
		ddl = `CREATE TABLE IF NOT EXISTS preferences (
	pref_key TEXT PRIMARY KEY,
	pref_value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`
	case DriverMySQL:
		ddl = `CREATE TABLE IF NOT EXISTS preferences (
	pref_key VARCHAR(255) NOT NULL PRIMARY KEY,
	pref_value TEXT NOT NULL,
	updated_at DATETIME(6) NOT NULL
)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS preferences (
	pref_key TEXT PRIMARY KEY,
	pref_value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create preferences table: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) (string, bool, error) {
	var v string
	q := s.db.Rebind(`SELECT pref_value FROM preferences WHERE pref_key = ?`)
	if err := s.db.GetContext(ctx, &v, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Save(ctx context.Context, key, value string) error {
	q := s.db.Rebind(s.upsertQuery())
	if _, err := s.db.ExecContext(ctx, q, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys lists keys starting with prefix. LIKE treats '_' as a wildcard, so the
// result is filtered again in Go.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var rows []string
	q := s.db.Rebind(`SELECT pref_key FROM preferences WHERE pref_key LIKE ? ORDER BY pref_key`)
	if err := s.db.SelectContext(ctx, &rows, q, prefix+"%"); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	keys := rows[:0]
	for _, k := range rows {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *Store) upsertQuery() string {
	if s.driver == DriverMySQL {
		return `INSERT INTO preferences (pref_key, pref_value, updated_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE pref_value = VALUES(pref_value), updated_at = VALUES(updated_at)`
	}
	return `INSERT INTO preferences (pref_key, pref_value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (pref_key) DO UPDATE SET pref_value = excluded.pref_value, updated_at = excluded.updated_at`
}
