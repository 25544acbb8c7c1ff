package sqlx_test

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "playsync/adapters/sqlx"
)

func newMockStore(t *testing.T, driver storage.Driver) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, string(driver)), driver)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func TestSQLMock_Load_Found(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT pref_value FROM preferences WHERE pref_key = \$1`).
		WithArgs("achievement.a.current").
		WillReturnRows(sqlmock.NewRows([]string{"pref_value"}).AddRow("7"))

	v, ok, err := store.Load(context.Background(), "achievement.a.current")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "7", v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Load_Missing(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT pref_value FROM preferences`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"pref_value"}))

	_, ok, err := store.Load(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Load_Error(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT pref_value FROM preferences`).
		WithArgs("k").
		WillReturnError(errors.New("connection reset"))

	_, _, err := store.Load(context.Background(), "k")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Save_PostgresUpsert(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO preferences .* ON CONFLICT \(pref_key\) DO UPDATE`).
		WithArgs("leaderboard.main.alice", "42", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Save(context.Background(), "leaderboard.main.alice", "42"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Save_MySQLUpsert(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO preferences .* ON DUPLICATE KEY UPDATE`).
		WithArgs("k", "v", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Save(context.Background(), "k", "v"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Keys_FiltersLikeWildcards(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	// '_' in the prefix matches any character under LIKE
	mock.ExpectQuery(`SELECT pref_key FROM preferences WHERE pref_key LIKE \$1`).
		WithArgs("leaderboard.a_b.%").
		WillReturnRows(sqlmock.NewRows([]string{"pref_key"}).
			AddRow("leaderboard.a_b.alice").
			AddRow("leaderboard.axb.bob"))

	keys, err := store.Keys(context.Background(), "leaderboard.a_b.")
	require.NoError(t, err)
	require.Equal(t, []string{"leaderboard.a_b.alice"}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_EnsureSchema(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS preferences`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseDriver(t *testing.T) {
	d, err := storage.ParseDriver("PostgreSQL")
	require.NoError(t, err)
	require.Equal(t, storage.DriverPostgres, d)

	d, err = storage.ParseDriver("sqlite3")
	require.NoError(t, err)
	require.Equal(t, storage.DriverSQLite, d)

	_, err = storage.ParseDriver("oracle")
	require.Error(t, err)
}
