package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTempDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString(t *testing.T) {
	ledger := buildConnectionString("/tmp/notes.db", ProfileLedger)
	assert.Contains(t, ledger, "journal_mode(WAL)")
	assert.Contains(t, ledger, "synchronous(FULL)")
	assert.Contains(t, ledger, "foreign_keys(1)")

	cache := buildConnectionString("/tmp/notes.db", ProfileCache)
	assert.Contains(t, cache, "synchronous(OFF)")

	standard := buildConnectionString("/tmp/notes.db", ProfileStandard)
	assert.Contains(t, standard, "synchronous(NORMAL)")
}

func TestNew_DefaultsToStandardProfile(t *testing.T) {
	db := newTempDB(t, "notes", "")
	assert.Equal(t, ProfileStandard, db.Profile())
	assert.Equal(t, "notes", db.Name())
	assert.True(t, filepath.IsAbs(db.Path()))
	assert.NoError(t, db.QuickCheck(context.Background()))
}

func TestMigrate_CreatesNotesTablesAndIsRepeatable(t *testing.T) {
	db := newTempDB(t, "notes", ProfileLedger)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	for _, table := range []string{"products", "underlyings", "fixings", "breach_events", "coupon_states"} {
		var name string
		err := db.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTempDB(t, "scratch", ProfileCache)
	require.NoError(t, db.Migrate())

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table'`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction(t *testing.T) {
	db := newTempDB(t, "scratch", ProfileStandard)
	_, err := db.Conn().Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
		return n
	}

	t.Run("commit", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, err := tx.Exec(`INSERT INTO t (v) VALUES (1)`)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count())
	})

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, _ = tx.Exec(`INSERT INTO t (v) VALUES (2)`)
			return boom
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, count())
	})

	t.Run("rollback on panic", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, _ = tx.Exec(`INSERT INTO t (v) VALUES (3)`)
			panic("unexpected")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in transaction")
		assert.Equal(t, 1, count())
	})

	t.Run("nil connection", func(t *testing.T) {
		assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
	})
}
