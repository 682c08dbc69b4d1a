package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/account/storetest"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) account.Store {
		return setupTestStore(t)
	})
}

func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("LR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LR_TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) account.Store {
		s, err := Open(context.Background(), DialectPostgres, dsn)
		require.NoError(t, err)
		_, err = s.db.Exec(`TRUNCATE accounts`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.db")

	s, err := Open(ctx, DialectSQLite, path)
	require.NoError(t, err)
	acc := storetest.NewAccount("alice", "alice@x.com")
	acc.RefreshDigest = "digest-1"
	require.NoError(t, s.Insert(ctx, acc))
	require.NoError(t, s.Close())

	// migrations already applied; reopening must not fail
	s, err = Open(ctx, DialectSQLite, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.FindByRefreshToken(ctx, "digest-1")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
}

func TestEmptyRefreshDigestsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	// both rows store NULL, which the unique index allows
	require.NoError(t, s.Insert(ctx, storetest.NewAccount("alice", "alice@x.com")))
	require.NoError(t, s.Insert(ctx, storetest.NewAccount("bob", "bob@x.com")))
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &Store{dialect: DialectSQLite}
	assert.Equal(t, "a = ? AND b = ?", lite.rebind("a = ? AND b = ?"))
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), Dialect("oracle"), "x")
	require.Error(t, err)
}

func TestClosedDatabaseIsUnavailable(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.FindByID(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, account.ErrNotFound)
}
