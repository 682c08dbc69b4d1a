package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/account/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) account.Store {
		return openTestStore(t)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestReopenKeepsIndexes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.db")

	s, err := Open(path)
	require.NoError(t, err)
	acc := storetest.NewAccount("alice", "alice@x.com")
	acc.RefreshDigest = "digest-1"
	require.NoError(t, s.Insert(ctx, acc))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.FindByRefreshToken(ctx, "digest-1")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	got, err = s.FindByHandle(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
}

func TestCanceledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FindByID(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Insert(ctx, storetest.NewAccount("a", "a@x.com")), context.Canceled)
}

func TestCorruptRecordIsUnavailable(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketHandles).Put([]byte("broken"), []byte("id-1")); err != nil {
			return err
		}
		return tx.Bucket(bucketAccounts).Put([]byte("id-1"), []byte("{not json"))
	}))

	_, err := s.FindByHandle(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFailedUpdateLeavesIndexesUntouched(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	alice := storetest.NewAccount("alice", "alice@x.com")
	bob := storetest.NewAccount("bob", "bob@x.com")
	require.NoError(t, s.Insert(ctx, alice))
	require.NoError(t, s.Insert(ctx, bob))

	// handle moves first, then the address collides and the whole tx rolls back
	next := alice.Clone()
	next.Handle = "alice2"
	next.Address = "bob@x.com"
	require.ErrorIs(t, s.Update(ctx, next, alice.Version), account.ErrDuplicate)

	_, err := s.FindByHandle(ctx, "alice2")
	assert.ErrorIs(t, err, account.ErrNotFound)
	got, err := s.FindByHandle(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
}
