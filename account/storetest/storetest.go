// Package storetest is a conformance suite for account.Store implementations.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anonymus123-11/login-register/account"
)

// Factory returns an empty store. Cleanup is registered through t.
type Factory func(t *testing.T) account.Store

// Run executes every conformance check against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("insert and find", func(t *testing.T) { testInsertAndFind(t, newStore(t)) })
	t.Run("duplicate identity", func(t *testing.T) { testDuplicateIdentity(t, newStore(t)) })
	t.Run("concurrent insert same handle", func(t *testing.T) { testConcurrentInsert(t, newStore(t)) })
	t.Run("update compare and set", func(t *testing.T) { testUpdateCAS(t, newStore(t)) })
	t.Run("update moves indexes", func(t *testing.T) { testUpdateIndexes(t, newStore(t)) })
	t.Run("refresh token index", func(t *testing.T) { testRefreshIndex(t, newStore(t)) })
	t.Run("pending codes persist", func(t *testing.T) { testPendingCodes(t, newStore(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("list ordered by creation", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("returned records are copies", func(t *testing.T) { testCopies(t, newStore(t)) })
}

// NewAccount builds an unverified standard account with millisecond
// timestamps, which every backend can round-trip exactly.
func NewAccount(handle, address string) *account.Account {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &account.Account{
		ID:         uuid.NewString(),
		Handle:     handle,
		Address:    address,
		SecretHash: "$argon2id$stub",
		Role:       account.RoleStandard,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func testInsertAndFind(t *testing.T, s account.Store) {
	ctx := context.Background()
	acc := NewAccount("alice", "alice@x.com")
	require.NoError(t, s.Insert(ctx, acc))
	assert.Equal(t, int64(1), acc.Version)

	byID, err := s.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Handle)
	assert.Equal(t, "alice@x.com", byID.Address)
	assert.Equal(t, account.RoleStandard, byID.Role)
	assert.False(t, byID.Verified)
	assert.Equal(t, int64(1), byID.Version)
	assert.Equal(t, acc.CreatedAt.UnixMilli(), byID.CreatedAt.UnixMilli())

	byHandle, err := s.FindByHandle(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byHandle.ID)

	byAddress, err := s.FindByAddress(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byAddress.ID)

	either, err := s.FindByHandleOrAddress(ctx, "nobody", "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, either.ID)

	either, err = s.FindByHandleOrAddress(ctx, "alice", "nobody@x.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, either.ID)

	_, err = s.FindByHandleOrAddress(ctx, "nobody", "nobody@x.com")
	assert.ErrorIs(t, err, account.ErrNotFound)

	_, err = s.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, account.ErrNotFound)
	_, err = s.FindByHandle(ctx, "ALICE")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func testDuplicateIdentity(t *testing.T, s account.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, NewAccount("alice", "alice@x.com")))

	tests := []struct {
		name    string
		handle  string
		address string
		wantErr error
	}{
		{name: "same handle", handle: "alice", address: "other@x.com", wantErr: account.ErrDuplicate},
		{name: "same address", handle: "other", address: "alice@x.com", wantErr: account.ErrDuplicate},
		{name: "both free", handle: "bob", address: "bob@x.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Insert(ctx, NewAccount(tt.handle, tt.address))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func testConcurrentInsert(t *testing.T, s account.Store) {
	ctx := context.Background()
	const workers = 8

	var wg sync.WaitGroup
	results := make(chan error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results <- s.Insert(ctx, NewAccount("racer", fmt.Sprintf("racer%d@x.com", i)))
		}(i)
	}
	close(start)
	wg.Wait()
	close(results)

	var ok, dup int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, account.ErrDuplicate):
			dup++
		default:
			t.Fatalf("unexpected insert error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testUpdateCAS(t *testing.T, s account.Store) {
	ctx := context.Background()
	acc := NewAccount("alice", "alice@x.com")
	require.NoError(t, s.Insert(ctx, acc))

	first, err := s.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	stale, err := s.FindByID(ctx, acc.ID)
	require.NoError(t, err)

	first.Verified = true
	require.NoError(t, s.Update(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	stale.SecretHash = "$argon2id$other"
	err = s.Update(ctx, stale, 1)
	assert.ErrorIs(t, err, account.ErrVersionConflict)

	got, err := s.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.Equal(t, "$argon2id$stub", got.SecretHash)
	assert.Equal(t, int64(2), got.Version)

	ghost := NewAccount("ghost", "ghost@x.com")
	assert.ErrorIs(t, s.Update(ctx, ghost, 1), account.ErrNotFound)
}

func testUpdateIndexes(t *testing.T, s account.Store) {
	ctx := context.Background()
	alice := NewAccount("alice", "alice@x.com")
	bob := NewAccount("bob", "bob@x.com")
	require.NoError(t, s.Insert(ctx, alice))
	require.NoError(t, s.Insert(ctx, bob))

	taken := bob.Clone()
	taken.Handle = "alice"
	assert.ErrorIs(t, s.Update(ctx, taken, bob.Version), account.ErrDuplicate)

	taken = bob.Clone()
	taken.Address = "alice@x.com"
	assert.ErrorIs(t, s.Update(ctx, taken, bob.Version), account.ErrDuplicate)

	renamed := bob.Clone()
	renamed.Handle = "robert"
	renamed.Address = "robert@x.com"
	require.NoError(t, s.Update(ctx, renamed, bob.Version))

	_, err := s.FindByHandle(ctx, "bob")
	assert.ErrorIs(t, err, account.ErrNotFound)
	_, err = s.FindByAddress(ctx, "bob@x.com")
	assert.ErrorIs(t, err, account.ErrNotFound)

	got, err := s.FindByHandle(ctx, "robert")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)
	got, err = s.FindByAddress(ctx, "robert@x.com")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)

	// the released handle is claimable again
	require.NoError(t, s.Insert(ctx, NewAccount("bob", "bob@x.com")))
}

func testRefreshIndex(t *testing.T, s account.Store) {
	ctx := context.Background()
	acc := NewAccount("alice", "alice@x.com")
	require.NoError(t, s.Insert(ctx, acc))

	_, err := s.FindByRefreshToken(ctx, "digest-1")
	assert.ErrorIs(t, err, account.ErrNotFound)

	acc.RefreshDigest = "digest-1"
	require.NoError(t, s.Update(ctx, acc, acc.Version))

	got, err := s.FindByRefreshToken(ctx, "digest-1")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	acc.RefreshDigest = "digest-2"
	require.NoError(t, s.Update(ctx, acc, acc.Version))
	_, err = s.FindByRefreshToken(ctx, "digest-1")
	assert.ErrorIs(t, err, account.ErrNotFound)
	got, err = s.FindByRefreshToken(ctx, "digest-2")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	acc.RefreshDigest = ""
	require.NoError(t, s.Update(ctx, acc, acc.Version))
	_, err = s.FindByRefreshToken(ctx, "digest-2")
	assert.ErrorIs(t, err, account.ErrNotFound)
	_, err = s.FindByRefreshToken(ctx, "")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func testPendingCodes(t *testing.T, s account.Store) {
	ctx := context.Background()
	acc := NewAccount("alice", "alice@x.com")
	expires := time.Now().UTC().Add(10 * time.Minute).Truncate(time.Millisecond)
	acc.Verification = &account.PendingCode{Hash: "v-hash", ExpiresAt: expires, Attempts: 2}
	require.NoError(t, s.Insert(ctx, acc))

	got, err := s.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Verification)
	assert.Equal(t, "v-hash", got.Verification.Hash)
	assert.Equal(t, 2, got.Verification.Attempts)
	assert.Equal(t, expires.UnixMilli(), got.Verification.ExpiresAt.UnixMilli())
	assert.Nil(t, got.Reset)

	got.Verification = nil
	got.Reset = &account.PendingCode{Hash: "r-hash", ExpiresAt: expires}
	require.NoError(t, s.Update(ctx, got, got.Version))

	got, err = s.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Verification)
	require.NotNil(t, got.Reset)
	assert.Equal(t, "r-hash", got.Reset.Hash)
	assert.Equal(t, 0, got.Reset.Attempts)
}

func testDelete(t *testing.T, s account.Store) {
	ctx := context.Background()
	acc := NewAccount("alice", "alice@x.com")
	acc.RefreshDigest = "digest-1"
	require.NoError(t, s.Insert(ctx, acc))

	require.NoError(t, s.Delete(ctx, acc.ID))

	_, err := s.FindByID(ctx, acc.ID)
	assert.ErrorIs(t, err, account.ErrNotFound)
	_, err = s.FindByHandle(ctx, "alice")
	assert.ErrorIs(t, err, account.ErrNotFound)
	_, err = s.FindByRefreshToken(ctx, "digest-1")
	assert.ErrorIs(t, err, account.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, acc.ID), account.ErrNotFound)
	require.NoError(t, s.Insert(ctx, NewAccount("alice", "alice@x.com")))
}

func testList(t *testing.T, s account.Store) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)
	handles := []string{"carol", "alice", "bob"}
	for i, h := range handles {
		acc := NewAccount(h, h+"@x.com")
		acc.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Insert(ctx, acc))
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, h := range handles {
		assert.Equal(t, h, all[i].Handle)
	}
}

func testCopies(t *testing.T, s account.Store) {
	ctx := context.Background()
	acc := NewAccount("alice", "alice@x.com")
	require.NoError(t, s.Insert(ctx, acc))

	got, err := s.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	got.Handle = "mallory"
	got.Verified = true

	again, err := s.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Handle)
	assert.False(t, again.Verified)
}
