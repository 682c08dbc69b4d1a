package account

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no account matches a lookup.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned when a write would break handle or address uniqueness.
	ErrDuplicate = errors.New("account handle or address already taken")
	// ErrVersionConflict is returned by Update when the stored version moved.
	ErrVersionConflict = errors.New("account version conflict")
)

// Store persists accounts.
//
// Implementations must be safe for concurrent use. Insert and Update enforce
// handle/address uniqueness atomically with the write. Update is a
// compare-and-set on Version: it succeeds only when the stored version equals
// expectedVersion, and on success it stores and sets acc.Version to
// expectedVersion+1. Every Find returns a fresh copy owned by the caller.
type Store interface {
	Insert(ctx context.Context, acc *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByHandle(ctx context.Context, handle string) (*Account, error)
	FindByAddress(ctx context.Context, address string) (*Account, error)
	FindByHandleOrAddress(ctx context.Context, handle, address string) (*Account, error)
	FindByRefreshToken(ctx context.Context, digest string) (*Account, error)
	Update(ctx context.Context, acc *Account, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Account, error)
}
