// Package boltstore keeps accounts in a single bbolt file.
//
// Records live in the accounts bucket as JSON keyed by id. The handles,
// addresses and refresh buckets map a lookup key to an id. bbolt serializes
// write transactions, so uniqueness and version checks run inside the same
// transaction as the write.
package boltstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Anonymus123-11/login-register/account"
)

var (
	bucketAccounts  = []byte("accounts")
	bucketHandles   = []byte("handles")
	bucketAddresses = []byte("addresses")
	bucketRefresh   = []byte("refresh")
)

// ErrUnavailable wraps bbolt and decoding failures.
var ErrUnavailable = errors.New("bolt account store unavailable")

// Store implements account.Store.
type Store struct {
	db *bbolt.DB
}

var _ account.Store = (*Store)(nil)

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open account db: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database file is still open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(s.db.View(func(*bbolt.Tx) error { return nil }))
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAccounts, bucketHandles, bucketAddresses, bucketRefresh} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Store) Insert(ctx context.Context, acc *account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if acc == nil || acc.ID == "" {
		return errors.New("account id required")
	}

	rec := acc.Clone()
	rec.Version = 1
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal account: %v", ErrUnavailable, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		accounts := tx.Bucket(bucketAccounts)
		handles := tx.Bucket(bucketHandles)
		addresses := tx.Bucket(bucketAddresses)

		if accounts.Get([]byte(rec.ID)) != nil ||
			handles.Get([]byte(rec.Handle)) != nil ||
			addresses.Get([]byte(rec.Address)) != nil {
			return account.ErrDuplicate
		}
		if rec.RefreshDigest != "" && tx.Bucket(bucketRefresh).Get([]byte(rec.RefreshDigest)) != nil {
			return account.ErrDuplicate
		}

		id := []byte(rec.ID)
		if err := accounts.Put(id, payload); err != nil {
			return err
		}
		if err := handles.Put([]byte(rec.Handle), id); err != nil {
			return err
		}
		if err := addresses.Put([]byte(rec.Address), id); err != nil {
			return err
		}
		if rec.RefreshDigest != "" {
			return tx.Bucket(bucketRefresh).Put([]byte(rec.RefreshDigest), id)
		}
		return nil
	})
	if err != nil {
		return wrap(err)
	}
	acc.Version = 1
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*account.Account, error) {
	return s.find(ctx, nil, id)
}

func (s *Store) FindByHandle(ctx context.Context, handle string) (*account.Account, error) {
	return s.find(ctx, bucketHandles, handle)
}

func (s *Store) FindByAddress(ctx context.Context, address string) (*account.Account, error) {
	return s.find(ctx, bucketAddresses, address)
}

func (s *Store) FindByHandleOrAddress(ctx context.Context, handle, address string) (*account.Account, error) {
	acc, err := s.find(ctx, bucketHandles, handle)
	if errors.Is(err, account.ErrNotFound) {
		return s.find(ctx, bucketAddresses, address)
	}
	return acc, err
}

func (s *Store) FindByRefreshToken(ctx context.Context, digest string) (*account.Account, error) {
	if digest == "" {
		return nil, account.ErrNotFound
	}
	return s.find(ctx, bucketRefresh, digest)
}

func (s *Store) Update(ctx context.Context, acc *account.Account, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if acc == nil || acc.ID == "" {
		return errors.New("account id required")
	}

	next := acc.Clone()
	next.Version = expectedVersion + 1
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("%w: marshal account: %v", ErrUnavailable, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		id := []byte(next.ID)
		cur, err := decode(tx.Bucket(bucketAccounts).Get(id))
		if err != nil {
			return err
		}
		if cur.Version != expectedVersion {
			return account.ErrVersionConflict
		}

		if err := moveIndex(tx.Bucket(bucketHandles), cur.Handle, next.Handle, id); err != nil {
			return err
		}
		if err := moveIndex(tx.Bucket(bucketAddresses), cur.Address, next.Address, id); err != nil {
			return err
		}
		if err := moveIndex(tx.Bucket(bucketRefresh), cur.RefreshDigest, next.RefreshDigest, id); err != nil {
			return err
		}
		return tx.Bucket(bucketAccounts).Put(id, payload)
	})
	if err != nil {
		return wrap(err)
	}
	acc.Version = next.Version
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		key := []byte(id)
		cur, err := decode(tx.Bucket(bucketAccounts).Get(key))
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketHandles).Delete([]byte(cur.Handle)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketAddresses).Delete([]byte(cur.Address)); err != nil {
			return err
		}
		if cur.RefreshDigest != "" {
			if err := tx.Bucket(bucketRefresh).Delete([]byte(cur.RefreshDigest)); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketAccounts).Delete(key)
	})
	return wrap(err)
}

func (s *Store) List(ctx context.Context) ([]*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := []*account.Account{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(_, v []byte) error {
			acc, err := decode(v)
			if err != nil {
				return err
			}
			out = append(out, acc)
			return nil
		})
	})
	if err != nil {
		return nil, wrap(err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// find resolves key through index, or reads it as an id when index is nil.
func (s *Store) find(ctx context.Context, index []byte, key string) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, account.ErrNotFound
	}

	var acc *account.Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := []byte(key)
		if index != nil {
			id = tx.Bucket(index).Get(id)
			if id == nil {
				return account.ErrNotFound
			}
		}
		var err error
		acc, err = decode(tx.Bucket(bucketAccounts).Get(id))
		return err
	})
	if err != nil {
		return nil, wrap(err)
	}
	return acc, nil
}

// moveIndex repoints an index entry from old to next. A next key held by
// another id is a uniqueness violation.
func moveIndex(b *bbolt.Bucket, old, next string, id []byte) error {
	if old == next {
		return nil
	}
	if next != "" {
		if owner := b.Get([]byte(next)); owner != nil && string(owner) != string(id) {
			return account.ErrDuplicate
		}
	}
	if old != "" {
		if err := b.Delete([]byte(old)); err != nil {
			return err
		}
	}
	if next != "" {
		return b.Put([]byte(next), id)
	}
	return nil
}

// decode copies out of the bbolt page, since v is only valid inside the
// transaction.
func decode(v []byte) (*account.Account, error) {
	if v == nil {
		return nil, account.ErrNotFound
	}
	var acc account.Account
	if err := json.Unmarshal(v, &acc); err != nil {
		return nil, fmt.Errorf("%w: unmarshal account: %v", ErrUnavailable, err)
	}
	return &acc, nil
}

func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, account.ErrDuplicate),
		errors.Is(err, account.ErrVersionConflict),
		errors.Is(err, ErrUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
