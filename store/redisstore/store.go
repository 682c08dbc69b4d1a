package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Anonymus123-11/login-register/account"
)

const maxRetries = 4

// ErrUnavailable wraps Redis transport and decoding failures.
var ErrUnavailable = errors.New("redis account store unavailable")

// Store implements account.Store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

var _ account.Store = (*Store)(nil)

// New returns a store using client. The client is not closed by the store.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "acct"
	}
	return &Store{redis: client, prefix: prefix}
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) recKey(id string) string        { return s.prefix + ":rec:" + id }
func (s *Store) handleKey(handle string) string { return s.prefix + ":handle:" + handle }
func (s *Store) addrKey(address string) string  { return s.prefix + ":addr:" + address }
func (s *Store) rtKey(digest string) string     { return s.prefix + ":rt:" + digest }
func (s *Store) idsKey() string                 { return s.prefix + ":ids" }

func (s *Store) Insert(ctx context.Context, acc *account.Account) error {
	if acc == nil || acc.ID == "" {
		return errors.New("account id required")
	}

	rec := acc.Clone()
	rec.Version = 1
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	unique := []string{s.recKey(rec.ID), s.handleKey(rec.Handle), s.addrKey(rec.Address)}

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, unique...).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return account.ErrDuplicate
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, s.recKey(rec.ID), data, 0)
				pipe.Set(ctx, s.handleKey(rec.Handle), rec.ID, 0)
				pipe.Set(ctx, s.addrKey(rec.Address), rec.ID, 0)
				if rec.RefreshDigest != "" {
					pipe.Set(ctx, s.rtKey(rec.RefreshDigest), rec.ID, 0)
				}
				pipe.ZAdd(ctx, s.idsKey(), redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: rec.ID})
				return nil
			})
			return err
		}, unique...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return wrap(err)
		}
		acc.Version = 1
		return nil
	}
	return account.ErrVersionConflict
}

func (s *Store) FindByID(ctx context.Context, id string) (*account.Account, error) {
	data, err := s.redis.Get(ctx, s.recKey(id)).Bytes()
	if err != nil {
		return nil, wrap(err)
	}
	return decode(data)
}

func (s *Store) FindByHandle(ctx context.Context, handle string) (*account.Account, error) {
	return s.findByIndex(ctx, s.handleKey(handle))
}

func (s *Store) FindByAddress(ctx context.Context, address string) (*account.Account, error) {
	return s.findByIndex(ctx, s.addrKey(address))
}

func (s *Store) FindByHandleOrAddress(ctx context.Context, handle, address string) (*account.Account, error) {
	acc, err := s.FindByHandle(ctx, handle)
	if err == nil || !errors.Is(err, account.ErrNotFound) {
		return acc, err
	}
	return s.FindByAddress(ctx, address)
}

func (s *Store) FindByRefreshToken(ctx context.Context, digest string) (*account.Account, error) {
	if digest == "" {
		return nil, account.ErrNotFound
	}
	acc, err := s.findByIndex(ctx, s.rtKey(digest))
	if err != nil {
		return nil, err
	}
	// the index may lag a concurrent update by one round-trip
	if acc.RefreshDigest != digest {
		return nil, account.ErrNotFound
	}
	return acc, nil
}

func (s *Store) findByIndex(ctx context.Context, key string) (*account.Account, error) {
	id, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, wrap(err)
	}
	return s.FindByID(ctx, id)
}

func (s *Store) Update(ctx context.Context, acc *account.Account, expectedVersion int64) error {
	if acc == nil || acc.ID == "" {
		return errors.New("account id required")
	}
	recKey := s.recKey(acc.ID)

	for i := 0; i < maxRetries; i++ {
		var next *account.Account

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, recKey).Bytes()
			if err != nil {
				return err
			}
			cur, err := decode(data)
			if err != nil {
				return err
			}
			if cur.Version != expectedVersion {
				return account.ErrVersionConflict
			}

			var claims []string
			if acc.Handle != cur.Handle {
				claims = append(claims, s.handleKey(acc.Handle))
			}
			if acc.Address != cur.Address {
				claims = append(claims, s.addrKey(acc.Address))
			}
			if len(claims) > 0 {
				if err := tx.Watch(ctx, claims...).Err(); err != nil {
					return err
				}
				n, err := tx.Exists(ctx, claims...).Result()
				if err != nil {
					return err
				}
				if n > 0 {
					return account.ErrDuplicate
				}
			}

			next = acc.Clone()
			next.Version = expectedVersion + 1
			encoded, err := json.Marshal(next)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, recKey, encoded, 0)
				if next.Handle != cur.Handle {
					pipe.Del(ctx, s.handleKey(cur.Handle))
					pipe.Set(ctx, s.handleKey(next.Handle), next.ID, 0)
				}
				if next.Address != cur.Address {
					pipe.Del(ctx, s.addrKey(cur.Address))
					pipe.Set(ctx, s.addrKey(next.Address), next.ID, 0)
				}
				if next.RefreshDigest != cur.RefreshDigest {
					if cur.RefreshDigest != "" {
						pipe.Del(ctx, s.rtKey(cur.RefreshDigest))
					}
					if next.RefreshDigest != "" {
						pipe.Set(ctx, s.rtKey(next.RefreshDigest), next.ID, 0)
					}
				}
				return nil
			})
			return err
		}, recKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return wrap(err)
		}
		acc.Version = next.Version
		return nil
	}
	return account.ErrVersionConflict
}

func (s *Store) Delete(ctx context.Context, id string) error {
	recKey := s.recKey(id)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, recKey).Bytes()
			if err != nil {
				return err
			}
			cur, err := decode(data)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, recKey, s.handleKey(cur.Handle), s.addrKey(cur.Address))
				if cur.RefreshDigest != "" {
					pipe.Del(ctx, s.rtKey(cur.RefreshDigest))
				}
				pipe.ZRem(ctx, s.idsKey(), cur.ID)
				return nil
			})
			return err
		}, recKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return wrap(err)
	}
	return account.ErrVersionConflict
}

func (s *Store) List(ctx context.Context) ([]*account.Account, error) {
	ids, err := s.redis.ZRange(ctx, s.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, wrap(err)
	}
	if len(ids) == 0 {
		return []*account.Account{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recKey(id)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrap(err)
	}

	out := make([]*account.Account, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// deleted between ZRANGE and MGET
			continue
		}
		acc, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

func decode(data []byte) (*account.Account, error) {
	var acc account.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("%w: decode account: %v", ErrUnavailable, err)
	}
	return &acc, nil
}

func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return account.ErrNotFound
	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, account.ErrDuplicate),
		errors.Is(err, account.ErrVersionConflict),
		errors.Is(err, ErrUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
