// Package redisstore keeps the staff session in a Redis hash so several
// processes can share one login.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/jrsteele09/taxappeal-client/credentials"
	apperrors "github.com/jrsteele09/taxappeal-client/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ credentials.Store = (*Store)(nil)

// Store is a credentials.Store over a single Redis hash. Multi-key writes
// run in MULTI/EXEC so readers never see half of a token pair.
type Store struct {
	rdb redis.UniversalClient
	key string
	ttl time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL expires the whole session after ttl of write inactivity.
// Zero keeps it until Clear.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New returns a store keeping its hash at key.
func New(rdb redis.UniversalClient, key string, opts ...Option) *Store {
	s := &Store{rdb: rdb, key: key}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, key credentials.Key) (string, error) {
	if err := credentials.CheckKeys(key); err != nil {
		return "", err
	}
	v, err := s.rdb.HGet(ctx, s.key, string(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrStoreUnavailable, "hget %s: %v", key, err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key credentials.Key, value string) error {
	return s.SetAll(ctx, map[credentials.Key]string{key: value})
}

func (s *Store) SetAll(ctx context.Context, values map[credentials.Key]string) error {
	if err := credentials.CheckValues(values); err != nil {
		return err
	}
	set := make([]any, 0, len(values)*2)
	var del []string
	for k, v := range values {
		if v == "" {
			del = append(del, string(k))
			continue
		}
		set = append(set, string(k), v)
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(del) > 0 {
			pipe.HDel(ctx, s.key, del...)
		}
		if len(set) > 0 {
			pipe.HSet(ctx, s.key, set...)
			if s.ttl > 0 {
				pipe.Expire(ctx, s.key, s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrStoreUnavailable, "writing session: %v", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key credentials.Key) error {
	if err := credentials.CheckKeys(key); err != nil {
		return err
	}
	if err := s.rdb.HDel(ctx, s.key, string(key)).Err(); err != nil {
		return apperrors.Wrapf(apperrors.ErrStoreUnavailable, "hdel %s: %v", key, err)
	}
	return nil
}

// Clear deletes the hash. DEL of a missing key succeeds, so Clear is
// idempotent.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return apperrors.Wrapf(apperrors.ErrStoreUnavailable, "clearing session: %v", err)
	}
	return nil
}
