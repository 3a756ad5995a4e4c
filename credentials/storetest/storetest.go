// Package storetest checks a credentials.Store implementation against the
// behaviour the API client relies on.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jrsteele09/taxappeal-client/credentials"
	"github.com/jrsteele09/taxappeal-client/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises newStore. Each subtest gets a fresh, empty store.
func Run(t *testing.T, newStore func(t *testing.T) credentials.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)
		v, err := s.Get(ctx, credentials.AccessTokenKey)
		require.NoError(t, err)
		require.Empty(t, v)
	})

	t.Run("set and get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, credentials.AccessTokenKey, "A1"))
		v, err := s.Get(ctx, credentials.AccessTokenKey)
		require.NoError(t, err)
		require.Equal(t, "A1", v)
	})

	t.Run("set empty deletes", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, credentials.ProxyKey, "true"))
		require.NoError(t, s.Set(ctx, credentials.ProxyKey, ""))
		v, err := s.Get(ctx, credentials.ProxyKey)
		require.NoError(t, err)
		require.Empty(t, v)
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		s := newStore(t)
		const pending credentials.Key = "pendingMeeting"
		_, err := s.Get(ctx, pending)
		require.ErrorIs(t, err, errors.ErrInvalidKey)
		require.ErrorIs(t, s.Set(ctx, pending, "true"), errors.ErrInvalidKey)
		require.ErrorIs(t, s.Delete(ctx, pending), errors.ErrInvalidKey)

		// SetAll writes nothing when one key is unknown.
		err = s.SetAll(ctx, map[credentials.Key]string{credentials.AccessTokenKey: "A1", pending: "true"})
		require.ErrorIs(t, err, errors.ErrInvalidKey)
		requireEmpty(t, s)
	})

	t.Run("delete missing key", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Delete(ctx, credentials.RoleKey))
	})

	t.Run("set all overwrites pair", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, credentials.SaveTokenPair(ctx, s, "A1", "R1"))
		require.NoError(t, credentials.SaveTokenPair(ctx, s, "A2", "R2"))
		requirePair(t, s, "A2", "R2")
	})

	t.Run("session round trip", func(t *testing.T) {
		s := newStore(t)
		in := &credentials.Session{
			AccessToken:  "A1",
			RefreshToken: "R1",
			StaffID:      "4b9d8a52-5b0e-4a43-9f36-3f2c7a0e9d11",
			FullNames:    "Jane Uwase",
			Role:         "COMMITTEE_LEADER",
			IsProxy:      true,
		}
		require.NoError(t, credentials.SaveSession(ctx, s, in))
		out, err := credentials.LoadSession(ctx, s)
		require.NoError(t, err)
		require.Equal(t, in, out)

		// A non-proxy login removes a previous proxy flag.
		in.IsProxy = false
		require.NoError(t, credentials.SaveSession(ctx, s, in))
		v, err := s.Get(ctx, credentials.ProxyKey)
		require.NoError(t, err)
		require.Empty(t, v)
	})

	t.Run("clear removes every key", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, credentials.SaveSession(ctx, s, &credentials.Session{
			AccessToken: "A1", RefreshToken: "R1", StaffID: "id", FullNames: "n", Role: "r", IsProxy: true,
		}))
		require.NoError(t, s.Clear(ctx))
		requireEmpty(t, s)
		_, err := credentials.LoadSession(ctx, s)
		require.Error(t, err)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, credentials.SaveTokenPair(ctx, s, "A1", "R1"))
		require.NoError(t, s.Clear(ctx))
		require.NoError(t, s.Clear(ctx))
		requireEmpty(t, s)
	})

	t.Run("concurrent pair writes stay consistent", func(t *testing.T) {
		s := newStore(t)
		const writers = 8
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				suffix := fmt.Sprint(i)
				assert.NoError(t, credentials.SaveTokenPair(ctx, s, "A"+suffix, "R"+suffix))
			}(i)
		}
		wg.Wait()

		access, err := s.Get(ctx, credentials.AccessTokenKey)
		require.NoError(t, err)
		refresh, err := s.Get(ctx, credentials.RefreshTokenKey)
		require.NoError(t, err)
		require.Equal(t, access[1:], refresh[1:], "pair must come from the same write")
	})
}

func requirePair(t *testing.T, s credentials.Store, access, refresh string) {
	t.Helper()
	ctx := context.Background()
	a, err := s.Get(ctx, credentials.AccessTokenKey)
	require.NoError(t, err)
	r, err := s.Get(ctx, credentials.RefreshTokenKey)
	require.NoError(t, err)
	require.Equal(t, access, a)
	require.Equal(t, refresh, r)
}

func requireEmpty(t *testing.T, s credentials.Store) {
	t.Helper()
	for _, k := range credentials.Keys {
		v, err := s.Get(context.Background(), k)
		require.NoError(t, err)
		require.Empty(t, v, "key %s should be cleared", k)
	}
}
