package apiclient_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/taxappeal-client/apiclient"
	"github.com/stretchr/testify/require"
)

func TestTokenSource(t *testing.T) {
	t.Run("not logged in", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.client.TokenSource(context.Background()).Token()
		require.ErrorIs(t, err, apiclient.ErrNotLoggedIn)
		require.Zero(t, f.nav.Count())
	})

	t.Run("current token", func(t *testing.T) {
		f := newFixture(t)
		access, _ := f.login(t)

		token, err := f.client.TokenSource(context.Background()).Token()
		require.NoError(t, err)
		require.Equal(t, access, token.AccessToken)
		require.Equal(t, "Bearer", token.TokenType)
		require.False(t, token.Expiry.IsZero())
		require.True(t, token.Valid())
		require.Zero(t, f.backend.RefreshCalls())
	})

	t.Run("expired token is refreshed", func(t *testing.T) {
		later := time.Now().Add(time.Hour)
		f := newFixture(t, apiclient.WithNowTime(func() time.Time { return later }))
		a1, _ := f.login(t)

		token, err := f.client.TokenSource(context.Background()).Token()
		require.NoError(t, err)
		require.NotEqual(t, a1, token.AccessToken)
		require.Equal(t, 1, f.backend.RefreshCalls())

		a2, _ := f.tokens(t)
		require.Equal(t, a2, token.AccessToken)
	})

	t.Run("missing access token is refreshed", func(t *testing.T) {
		f := newFixture(t)
		_, refresh := f.login(t)
		require.NoError(t, f.store.Delete(context.Background(), "staff_token"))

		token, err := f.client.TokenSource(context.Background()).Token()
		require.NoError(t, err)
		require.NotEmpty(t, token.AccessToken)

		_, r2 := f.tokens(t)
		require.NotEqual(t, refresh, r2)
	})
}
