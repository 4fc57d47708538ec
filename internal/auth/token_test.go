package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndResolve(t *testing.T) {
	t.Parallel()

	ts := NewTokenService("test-secret", time.Hour)

	token, err := ts.Issue("seller@example.com")
	require.NoError(t, err)

	email, err := ts.Resolve(token)
	require.NoError(t, err)
	require.Equal(t, "seller@example.com", email)
}

func TestResolveExpired(t *testing.T) {
	t.Parallel()

	ts := NewTokenService("test-secret", -time.Minute)

	token, err := ts.Issue("seller@example.com")
	require.NoError(t, err)

	_, err = ts.Resolve(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestResolveWrongSecret(t *testing.T) {
	t.Parallel()

	token, err := NewTokenService("secret-a", time.Hour).Issue("seller@example.com")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).Resolve(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestResetTokenIsNotAnIdentityToken(t *testing.T) {
	t.Parallel()

	ts := NewTokenService("test-secret", time.Hour)

	reset, err := ts.IssueReset("seller@example.com", 15*time.Minute)
	require.NoError(t, err)

	_, err = ts.Resolve(reset)
	require.ErrorIs(t, err, ErrTokenInvalid)

	email, err := ts.ResolveReset(reset)
	require.NoError(t, err)
	require.Equal(t, "seller@example.com", email)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter1234")
	require.NoError(t, err)
	require.NotEqual(t, "hunter1234", hash)
	require.True(t, CheckPassword("hunter1234", hash))
	require.False(t, CheckPassword("hunter12345", hash))
}
