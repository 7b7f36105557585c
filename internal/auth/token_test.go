package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	tm, err := NewTokenManager("test-secret", time.Hour, "chatstore")
	require.NoError(t, err)

	issued, err := tm.Issue("operator")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt, 5*time.Second)

	subject, err := tm.Verify(issued.Token)
	require.NoError(t, err)
	require.Equal(t, "operator", subject)
}

func TestTokenManagerRequiresSecretAndTTL(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager("", time.Hour, "chatstore")
	require.Error(t, err)

	_, err = NewTokenManager("secret", 0, "chatstore")
	require.Error(t, err)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	t.Parallel()

	issuerTM, err := NewTokenManager("secret-a", time.Hour, "chatstore")
	require.NoError(t, err)
	verifierTM, err := NewTokenManager("secret-b", time.Hour, "chatstore")
	require.NoError(t, err)

	issued, err := issuerTM.Issue("operator")
	require.NoError(t, err)

	_, err = verifierTM.Verify(issued.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	issuerTM, err := NewTokenManager("secret", time.Hour, "somewhere-else")
	require.NoError(t, err)
	verifierTM, err := NewTokenManager("secret", time.Hour, "chatstore")
	require.NoError(t, err)

	issued, err := issuerTM.Issue("operator")
	require.NoError(t, err)

	_, err = verifierTM.Verify(issued.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	tm, err := NewTokenManager("secret", time.Nanosecond, "chatstore")
	require.NoError(t, err)

	issued, err := tm.Issue("operator")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, err = tm.Verify(issued.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	tm, err := NewTokenManager("secret", time.Hour, "chatstore")
	require.NoError(t, err)

	_, err = tm.Verify("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	encoded, err := HashPassword("operator-key-123")
	require.NoError(t, err)
	require.Contains(t, encoded, "argon2id$")

	ok, err := VerifyPassword("operator-key-123", encoded)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifyPassword("wrong-key", encoded)
	require.NoError(t, err)
	require.False(t, ok)
}
