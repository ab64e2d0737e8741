package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenCodecRoundTrip(t *testing.T) {
	codec := NewTokenCodec("test-secret", 15*time.Minute, 7*24*time.Hour)
	alice := User{ID: "user-1", Username: "alice", Role: "user"}

	for _, kind := range []TokenKind{KindAccess, KindRefresh} {
		token, err := codec.Issue(alice, kind)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := codec.Verify(token)
		require.NoError(t, err)
		require.Equal(t, "alice", claims.Subject)
		require.Equal(t, "user", claims.Role)
		require.Equal(t, kind, claims.Kind)
		require.True(t, claims.ExpiresAt.After(time.Now().UTC()))
	}
}

func TestTokenCodecSubjectOf(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Minute, time.Hour)

	token, err := codec.Issue(User{Username: "bob", Role: "user"}, KindRefresh)
	require.NoError(t, err)

	subject, err := codec.SubjectOf(token)
	require.NoError(t, err)
	require.Equal(t, "bob", subject)

	// SubjectOf does not verify signatures, so a token from another key is
	// still readable.
	other := NewTokenCodec("other-secret", time.Minute, time.Hour)
	foreign, err := other.Issue(User{Username: "eve", Role: "user"}, KindAccess)
	require.NoError(t, err)

	subject, err = codec.SubjectOf(foreign)
	require.NoError(t, err)
	require.Equal(t, "eve", subject)
}

func TestTokenCodecRejectsForeignSignature(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Minute, time.Hour)
	other := NewTokenCodec("other-secret", time.Minute, time.Hour)

	foreign, err := other.Issue(User{Username: "eve", Role: "user"}, KindAccess)
	require.NoError(t, err)

	_, err = codec.Verify(foreign)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenCodecRejectsExpired(t *testing.T) {
	shortLived := NewTokenCodec("test-secret", time.Nanosecond, time.Nanosecond)

	token, err := shortLived.Issue(User{Username: "alice", Role: "user"}, KindAccess)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = shortLived.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenCodecRejectsMalformed(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Minute, time.Hour)

	_, err := codec.Verify("not-a-jwt")
	require.ErrorIs(t, err, ErrMalformedToken)

	_, err = codec.SubjectOf("not-a-jwt")
	require.ErrorIs(t, err, ErrMalformedToken)
}
