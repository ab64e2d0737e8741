package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(t *testing.T) (*Authenticator, *SessionManager, *fakeUserStore, *fakeTokenStore) {
	t.Helper()
	users := newFakeUserStore()
	tokens := newFakeTokenStore()
	codec := NewTokenCodec("test-secret", 15*time.Minute, 7*24*time.Hour)
	return NewAuthenticator(codec, tokens, users), NewSessionManager(users, tokens, codec), users, tokens
}

func protectedProbe(t *testing.T, captured *Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		*captured = identity
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAttachesIdentity(t *testing.T) {
	authenticator, sessions, users, _ := newTestAuthenticator(t)
	alice := users.addUser("alice", "alice@example.com", "+15550100", "correct-horse", "user")

	login, err := sessions.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	var identity Identity
	handler := authenticator.Require(protectedProbe(t, &identity))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, alice.ID, identity.UserID)
	require.Equal(t, "alice", identity.Username)
	require.Equal(t, "user", identity.Role)
}

func TestRequireRejectsMissingOrMalformedHeader(t *testing.T) {
	authenticator, _, _, _ := newTestAuthenticator(t)
	handler := authenticator.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer", "Token abc", "Bearer  "} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestRequireRejectsRevokedToken(t *testing.T) {
	authenticator, sessions, users, _ := newTestAuthenticator(t)
	users.addUser("alice", "alice@example.com", "+15550100", "correct-horse", "user")

	first, err := sessions.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	// Second login revokes the first access token.
	_, err = sessions.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	handler := authenticator.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+first.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRejectsUnknownToken(t *testing.T) {
	authenticator, _, users, _ := newTestAuthenticator(t)
	alice := users.addUser("alice", "alice@example.com", "+15550100", "correct-horse", "user")

	// A well-formed token that was never persisted must not pass.
	codec := NewTokenCodec("test-secret", 15*time.Minute, 7*24*time.Hour)
	unsaved, err := codec.Issue(alice, KindAccess)
	require.NoError(t, err)

	handler := authenticator.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+unsaved)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRejectsGarbageToken(t *testing.T) {
	authenticator, _, _, _ := newTestAuthenticator(t)

	handler := authenticator.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
