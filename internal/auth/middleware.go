package auth

import (
	"context"
	"net/http"
	"strings"
)

type identityKey struct{}

// ContextWithIdentity returns a context carrying the resolved caller.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the caller resolved by the authenticator.
// Handlers behind Require can rely on the second return being true.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// Authenticator validates the bearer token of incoming requests and
// attaches the resolved identity to the request context. Routes not
// wrapped by Require stay public.
type Authenticator struct {
	codec  *TokenCodec
	tokens TokenStore
	users  UserStore
}

func NewAuthenticator(codec *TokenCodec, tokens TokenStore, users UserStore) *Authenticator {
	return &Authenticator{codec: codec, tokens: tokens, users: users}
}

func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		subject, err := a.codec.SubjectOf(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid authorization token")
			return
		}

		row, err := a.tokens.FindAccessToken(r.Context(), tokenString)
		if err != nil || !row.Valid() {
			writeError(w, http.StatusUnauthorized, "invalid or revoked token")
			return
		}

		claims, err := a.codec.Verify(tokenString)
		if err != nil || claims.Kind != KindAccess {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user, err := a.users.FindByUsernameOrEmail(r.Context(), subject)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unknown token subject")
			return
		}

		identity := Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}
