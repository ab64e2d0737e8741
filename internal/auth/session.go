package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// SessionManager owns the login, refresh, logout and signup flows. It is
// the only writer of the token store.
type SessionManager struct {
	users       UserStore
	tokens      TokenStore
	codec       *TokenCodec
	credentials *CredentialVerifier
}

func NewSessionManager(users UserStore, tokens TokenStore, codec *TokenCodec) *SessionManager {
	return &SessionManager{
		users:       users,
		tokens:      tokens,
		codec:       codec,
		credentials: NewCredentialVerifier(users),
	}
}

// Login authenticates the identifier+secret pair and mints a fresh
// access+refresh pair. Every prior valid access token of the user is
// revoked in the same flow, so at most one access token stays valid.
func (m *SessionManager) Login(ctx context.Context, identifier, secret string) (Tokens, error) {
	user, err := m.credentials.Authenticate(ctx, identifier, secret)
	if err != nil {
		return Tokens{}, err
	}

	accessToken, err := m.codec.Issue(user, KindAccess)
	if err != nil {
		return Tokens{}, err
	}
	refreshToken, err := m.codec.Issue(user, KindRefresh)
	if err != nil {
		return Tokens{}, err
	}

	// A stored row under the fresh access token string would mean a stale
	// lineage reusing it; retire that lineage's refresh token first.
	if existing, err := m.tokens.FindAccessToken(ctx, accessToken); err == nil {
		if err := m.tokens.RevokeRefreshToken(ctx, existing.RefreshTokenID); err != nil {
			return Tokens{}, err
		}
	} else if !errors.Is(err, ErrTokenNotFound) {
		return Tokens{}, err
	}

	if err := m.tokens.RevokeAccessTokensFor(ctx, user.ID); err != nil {
		return Tokens{}, err
	}

	refreshRow, err := m.tokens.SaveRefreshToken(ctx, refreshToken)
	if err != nil {
		return Tokens{}, err
	}
	if _, err := m.tokens.SaveAccessToken(ctx, accessToken, user.ID, refreshRow.ID); err != nil {
		return Tokens{}, err
	}

	return Tokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh mints a new access token bound to the same refresh token row.
// The refresh token string never changes here; only access tokens rotate.
func (m *SessionManager) Refresh(ctx context.Context, rawRefreshToken string) (Tokens, error) {
	rawRefreshToken = strings.TrimSpace(rawRefreshToken)
	if rawRefreshToken == "" {
		return Tokens{}, ErrMissingToken
	}

	row, err := m.tokens.FindRefreshToken(ctx, rawRefreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return Tokens{}, ErrTokenNotFound
		}
		return Tokens{}, err
	}

	subject, err := m.codec.SubjectOf(rawRefreshToken)
	if err != nil {
		return Tokens{}, ErrMalformedToken
	}

	user, err := m.users.FindByUsernameOrEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Tokens{}, ErrUserNotFound
		}
		return Tokens{}, err
	}

	if _, err := m.codec.Verify(rawRefreshToken); err != nil {
		return Tokens{}, ErrTokenRevoked
	}
	if !row.Valid() {
		return Tokens{}, ErrTokenRevoked
	}

	accessToken, err := m.codec.Issue(user, KindAccess)
	if err != nil {
		return Tokens{}, err
	}

	if err := m.tokens.RevokeAccessTokensFor(ctx, user.ID); err != nil {
		return Tokens{}, err
	}
	if _, err := m.tokens.SaveAccessToken(ctx, accessToken, user.ID, row.ID); err != nil {
		return Tokens{}, err
	}

	return Tokens{AccessToken: accessToken, RefreshToken: rawRefreshToken}, nil
}

// Logout retires the session the access token belongs to. Unknown or
// already-revoked tokens are a no-op, so repeated logouts succeed.
func (m *SessionManager) Logout(ctx context.Context, rawAccessToken string) error {
	rawAccessToken = strings.TrimSpace(rawAccessToken)
	if rawAccessToken == "" {
		return nil
	}

	row, err := m.tokens.FindAccessToken(ctx, rawAccessToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil
		}
		return err
	}

	if err := m.tokens.RevokeRefreshToken(ctx, row.RefreshTokenID); err != nil {
		return err
	}

	return m.tokens.RevokeAccessTokensFor(ctx, row.UserID)
}

// Signup registers a new user with the default role. Username and phone
// must both be unused.
func (m *SessionManager) Signup(ctx context.Context, input SignupInput) error {
	username := strings.TrimSpace(strings.ToLower(input.Username))

	taken, err := m.users.ExistsByUsername(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}

	taken, err = m.users.ExistsByPhone(ctx, strings.TrimSpace(input.Phone))
	if err != nil {
		return err
	}
	if taken {
		return ErrPhoneTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(input.Secret)), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}

	return m.users.Create(ctx, User{
		Username:   username,
		Email:      strings.TrimSpace(strings.ToLower(input.Email)),
		Phone:      strings.TrimSpace(input.Phone),
		SecretHash: string(hash),
		Role:       "user",
	})
}
