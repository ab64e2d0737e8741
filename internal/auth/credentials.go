package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// UserStore is the slice of the user table the auth core needs. The
// Postgres implementation lives in internal/user.
type UserStore interface {
	FindByUsernameOrEmail(ctx context.Context, identifier string) (User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	Create(ctx context.Context, user User) error
}

// CredentialVerifier resolves an identifier+secret pair to a stored user.
// The identifier may match either the username or the email column.
type CredentialVerifier struct {
	users UserStore
}

func NewCredentialVerifier(users UserStore) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

func (v *CredentialVerifier) Authenticate(ctx context.Context, identifier, secret string) (User, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	secret = strings.TrimSpace(secret)

	if identifier == "" || secret == "" {
		return User{}, ErrInvalidCredentials
	}

	user, err := v.users.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	// bcrypt's comparison is constant-time; a mismatch is indistinguishable
	// from an unknown identifier to the caller.
	if err := bcrypt.CompareHashAndPassword([]byte(user.SecretHash), []byte(secret)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	return user, nil
}
