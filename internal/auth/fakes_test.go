package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users []User
	seq   int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{}
}

func (s *fakeUserStore) addUser(username, email, phone, secret, role string) User {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	u := User{
		ID:         fmt.Sprintf("user-%d", s.seq),
		Username:   username,
		Email:      email,
		Phone:      phone,
		SecretHash: string(hash),
		Role:       role,
		CreatedAt:  time.Now().UTC(),
	}
	s.users = append(s.users, u)
	return u
}

func (s *fakeUserStore) FindByUsernameOrEmail(_ context.Context, identifier string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == identifier || u.Email == strings.ToLower(identifier) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (s *fakeUserStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeUserStore) ExistsByPhone(_ context.Context, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeUserStore) Create(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	u.ID = fmt.Sprintf("user-%d", s.seq)
	u.CreatedAt = time.Now().UTC()
	s.users = append(s.users, u)
	return nil
}

type fakeTokenStore struct {
	mu            sync.Mutex
	accessTokens  []AccessToken
	refreshTokens []RefreshToken
	seq           int
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{}
}

func (s *fakeTokenStore) SaveAccessToken(_ context.Context, token, userID, refreshTokenID string) (AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	row := AccessToken{
		ID:             fmt.Sprintf("at-%d", s.seq),
		Token:          token,
		UserID:         userID,
		RefreshTokenID: refreshTokenID,
		CreatedAt:      time.Now().UTC(),
	}
	s.accessTokens = append(s.accessTokens, row)
	return row, nil
}

func (s *fakeTokenStore) SaveRefreshToken(_ context.Context, token string) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	row := RefreshToken{
		ID:        fmt.Sprintf("rt-%d", s.seq),
		Token:     token,
		CreatedAt: time.Now().UTC(),
	}
	s.refreshTokens = append(s.refreshTokens, row)
	return row, nil
}

func (s *fakeTokenStore) FindAccessToken(_ context.Context, token string) (AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.accessTokens {
		if row.Token == token {
			return row, nil
		}
	}
	return AccessToken{}, ErrTokenNotFound
}

func (s *fakeTokenStore) FindRefreshToken(_ context.Context, token string) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.refreshTokens {
		if row.Token == token {
			return row, nil
		}
	}
	return RefreshToken{}, ErrTokenNotFound
}

func (s *fakeTokenStore) ValidAccessTokensFor(_ context.Context, userID string) ([]AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	valid := make([]AccessToken, 0)
	for _, row := range s.accessTokens {
		if row.UserID == userID && row.Valid() {
			valid = append(valid, row)
		}
	}
	return valid, nil
}

func (s *fakeTokenStore) RevokeAccessTokensFor(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.accessTokens {
		if s.accessTokens[i].UserID == userID && s.accessTokens[i].Valid() {
			s.accessTokens[i].Revoked = true
			s.accessTokens[i].Expired = true
		}
	}
	return nil
}

func (s *fakeTokenStore) RevokeRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.refreshTokens {
		if s.refreshTokens[i].ID == id {
			s.refreshTokens[i].Revoked = true
			s.refreshTokens[i].Expired = true
		}
	}
	return nil
}

func (s *fakeTokenStore) revokeRefreshByToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.refreshTokens {
		if s.refreshTokens[i].Token == token {
			s.refreshTokens[i].Revoked = true
			s.refreshTokens[i].Expired = true
		}
	}
}

func (s *fakeTokenStore) snapshot() ([]AccessToken, []RefreshToken) {
	s.mu.Lock()
	defer s.mu.Unlock()

	access := make([]AccessToken, len(s.accessTokens))
	copy(access, s.accessTokens)
	refresh := make([]RefreshToken, len(s.refreshTokens))
	copy(refresh, s.refreshTokens)
	return access, refresh
}
