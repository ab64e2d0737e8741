package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenStore persists issued tokens, their revocation flags and the
// access-to-refresh linkage. Revocation flags only ever flip to true.
type TokenStore interface {
	SaveAccessToken(ctx context.Context, token, userID, refreshTokenID string) (AccessToken, error)
	SaveRefreshToken(ctx context.Context, token string) (RefreshToken, error)
	FindAccessToken(ctx context.Context, token string) (AccessToken, error)
	FindRefreshToken(ctx context.Context, token string) (RefreshToken, error)
	ValidAccessTokensFor(ctx context.Context, userID string) ([]AccessToken, error)
	RevokeAccessTokensFor(ctx context.Context, userID string) error
	RevokeRefreshToken(ctx context.Context, id string) error
}

type PostgresTokenStore struct {
	db *sql.DB
}

func NewPostgresTokenStore(db *sql.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

func (s *PostgresTokenStore) SaveAccessToken(ctx context.Context, token, userID, refreshTokenID string) (AccessToken, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return AccessToken{}, fmt.Errorf("generate access token id: %w", err)
	}

	row := AccessToken{
		ID:             id.String(),
		Token:          token,
		UserID:         userID,
		RefreshTokenID: refreshTokenID,
		CreatedAt:      time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO access_tokens (id, token, user_id, refresh_token_id, revoked, expired, created_at)
		VALUES ($1, $2, $3, $4, FALSE, FALSE, $5)
	`, row.ID, row.Token, row.UserID, row.RefreshTokenID, row.CreatedAt)
	if err != nil {
		return AccessToken{}, fmt.Errorf("insert access token: %w", err)
	}

	return row, nil
}

func (s *PostgresTokenStore) SaveRefreshToken(ctx context.Context, token string) (RefreshToken, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return RefreshToken{}, fmt.Errorf("generate refresh token id: %w", err)
	}

	row := RefreshToken{
		ID:        id.String(),
		Token:     token,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, token, revoked, expired, created_at)
		VALUES ($1, $2, FALSE, FALSE, $3)
	`, row.ID, row.Token, row.CreatedAt)
	if err != nil {
		return RefreshToken{}, fmt.Errorf("insert refresh token: %w", err)
	}

	return row, nil
}

func (s *PostgresTokenStore) FindAccessToken(ctx context.Context, token string) (AccessToken, error) {
	var row AccessToken
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token, user_id, refresh_token_id, revoked, expired, created_at
		FROM access_tokens
		WHERE token = $1
	`, token).Scan(&row.ID, &row.Token, &row.UserID, &row.RefreshTokenID, &row.Revoked, &row.Expired, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AccessToken{}, ErrTokenNotFound
		}
		return AccessToken{}, fmt.Errorf("query access token: %w", err)
	}

	return row, nil
}

func (s *PostgresTokenStore) FindRefreshToken(ctx context.Context, token string) (RefreshToken, error) {
	var row RefreshToken
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token, revoked, expired, created_at
		FROM refresh_tokens
		WHERE token = $1
	`, token).Scan(&row.ID, &row.Token, &row.Revoked, &row.Expired, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RefreshToken{}, ErrTokenNotFound
		}
		return RefreshToken{}, fmt.Errorf("query refresh token: %w", err)
	}

	return row, nil
}

func (s *PostgresTokenStore) ValidAccessTokensFor(ctx context.Context, userID string) ([]AccessToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token, user_id, refresh_token_id, revoked, expired, created_at
		FROM access_tokens
		WHERE user_id = $1 AND revoked = FALSE AND expired = FALSE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query valid access tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]AccessToken, 0)
	for rows.Next() {
		var row AccessToken
		if err := rows.Scan(&row.ID, &row.Token, &row.UserID, &row.RefreshTokenID, &row.Revoked, &row.Expired, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan access token: %w", err)
		}
		tokens = append(tokens, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access tokens: %w", err)
	}

	return tokens, nil
}

// RevokeAccessTokensFor flips every currently-valid access token of the
// user in one statement, so a concurrent refresh can never observe a
// half-revoked set.
func (s *PostgresTokenStore) RevokeAccessTokensFor(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE access_tokens
		SET revoked = TRUE, expired = TRUE
		WHERE user_id = $1 AND revoked = FALSE AND expired = FALSE
	`, userID)
	if err != nil {
		return fmt.Errorf("revoke access tokens for user: %w", err)
	}

	return nil
}

func (s *PostgresTokenStore) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE, expired = TRUE
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

type CleanupResult struct {
	DeletedAccessTokens  int64 `json:"deleted_access_tokens"`
	DeletedRefreshTokens int64 `json:"deleted_refresh_tokens"`
}

// CleanupStaleTokens deletes revoked token rows older than the retention
// window. This is the only path that removes token rows; the request path
// never does.
func (s *PostgresTokenStore) CleanupStaleTokens(ctx context.Context, retention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	cutoff := time.Now().UTC().Add(-retention)

	deletedAccess, err := s.deleteStaleAccessTokens(ctx, cutoff, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	deletedRefresh, err := s.deleteStaleRefreshTokens(ctx, cutoff, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	return CleanupResult{
		DeletedAccessTokens:  deletedAccess,
		DeletedRefreshTokens: deletedRefresh,
	}, nil
}

func (s *PostgresTokenStore) deleteStaleAccessTokens(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM access_tokens
			WHERE revoked = TRUE AND created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM access_tokens t
		USING stale
		WHERE t.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale access tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale access tokens rows affected: %w", err)
	}

	return affected, nil
}

func (s *PostgresTokenStore) deleteStaleRefreshTokens(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT r.id
			FROM refresh_tokens r
			WHERE r.revoked = TRUE
			  AND r.created_at < $1
			  AND NOT EXISTS (SELECT 1 FROM access_tokens a WHERE a.refresh_token_id = r.id)
			ORDER BY r.created_at ASC
			LIMIT $2
		)
		DELETE FROM refresh_tokens t
		USING stale
		WHERE t.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale refresh tokens rows affected: %w", err)
	}

	return affected, nil
}
