package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ridehub/internal/auth"
)

// Repository is the Postgres-backed user directory. It satisfies
// auth.UserStore.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByUsernameOrEmail(ctx context.Context, identifier string) (auth.User, error) {
	var u auth.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, phone, secret_hash, role, created_at, updated_at
		FROM users
		WHERE username = $1 OR email = $1
	`, identifier).Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.SecretHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.User{}, auth.ErrUserNotFound
		}
		return auth.User{}, fmt.Errorf("query user by identifier: %w", err)
	}

	return u, nil
}

func (r *Repository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)
	`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}

	return exists, nil
}

func (r *Repository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE phone = $1)
	`, phone).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check phone exists: %w", err)
	}

	return exists, nil
}

func (r *Repository) Create(ctx context.Context, u auth.User) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, phone, secret_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id.String(), u.Username, u.Email, u.Phone, u.SecretHash, u.Role, now)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}
