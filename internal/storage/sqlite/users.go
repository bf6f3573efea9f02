package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

const selectUser = `SELECT id, email, display_name, password_hash, created_at, updated_at FROM users`

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.Email, err)
	}
	return nil
}

// GetUserByEmail returns nil, nil when the address is not registered.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email", email)
}

// GetUserByID returns nil, nil for an unknown id.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "id", id)
}

// findUser looks a user up by a unique column. column is never user input.
func (s *SQLiteStore) findUser(ctx context.Context, column, value string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, selectUser+` WHERE `+column+` = ?`, value).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("select user by %s: %w", column, err)
	}
	return &u, nil
}
