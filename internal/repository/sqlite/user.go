package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new user. The e-mail is stored normalised; a second
// account for the same e-mail fails with apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.Email = model.NormalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "a user with this email is already registered",
				Field:   "email",
			}
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetUserByEmail retrieves a user by e-mail (case-insensitive).
// Returns apperror.ErrNotFound if no user exists with that e-mail.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)

	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at, updated_at
		 FROM users WHERE email = ?`,
		email,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", email, err)
	}

	return &u, nil
}

// UpdatePassword replaces the stored hash (password reset).
func (db *DB) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	email = model.NormalizeEmail(email)

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE email = ?`,
		passwordHash, time.Now(), email,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for %s: %w", email, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", email)
	}

	return nil
}
