package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cexcore/exchange/internal/apperr"
	"github.com/cexcore/exchange/internal/models"
)

// UserStore persists users in PostgreSQL
type UserStore struct {
	pool *pgxpool.Pool
}

const userColumns = "id, username, password_hash, first_name, last_name, email, created_at"

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash,
		&user.FirstName, &user.LastName, &user.Email, &user.CreatedAt); err != nil {
		return nil, err
	}
	return user, nil
}

// Create inserts a new user
func (s *UserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, first_name, last_name, email)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		user.Username, user.PasswordHash, user.FirstName, user.LastName, user.Email)
	saved, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return saved, nil
}

// Get fetches a user by id
func (s *UserStore) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByUsername fetches a user by username
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user with username '%s' not found", username)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ExistsByUsernameOrEmail reports whether a user with the username or email
// already exists
func (s *UserStore) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)",
		username, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}
