package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/STS-Engineer/llc-backend/internal/domain/user"
	"github.com/STS-Engineer/llc-backend/internal/repository"
)

// UserStore implements user.Repository for SQLite.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new UserStore.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a user account.
func (s *UserStore) Create(ctx context.Context, u *user.User) error {
	q := s.db.runner(ctx)

	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, email, name, plant, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.Name, u.Plant, u.Role, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (*user.User, error) {
	return s.get(ctx, `WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.get(ctx, `WHERE email = ?`, email)
}

func (s *UserStore) get(ctx context.Context, where string, arg any) (*user.User, error) {
	q := s.db.runner(ctx)

	var u user.User
	err := q.QueryRowContext(ctx, `
		SELECT id, email, name, plant, role, password_hash, created_at
		FROM users `+where, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.Plant, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
