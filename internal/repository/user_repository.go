package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUsernameAlreadyExists = errors.New("username already exists")
)

// DefaultWallet is the opening balance credited to every new account
const DefaultWallet = 5000

// UserRepository defines the interface for user data access.
// All mutation goes through named operations so the store can enforce
// the uniqueness and wallet invariants centrally.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateFailedAttempts(ctx context.Context, id uuid.UUID, count int) error
	SetLockout(ctx context.Context, id uuid.UUID, until time.Time) error
	ResetFailedAttempts(ctx context.Context, id uuid.UUID) error
	UpdateBio(ctx context.Context, id uuid.UUID, bio string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// userRepository implements UserRepository using PostgreSQL
type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

// Create inserts a new user. The wallet opens at DefaultWallet and the
// account starts active with a clean lockout state.
func (r *userRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (username, password_hash, status, wallet)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.PasswordHash,
		StatusActive,
		DefaultWallet,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "idx_users_username") {
			return ErrUsernameAlreadyExists
		}
		return err
	}

	user.Status = StatusActive
	user.Wallet = DefaultWallet
	return nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, username, password_hash, bio, status, wallet, failed_attempts, lockout_until, created_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByUsername retrieves a user by their unique username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, password_hash, bio, status, wallet, failed_attempts, lockout_until, created_at
		FROM users
		WHERE username = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *userRepository) scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Bio,
		&user.Status,
		&user.Wallet,
		&user.FailedAttempts,
		&user.LockoutUntil,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// List retrieves all users ordered by registration time
func (r *userRepository) List(ctx context.Context) ([]User, error) {
	query := `
		SELECT id, username, password_hash, bio, status, wallet, failed_attempts, lockout_until, created_at
		FROM users
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.PasswordHash,
			&user.Bio,
			&user.Status,
			&user.Wallet,
			&user.FailedAttempts,
			&user.LockoutUntil,
			&user.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// UsernameExists checks if a username is already registered
func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, username).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// UpdateFailedAttempts sets the failed login counter for a user
func (r *userRepository) UpdateFailedAttempts(ctx context.Context, id uuid.UUID, count int) error {
	return r.exec(ctx, `UPDATE users SET failed_attempts = $1 WHERE id = $2`, count, id)
}

// SetLockout sets the lockout deadline for a user
func (r *userRepository) SetLockout(ctx context.Context, id uuid.UUID, until time.Time) error {
	return r.exec(ctx, `UPDATE users SET lockout_until = $1 WHERE id = $2`, until, id)
}

// ResetFailedAttempts clears the failed login counter and lockout deadline
func (r *userRepository) ResetFailedAttempts(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `UPDATE users SET failed_attempts = 0, lockout_until = NULL WHERE id = $1`, id)
}

// UpdateBio sets the profile bio for a user
func (r *userRepository) UpdateBio(ctx context.Context, id uuid.UUID, bio string) error {
	return r.exec(ctx, `UPDATE users SET bio = $1 WHERE id = $2`, bio, id)
}

// UpdatePassword sets a new password hash for a user
func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
}

// UpdateStatus sets the account status (active or suspended)
func (r *userRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.exec(ctx, `UPDATE users SET status = $1 WHERE id = $2`, status, id)
}

func (r *userRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
