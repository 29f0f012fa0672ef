package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/voltdesk/be-plt-auth/pkg/apperr"
)

type UserRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewUserRepository(db *pgxpool.Pool, log zerolog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

const userColumns = `
	id, company_id, email, name, role, password_hash,
	auth_provider, auth_provider_id, impersonation_id, profile_complete,
	failed_login_attempts, locked_until, last_login_at, created_at, updated_at
`

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.CompanyID, &user.Email, &user.Name, &user.Role, &user.PasswordHash,
		&user.AuthProvider, &user.AuthProviderID, &user.ImpersonationID, &user.ProfileComplete,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create inserts a new user. ID and timestamps are assigned here.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	query := `
		INSERT INTO users (
			id, company_id, email, name, role, password_hash,
			auth_provider, auth_provider_id, profile_complete, created_at, updated_at
		) VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.CompanyID, user.Email, user.Name, user.Role, user.PasswordHash,
		user.AuthProvider, user.AuthProviderID, user.ProfileComplete, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetByProvider retrieves a user by provider-issued id. Preferred over
// email lookup: the provider id is stable across email changes.
func (r *UserRepository) GetByProvider(ctx context.Context, provider, providerID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE auth_provider = $1 AND auth_provider_id = $2`

	user, err := scanUser(r.db.QueryRow(ctx, query, provider, providerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", provider+"/"+providerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by provider id: %w", err)
	}
	return user, nil
}

// SetProviderIdentity back-fills the provider-issued id on a user that
// was matched by email only.
func (r *UserRepository) SetProviderIdentity(ctx context.Context, userID, provider, providerID string) error {
	query := `
		UPDATE users
		SET auth_provider = $2, auth_provider_id = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, userID, provider, providerID)
	if err != nil {
		return fmt.Errorf("failed to set provider identity: %w", err)
	}
	return nil
}

// SetImpersonation updates the denormalized current-impersonation pointer.
// A nil id clears it.
func (r *UserRepository) SetImpersonation(ctx context.Context, userID string, impersonationID *string) error {
	query := `UPDATE users SET impersonation_id = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.db.Exec(ctx, query, userID, impersonationID)
	if err != nil {
		return fmt.Errorf("failed to set impersonation pointer: %w", err)
	}
	return nil
}

// IncrementFailedLogins bumps the failed login counter.
func (r *UserRepository) IncrementFailedLogins(ctx context.Context, userID string) error {
	query := `UPDATE users SET failed_login_attempts = failed_login_attempts + 1 WHERE id = $1`

	_, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to increment failed logins: %w", err)
	}
	return nil
}

// LockAccount locks the account until the given time.
func (r *UserRepository) LockAccount(ctx context.Context, userID string, until time.Time) error {
	query := `UPDATE users SET locked_until = $2 WHERE id = $1`

	_, err := r.db.Exec(ctx, query, userID, until)
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}
	return nil
}

// ResetLoginState clears failure counters and records a successful login.
func (r *UserRepository) ResetLoginState(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, last_login_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to reset login state: %w", err)
	}
	return nil
}
