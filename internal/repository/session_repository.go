package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/voltdesk/be-plt-auth/pkg/apperr"
)

type SessionRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewSessionRepository(db *pgxpool.Pool, log zerolog.Logger) *SessionRepository {
	return &SessionRepository{db: db, log: log}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create inserts a new session. A non-empty refreshToken is stored as a
// hash alongside the row.
func (r *SessionRepository) Create(ctx context.Context, session *Session, refreshToken string) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.CreatedAt = time.Now()
	session.LastActivityAt = session.CreatedAt

	if refreshToken != "" {
		h := hashToken(refreshToken)
		session.RefreshTokenHash = &h
	}

	query := `
		INSERT INTO sessions (
			id, user_id, ip_address, user_agent,
			created_at, expires_at, last_activity_at, is_active,
			refresh_token_hash, refresh_token_expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		session.ID, session.UserID, session.IPAddress, session.UserAgent,
		session.CreatedAt, session.ExpiresAt, session.LastActivityAt, session.IsActive,
		session.RefreshTokenHash, session.RefreshTokenExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by id. Callers check IsActive and ExpiresAt.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*Session, error) {
	session := &Session{}

	query := `
		SELECT id, user_id, ip_address, user_agent,
		       created_at, expires_at, last_activity_at, is_active,
		       refresh_token_hash, refresh_token_expires_at
		FROM sessions
		WHERE id = $1
	`

	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&session.ID, &session.UserID, &session.IPAddress, &session.UserAgent,
		&session.CreatedAt, &session.ExpiresAt, &session.LastActivityAt, &session.IsActive,
		&session.RefreshTokenHash, &session.RefreshTokenExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("session", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// UpdateLastActivity bumps the activity timestamp. Best effort.
func (r *SessionRepository) UpdateLastActivity(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET last_activity_at = NOW() WHERE id = $1`

	_, err := r.db.Exec(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update last activity: %w", err)
	}
	return nil
}

// Deactivate ends a session.
func (r *SessionRepository) Deactivate(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET is_active = false WHERE id = $1`

	_, err := r.db.Exec(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return nil
}

// DeactivateUserSessions ends every active session for a user, e.g. after
// a password change.
func (r *SessionRepository) DeactivateUserSessions(ctx context.Context, userID string) error {
	query := `UPDATE sessions SET is_active = false WHERE user_id = $1 AND is_active = true`

	_, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user sessions: %w", err)
	}
	return nil
}

// RotateRefreshToken replaces the stored refresh token hash after a
// successful refresh.
func (r *SessionRepository) RotateRefreshToken(ctx context.Context, sessionID, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE sessions
		SET refresh_token_hash = $2, refresh_token_expires_at = $3
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, sessionID, hashToken(refreshToken), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return nil
}

// ValidateRefreshToken reports whether refreshToken matches the hash
// stored on an active, unexpired session.
func (r *SessionRepository) ValidateRefreshToken(ctx context.Context, sessionID, refreshToken string) (bool, error) {
	var storedHash *string
	var expiresAt *time.Time
	var isActive bool

	query := `
		SELECT refresh_token_hash, refresh_token_expires_at, is_active
		FROM sessions
		WHERE id = $1
	`

	err := r.db.QueryRow(ctx, query, sessionID).Scan(&storedHash, &expiresAt, &isActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to validate refresh token: %w", err)
	}

	if !isActive {
		return false, nil
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return false, nil
	}
	if storedHash == nil || *storedHash != hashToken(refreshToken) {
		return false, nil
	}
	return true, nil
}
