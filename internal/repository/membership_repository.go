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

type MembershipRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewMembershipRepository(db *pgxpool.Pool, log zerolog.Logger) *MembershipRepository {
	return &MembershipRepository{db: db, log: log}
}

const membershipColumns = `id, company_id, user_id, email, role, is_active, created_at, updated_at`

func scanMembership(row pgx.Row) (*Membership, error) {
	m := &Membership{}
	err := row.Scan(&m.ID, &m.CompanyID, &m.UserID, &m.Email, &m.Role, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Create inserts a membership row. UserID may be nil for email-only
// invites issued before the invitee has an account.
func (r *MembershipRepository) Create(ctx context.Context, m *Membership) error {
	m.ID = uuid.New().String()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt

	// Partial unique index company_users_active_email_idx enforces at
	// most one active membership per email within a company.
	query := `
		INSERT INTO company_users (id, company_id, user_id, email, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, lower($4), $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		m.ID, m.CompanyID, m.UserID, m.Email, m.Role, m.IsActive, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// GetByUser retrieves the most recent membership for a user within a
// company, active or not. Callers decide what an inactive row means.
func (r *MembershipRepository) GetByUser(ctx context.Context, companyID, userID string) (*Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM company_users
		WHERE company_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	m, err := scanMembership(r.db.QueryRow(ctx, query, companyID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("membership", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership by user: %w", err)
	}
	return m, nil
}

// GetByEmail retrieves the most recent membership for an email within a
// company. Fallback for rows created before account linking.
func (r *MembershipRepository) GetByEmail(ctx context.Context, companyID, email string) (*Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM company_users
		WHERE company_id = $1 AND email = lower($2)
		ORDER BY created_at DESC
		LIMIT 1
	`

	m, err := scanMembership(r.db.QueryRow(ctx, query, companyID, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("membership", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership by email: %w", err)
	}
	return m, nil
}

// FindActiveByEmail retrieves the most recent active membership for an
// email across all companies. Used to route a first federated login to
// the inviting company instead of provisioning a fresh one.
func (r *MembershipRepository) FindActiveByEmail(ctx context.Context, email string) (*Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM company_users
		WHERE email = lower($1) AND is_active
		ORDER BY created_at DESC
		LIMIT 1
	`

	m, err := scanMembership(r.db.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("membership", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership by email: %w", err)
	}
	return m, nil
}

// GetByID retrieves a membership row by id.
func (r *MembershipRepository) GetByID(ctx context.Context, id string) (*Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM company_users WHERE id = $1`

	m, err := scanMembership(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("membership", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// SetActive toggles a membership. Deactivation preserves the row for
// audit history.
func (r *MembershipRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE company_users SET is_active = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("membership", id)
	}
	return nil
}

// UpdateRole changes the membership role.
func (r *MembershipRepository) UpdateRole(ctx context.Context, id, role string) error {
	query := `UPDATE company_users SET role = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, role)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("membership", id)
	}
	return nil
}

// LinkUser attaches an account id to an email-only membership.
func (r *MembershipRepository) LinkUser(ctx context.Context, id, userID string) error {
	query := `UPDATE company_users SET user_id = $2, updated_at = NOW() WHERE id = $1 AND user_id IS NULL`

	_, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to link membership user: %w", err)
	}
	return nil
}

// ListByCompany returns all memberships for a company, active first.
func (r *MembershipRepository) ListByCompany(ctx context.Context, companyID string) ([]*Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM company_users
		WHERE company_id = $1
		ORDER BY is_active DESC, created_at ASC
	`

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}
