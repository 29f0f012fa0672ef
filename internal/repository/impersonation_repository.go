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
)

type ImpersonationRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewImpersonationRepository(db *pgxpool.Pool, log zerolog.Logger) *ImpersonationRepository {
	return &ImpersonationRepository{db: db, log: log}
}

// Create opens an impersonation session.
func (r *ImpersonationRepository) Create(ctx context.Context, imp *ImpersonationLog) error {
	imp.ID = uuid.New().String()
	if imp.StartedAt.IsZero() {
		imp.StartedAt = time.Now()
	}

	query := `
		INSERT INTO impersonation_logs (id, admin_user_id, target_user_id, company_id, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		imp.ID, imp.AdminUserID, imp.TargetUserID, imp.CompanyID, imp.StartedAt, imp.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create impersonation log: %w", err)
	}
	return nil
}

// ActiveFor returns the most recent open (ended_at IS NULL) impersonation
// row for an admin within a company, or nil when there is none. The
// most-recent-first order is what enforces the one-active-row invariant.
func (r *ImpersonationRepository) ActiveFor(ctx context.Context, adminUserID, companyID string) (*ImpersonationLog, error) {
	imp := &ImpersonationLog{}

	query := `
		SELECT id, admin_user_id, target_user_id, company_id, started_at, ended_at
		FROM impersonation_logs
		WHERE admin_user_id = $1 AND company_id = $2 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`

	err := r.db.QueryRow(ctx, query, adminUserID, companyID).Scan(
		&imp.ID, &imp.AdminUserID, &imp.TargetUserID, &imp.CompanyID, &imp.StartedAt, &imp.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active impersonation: %w", err)
	}
	return imp, nil
}

// End closes an impersonation row.
func (r *ImpersonationRepository) End(ctx context.Context, id string, endedAt time.Time) error {
	query := `UPDATE impersonation_logs SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL`

	_, err := r.db.Exec(ctx, query, id, endedAt)
	if err != nil {
		return fmt.Errorf("failed to end impersonation: %w", err)
	}
	return nil
}
