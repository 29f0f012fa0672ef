package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type PermissionRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewPermissionRepository(db *pgxpool.Pool, log zerolog.Logger) *PermissionRepository {
	return &PermissionRepository{db: db, log: log}
}

// ListCapabilities returns the explicit capability grants for a user
// within a company. An empty result is not an error.
func (r *PermissionRepository) ListCapabilities(ctx context.Context, companyID, userID string) ([]string, error) {
	query := `
		SELECT capability
		FROM user_permissions
		WHERE company_id = $1 AND user_id = $2
	`

	rows, err := r.db.Query(ctx, query, companyID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list capabilities: %w", err)
	}
	defer rows.Close()

	var capabilities []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan capability: %w", err)
		}
		capabilities = append(capabilities, c)
	}
	return capabilities, rows.Err()
}

// Grant records an explicit capability grant. Granting twice is a no-op.
func (r *PermissionRepository) Grant(ctx context.Context, grant *UserPermission) error {
	grant.ID = uuid.New().String()
	grant.CreatedAt = time.Now()

	query := `
		INSERT INTO user_permissions (id, company_id, user_id, capability, granted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, user_id, capability) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		grant.ID, grant.CompanyID, grant.UserID, grant.Capability, grant.GrantedBy, grant.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to grant capability: %w", err)
	}
	return nil
}

// Revoke removes an explicit grant. Role defaults are unaffected.
func (r *PermissionRepository) Revoke(ctx context.Context, companyID, userID, capability string) error {
	query := `DELETE FROM user_permissions WHERE company_id = $1 AND user_id = $2 AND capability = $3`

	_, err := r.db.Exec(ctx, query, companyID, userID, capability)
	if err != nil {
		return fmt.Errorf("failed to revoke capability: %w", err)
	}
	return nil
}
