package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type AuditRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log zerolog.Logger) *AuditRepository {
	return &AuditRepository{db: db, log: log}
}

// Record writes one audit event. Callers treat this as fire-and-forget: a
// failure here must never block the action being audited.
func (r *AuditRepository) Record(ctx context.Context, event *AuditEvent) error {
	event.ID = uuid.New().String()
	event.CreatedAt = time.Now()

	query := `
		INSERT INTO audit_events (id, company_id, actor_user_id, action, target_type, target_id, detail, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		event.ID, event.CompanyID, event.ActorUserID, event.Action,
		event.TargetType, event.TargetID, event.Detail, event.Success, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}
