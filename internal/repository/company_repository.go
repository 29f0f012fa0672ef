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

type CompanyRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewCompanyRepository(db *pgxpool.Pool, log zerolog.Logger) *CompanyRepository {
	return &CompanyRepository{db: db, log: log}
}

// Create inserts a new company. Branding fields fall back to platform
// defaults when empty, matching the just-in-time provisioning path.
func (r *CompanyRepository) Create(ctx context.Context, company *Company) error {
	company.ID = uuid.New().String()
	company.CreatedAt = time.Now()
	company.UpdatedAt = company.CreatedAt
	if company.BrandColor == "" {
		company.BrandColor = "#1f6feb"
	}
	if company.Theme == "" {
		company.Theme = "light"
	}

	query := `
		INSERT INTO companies (id, name, subdomain, brand_color, theme, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		company.ID, company.Name, company.Subdomain, company.BrandColor, company.Theme,
		company.CreatedAt, company.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// GetByID retrieves a company by id.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*Company, error) {
	company := &Company{}

	query := `
		SELECT id, name, subdomain, brand_color, theme, created_at, updated_at
		FROM companies
		WHERE id = $1
	`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&company.ID, &company.Name, &company.Subdomain, &company.BrandColor,
		&company.Theme, &company.CreatedAt, &company.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("company", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}
