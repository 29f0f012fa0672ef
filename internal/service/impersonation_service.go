package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltdesk/be-plt-auth/internal/repository"
	"github.com/voltdesk/be-plt-auth/pkg/apperr"
)

// ImpersonationService tracks admin-as-user support sessions. A session
// is Idle or Active; expiry is not a separate state — it is computed at
// read time and reconciled eagerly, so no background sweep is needed.
type ImpersonationService struct {
	impersonations ImpersonationStore
	users          UserStore
	audit          AuditStore
	log            zerolog.Logger
	ttl            time.Duration
	now            func() time.Time
}

func NewImpersonationService(
	impersonations ImpersonationStore,
	users UserStore,
	audit AuditStore,
	ttl time.Duration,
	log zerolog.Logger,
) *ImpersonationService {
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	return &ImpersonationService{
		impersonations: impersonations,
		users:          users,
		audit:          audit,
		log:            log,
		ttl:            ttl,
		now:            time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *ImpersonationService) SetClock(now func() time.Time) {
	s.now = now
}

// expired is the pure TTL decision, separated from the reconcile write so
// it can be tested without side effects.
func expired(startedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(startedAt) > ttl
}

// Start opens an impersonation session for an admin acting as
// targetUserID within the admin's company.
func (s *ImpersonationService) Start(ctx context.Context, admin *CompanyAuthContext, targetUserID string) (*repository.ImpersonationLog, error) {
	if targetUserID == admin.UserID {
		return nil, apperr.Conflict("cannot impersonate yourself")
	}
	if _, err := s.users.GetByID(ctx, targetUserID); err != nil {
		if apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, apperr.Wrap(err, "target user lookup failed")
	}

	existing, err := s.impersonations.ActiveFor(ctx, admin.UserID, admin.CompanyID)
	if err != nil {
		return nil, apperr.Wrap(err, "impersonation lookup failed")
	}
	if existing != nil {
		if !expired(existing.StartedAt, s.now(), s.ttl) {
			return nil, apperr.Conflict("impersonation already active")
		}
		s.reconcile(ctx, existing)
	}

	imp := &repository.ImpersonationLog{
		AdminUserID:  admin.UserID,
		TargetUserID: targetUserID,
		CompanyID:    admin.CompanyID,
		StartedAt:    s.now(),
	}
	if err := s.impersonations.Create(ctx, imp); err != nil {
		return nil, apperr.Wrap(err, "impersonation start failed")
	}
	if err := s.users.SetImpersonation(ctx, admin.UserID, &imp.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", admin.UserID).Msg("impersonation pointer update failed")
	}

	s.auditImpersonation(ctx, admin, "impersonation_start", imp)
	s.log.Info().
		Str("admin_user_id", admin.UserID).
		Str("target_user_id", targetUserID).
		Str("company_id", admin.CompanyID).
		Msg("impersonation started")
	return imp, nil
}

// Stop explicitly ends the admin's active impersonation session.
// Stopping with none active is a no-op.
func (s *ImpersonationService) Stop(ctx context.Context, admin *CompanyAuthContext) error {
	imp, err := s.impersonations.ActiveFor(ctx, admin.UserID, admin.CompanyID)
	if err != nil {
		return apperr.Wrap(err, "impersonation lookup failed")
	}
	if imp == nil {
		return nil
	}

	if err := s.impersonations.End(ctx, imp.ID, s.now()); err != nil {
		return apperr.Wrap(err, "impersonation stop failed")
	}
	if err := s.users.SetImpersonation(ctx, admin.UserID, nil); err != nil {
		s.log.Warn().Err(err).Str("user_id", admin.UserID).Msg("impersonation pointer clear failed")
	}

	s.auditImpersonation(ctx, admin, "impersonation_stop", imp)
	s.log.Info().Str("admin_user_id", admin.UserID).Msg("impersonation stopped")
	return nil
}

// IsImpersonating reports whether the admin has a live impersonation
// session. A session past its TTL is reconciled on the spot (ended and
// pointer cleared) and reported as not impersonating.
func (s *ImpersonationService) IsImpersonating(ctx context.Context, adminUserID, companyID string) (bool, error) {
	imp, err := s.impersonations.ActiveFor(ctx, adminUserID, companyID)
	if err != nil {
		return false, apperr.Wrap(err, "impersonation lookup failed")
	}
	if imp == nil {
		return false, nil
	}
	if expired(imp.StartedAt, s.now(), s.ttl) {
		s.reconcile(ctx, imp)
		return false, nil
	}
	return true, nil
}

// RejectIfImpersonating guards mutating handlers. Reads are unaffected:
// impersonation is read-only by design, so an admin viewing as a user
// cannot cause side effects attributed to that user.
func (s *ImpersonationService) RejectIfImpersonating(ctx context.Context, companyCtx *CompanyAuthContext) error {
	active, err := s.IsImpersonating(ctx, companyCtx.UserID, companyCtx.CompanyID)
	if err != nil {
		// Fail closed: allowing a write during a possible impersonation
		// session is the unsafe direction.
		return err
	}
	if active {
		return apperr.Forbidden("mutations are blocked while impersonating")
	}
	return nil
}

// reconcile persists the implicit Active -> Idle transition for an
// expired session. Best effort: the caller already reports "not
// impersonating" either way.
func (s *ImpersonationService) reconcile(ctx context.Context, imp *repository.ImpersonationLog) {
	if err := s.impersonations.End(ctx, imp.ID, s.now()); err != nil {
		s.log.Warn().Err(err).Str("impersonation_id", imp.ID).Msg("expired impersonation reconcile failed")
		return
	}
	if err := s.users.SetImpersonation(ctx, imp.AdminUserID, nil); err != nil {
		s.log.Warn().Err(err).Str("user_id", imp.AdminUserID).Msg("impersonation pointer clear failed")
	}
	s.log.Info().Str("impersonation_id", imp.ID).Msg("expired impersonation reconciled")
}

func (s *ImpersonationService) auditImpersonation(ctx context.Context, admin *CompanyAuthContext, action string, imp *repository.ImpersonationLog) {
	event := &repository.AuditEvent{
		CompanyID:   &imp.CompanyID,
		ActorUserID: &admin.UserID,
		Action:      action,
		TargetType:  "user",
		TargetID:    imp.TargetUserID,
		Success:     true,
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn().Err(err).Msg("audit write failed")
	}
}
