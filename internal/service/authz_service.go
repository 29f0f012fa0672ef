package service

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltdesk/be-plt-auth/internal/metrics"
	"github.com/voltdesk/be-plt-auth/pkg/apperr"
	"github.com/voltdesk/be-plt-auth/pkg/authz"
	"github.com/voltdesk/be-plt-auth/pkg/cookies"
)

// AuthzService layers role, membership and capability checks on top of
// credential resolution, with a TTL cache for the company-scoped hot path.
type AuthzService struct {
	auth        *AuthService
	memberships MembershipStore
	permissions PermissionStore
	sessions    SessionStore
	jar         *cookies.Jar
	cache       ContextCache
	metrics     *metrics.Metrics
	log         zerolog.Logger
	cacheTTL    time.Duration
}

func NewAuthzService(
	auth *AuthService,
	memberships MembershipStore,
	permissions PermissionStore,
	sessions SessionStore,
	jar *cookies.Jar,
	cache ContextCache,
	cacheTTL time.Duration,
	m *metrics.Metrics,
	log zerolog.Logger,
) *AuthzService {
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}
	return &AuthzService{
		auth:        auth,
		memberships: memberships,
		permissions: permissions,
		sessions:    sessions,
		jar:         jar,
		cache:       cache,
		metrics:     m,
		log:         log,
		cacheTTL:    cacheTTL,
	}
}

// RequireRole authorizes an identity whose role equals role. Admin always
// passes regardless of the requested role.
func (s *AuthzService) RequireRole(ctx context.Context, r *http.Request, role authz.Role) (*AuthContext, error) {
	return s.RequireRoles(ctx, r, role)
}

// RequireRoles authorizes an identity whose role is in roles. Admin
// always passes, whether or not it is listed.
func (s *AuthzService) RequireRoles(ctx context.Context, r *http.Request, roles ...authz.Role) (*AuthContext, error) {
	authCtx, err := s.auth.Require(ctx, r)
	if err != nil {
		return nil, err
	}
	if authCtx.Role == authz.RoleAdmin || slices.Contains(roles, authCtx.Role) {
		return authCtx, nil
	}
	s.deny("forbidden")
	return nil, apperr.Forbidden(fmt.Sprintf("requires one of roles %v", roles))
}

// RequireCompanyContext is the guard for tenant-scoped access. It serves
// from the context cache when the session cookie names a fresh entry,
// otherwise resolves credentials, requires a company, attaches the
// membership record and refills the cache.
func (s *AuthzService) RequireCompanyContext(ctx context.Context, r *http.Request) (*CompanyAuthContext, error) {
	// Cheap fast path: cookie read only, no DB.
	if sessionID := s.jar.SessionID(r); sessionID != "" {
		if cached, ok := s.cache.Get(ctx, sessionID); ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return cached, nil
		}
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	authCtx, err := s.auth.Require(ctx, r)
	if err != nil {
		return nil, err
	}

	if authCtx.CompanyID == nil || *authCtx.CompanyID == "" {
		s.deny("no_company_context")
		return nil, apperr.NoCompanyContext("account is not attached to a company")
	}
	companyID := *authCtx.CompanyID

	companyCtx := &CompanyAuthContext{
		AuthContext: *authCtx,
		CompanyID:   companyID,
	}

	membership, err := s.memberships.GetByUser(ctx, companyID, authCtx.UserID)
	if apperr.IsNotFound(err) {
		// User-id lookup is preferred: it survives email changes.
		membership, err = s.memberships.GetByEmail(ctx, companyID, authCtx.Email)
	}
	switch {
	case err == nil:
		if !membership.IsActive {
			// An explicitly deactivated member never falls back to the
			// account role — not even an account-level admin. Support
			// access goes through impersonation instead.
			s.deny("forbidden")
			return nil, apperr.Forbidden("membership inactive")
		}
		role := authz.Role(membership.Role)
		active := membership.IsActive
		companyCtx.MembershipRole = &role
		companyCtx.MembershipActive = &active
	case apperr.IsNotFound(err):
		// No membership row at all: data predating the membership
		// model. The account role applies.
	default:
		// Infrastructure failure on an auxiliary lookup degrades to the
		// account role rather than failing the request.
		s.log.Warn().Err(err).Str("company_id", companyID).Msg("membership lookup failed, using account role")
	}

	key := authCtx.SessionID
	if key == "" {
		key = authCtx.UserID + ":" + companyID
	}
	s.cache.Set(ctx, key, companyCtx, s.cacheTTL)

	return companyCtx, nil
}

// RequireCapability authorizes a company-scoped identity holding the
// capability, through role defaults or an explicit per-user grant. Admin
// effective role always passes.
func (s *AuthzService) RequireCapability(ctx context.Context, r *http.Request, capability authz.Capability) (*CompanyAuthContext, error) {
	companyCtx, err := s.RequireCompanyContext(ctx, r)
	if err != nil {
		return nil, err
	}

	effective := companyCtx.EffectiveRole()
	if effective == authz.RoleAdmin || authz.HasDefault(effective, capability) {
		return companyCtx, nil
	}

	grants, err := s.permissions.ListCapabilities(ctx, companyCtx.CompanyID, companyCtx.UserID)
	if err != nil {
		if apperr.StatusOf(err) == http.StatusForbidden {
			// A real denial from the grants layer stands.
			return nil, err
		}
		// Infrastructure hiccup: fall back to role defaults, which have
		// already failed, rather than failing the whole request with a 500.
		s.log.Warn().Err(err).Str("user_id", companyCtx.UserID).Msg("capability grants lookup failed, using role defaults only")
		grants = nil
	}
	if slices.Contains(grants, string(capability)) {
		return companyCtx, nil
	}

	s.deny("forbidden")
	return nil, apperr.Forbidden(fmt.Sprintf("missing capability %s", capability))
}

// ClearSession is the logout path: it deactivates the server-side
// session, deletes the cached context and expires the cookies — all in
// one operation, so a logged-out session id cannot keep resolving from
// the cache for the rest of the TTL window.
func (s *AuthzService) ClearSession(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	sessionID := s.jar.SessionID(r)
	if sessionID == "" {
		s.jar.Clear(w)
		return nil
	}

	err := s.sessions.Deactivate(ctx, sessionID)
	s.cache.Delete(ctx, sessionID)
	s.jar.Clear(w)

	if err != nil {
		return apperr.Wrap(err, "session deactivation failed")
	}
	s.log.Info().Str("session_id", sessionID).Msg("session cleared")
	return nil
}

// InvalidateContext drops a cached company context, e.g. after a bearer
// session is revoked out of band.
func (s *AuthzService) InvalidateContext(ctx context.Context, key string) {
	s.cache.Delete(ctx, key)
}

func (s *AuthzService) deny(reason string) {
	if s.metrics != nil {
		s.metrics.Denials.WithLabelValues(reason).Inc()
	}
}
