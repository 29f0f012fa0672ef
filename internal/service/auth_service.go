package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voltdesk/be-plt-auth/internal/metrics"
	"github.com/voltdesk/be-plt-auth/internal/repository"
	"github.com/voltdesk/be-plt-auth/pkg/apperr"
	"github.com/voltdesk/be-plt-auth/pkg/cookies"
	"github.com/voltdesk/be-plt-auth/pkg/password"
	"github.com/voltdesk/be-plt-auth/pkg/token"
)

const (
	// Account lockout after repeated failed logins.
	maxFailedLoginAttempts = 5
	accountLockDuration    = 30 * time.Minute

	sessionLifetime = 7 * 24 * time.Hour
)

// AuthService resolves request identities through an ordered chain of
// credential sources and owns the first-party login lifecycle.
type AuthService struct {
	sources   []CredentialSource
	users     UserStore
	companies CompanyStore
	sessions  SessionStore
	tokens    *token.Manager
	audit     AuditStore
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time

	refreshLifetime time.Duration
}

// NewAuthService builds the source chain in precedence order: bearer
// token first, then each federated provider in the given order, then the
// first-party cookie session. The first source to yield an identity wins.
func NewAuthService(
	users UserStore,
	companies CompanyStore,
	memberships MembershipStore,
	sessions SessionStore,
	tokens *token.Manager,
	jar *cookies.Jar,
	providers []IdentityProvider,
	audit AuditStore,
	m *metrics.Metrics,
	log zerolog.Logger,
) *AuthService {
	now := time.Now

	sources := []CredentialSource{
		&bearerSource{tokens: tokens, sessions: sessions, now: now, log: log},
	}
	for _, p := range providers {
		sources = append(sources, &federatedSource{
			provider:    p,
			users:       users,
			companies:   companies,
			memberships: memberships,
			metrics:     m,
			log:         log,
		})
	}
	sources = append(sources, &cookieSource{jar: jar, sessions: sessions, users: users, now: now, log: log})

	return &AuthService{
		sources:         sources,
		users:           users,
		companies:       companies,
		sessions:        sessions,
		tokens:          tokens,
		audit:           audit,
		metrics:         m,
		log:             log,
		now:             now,
		refreshLifetime: 30 * 24 * time.Hour,
	}
}

// SetClock overrides the time source for this service and its sources.
// Tests only.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
	for _, src := range s.sources {
		switch v := src.(type) {
		case *bearerSource:
			v.now = now
		case *cookieSource:
			v.now = now
		}
	}
}

// Resolve tries every credential source in order and returns the first
// identity, or nil when none succeeds. Resolution never fails: source
// errors are absorbed as misses.
func (s *AuthService) Resolve(ctx context.Context, r *http.Request) *AuthContext {
	for _, source := range s.sources {
		authCtx, err := source.Resolve(ctx, r)
		if err != nil {
			// Sources absorb their own failures; this is a safety net.
			s.log.Warn().Err(err).Str("source", source.Name()).Msg("credential source error")
			s.count(source.Name(), "error")
			continue
		}
		if authCtx != nil {
			s.count(source.Name(), "resolved")
			return authCtx
		}
		s.count(source.Name(), "miss")
	}
	return nil
}

// Require resolves an identity or fails with 401.
func (s *AuthService) Require(ctx context.Context, r *http.Request) (*AuthContext, error) {
	if authCtx := s.Resolve(ctx, r); authCtx != nil {
		return authCtx, nil
	}
	if s.metrics != nil {
		s.metrics.Denials.WithLabelValues("unauthenticated").Inc()
	}
	return nil, apperr.Unauthorized("authenticate")
}

func (s *AuthService) count(source, outcome string) {
	if s.metrics != nil {
		s.metrics.Resolutions.WithLabelValues(source, outcome).Inc()
	}
}

// LoginRequest is a first-party email/password login.
type LoginRequest struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult carries the authenticated user, their company (when
// attached to one) and the new session the handler turns into cookies.
type LoginResult struct {
	User    *repository.User
	Company *repository.Company
	Session *repository.Session
}

// Login verifies a password and creates a server-side session. Failed
// attempts count towards a temporary account lock.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	s.log.Info().Str("email", email).Msg("login attempt")

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !apperr.IsNotFound(err) {
			return nil, apperr.Wrap(err, "login lookup failed")
		}
		s.auditLogin(ctx, nil, false, "user not found")
		return nil, apperr.Unauthorized("invalid email or password")
	}

	if user.LockedUntil != nil && user.LockedUntil.After(s.now()) {
		s.auditLogin(ctx, user, false, "account locked")
		return nil, apperr.Forbidden("account is temporarily locked")
	}

	if user.PasswordHash == nil {
		// Federated-only account.
		s.auditLogin(ctx, user, false, "no password set")
		return nil, apperr.Unauthorized("invalid email or password")
	}

	ok, err := password.Verify(req.Password, *user.PasswordHash)
	if err != nil {
		return nil, apperr.Wrap(err, "password verification failed")
	}
	if !ok {
		_ = s.users.IncrementFailedLogins(ctx, user.ID)
		if user.FailedLoginAttempts+1 >= maxFailedLoginAttempts {
			_ = s.users.LockAccount(ctx, user.ID, s.now().Add(accountLockDuration))
			s.log.Warn().Str("user_id", user.ID).Msg("account locked after repeated failed logins")
			s.auditLogin(ctx, user, false, "locked after failed attempts")
			return nil, apperr.Forbidden("account is temporarily locked")
		}
		s.auditLogin(ctx, user, false, "invalid password")
		return nil, apperr.Unauthorized("invalid email or password")
	}

	session := &repository.Session{
		UserID:    user.ID,
		ExpiresAt: s.now().Add(sessionLifetime),
		IsActive:  true,
	}
	if req.IPAddress != "" {
		session.IPAddress = &req.IPAddress
	}
	if req.UserAgent != "" {
		session.UserAgent = &req.UserAgent
	}
	if err := s.sessions.Create(ctx, session, ""); err != nil {
		return nil, apperr.Wrap(err, "session creation failed")
	}

	_ = s.users.ResetLoginState(ctx, user.ID)
	s.auditLogin(ctx, user, true, "")

	var company *repository.Company
	if user.CompanyID != nil {
		company, err = s.companies.GetByID(ctx, *user.CompanyID)
		if err != nil {
			// Cookie enrichment only; the login itself stands.
			s.log.Warn().Err(err).Str("company_id", *user.CompanyID).Msg("company lookup failed")
			company = nil
		}
	}

	s.log.Info().Str("user_id", user.ID).Str("session_id", session.ID).Msg("login successful")
	return &LoginResult{User: user, Company: company, Session: session}, nil
}

// IssueTokens creates a bearer session for an already-authenticated
// caller and returns an access/refresh pair bound to it.
func (s *AuthService) IssueTokens(ctx context.Context, authCtx *AuthContext) (*token.Pair, error) {
	sessionID := uuid.New().String()

	companyID := ""
	if authCtx.CompanyID != nil {
		companyID = *authCtx.CompanyID
	}
	pair, err := s.tokens.GeneratePair(authCtx.UserID, companyID, sessionID, authCtx.Email, string(authCtx.Role))
	if err != nil {
		return nil, apperr.Wrap(err, "token generation failed")
	}

	expiresAt := s.now().Add(s.refreshLifetime)
	session := &repository.Session{
		ID:                    sessionID,
		UserID:                authCtx.UserID,
		ExpiresAt:             expiresAt,
		IsActive:              true,
		RefreshTokenExpiresAt: &expiresAt,
	}
	if err := s.sessions.Create(ctx, session, pair.RefreshToken); err != nil {
		return nil, apperr.Wrap(err, "bearer session creation failed")
	}

	s.log.Info().Str("user_id", authCtx.UserID).Str("session_id", sessionID).Msg("issued bearer token pair")
	return pair, nil
}

// Refresh rotates a refresh token into a new pair for the same session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	claims, err := s.tokens.Validate(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}
	if claims.TokenType != "refresh" || claims.SessionID == "" {
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	valid, err := s.sessions.ValidateRefreshToken(ctx, claims.SessionID, refreshToken)
	if err != nil {
		return nil, apperr.Wrap(err, "refresh token validation failed")
	}
	if !valid {
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	pair, err := s.tokens.GeneratePair(claims.UserID, claims.CompanyID, claims.SessionID, claims.Email, claims.Role)
	if err != nil {
		return nil, apperr.Wrap(err, "token generation failed")
	}
	if err := s.sessions.RotateRefreshToken(ctx, claims.SessionID, pair.RefreshToken, s.now().Add(s.refreshLifetime)); err != nil {
		return nil, apperr.Wrap(err, "refresh token rotation failed")
	}
	return pair, nil
}

func (s *AuthService) auditLogin(ctx context.Context, user *repository.User, success bool, reason string) {
	event := &repository.AuditEvent{
		Action:     "login",
		TargetType: "session",
		Success:    success,
	}
	if user != nil {
		event.ActorUserID = &user.ID
		event.CompanyID = user.CompanyID
		event.TargetID = user.ID
	}
	if reason != "" {
		event.Detail = &reason
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn().Err(err).Msg("audit write failed")
	}
}
