package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltdesk/be-plt-auth/internal/metrics"
	"github.com/voltdesk/be-plt-auth/internal/repository"
	"github.com/voltdesk/be-plt-auth/pkg/apperr"
	"github.com/voltdesk/be-plt-auth/pkg/authz"
	"github.com/voltdesk/be-plt-auth/pkg/cookies"
	"github.com/voltdesk/be-plt-auth/pkg/token"
)

// CredentialSource is one way a request can prove an identity. Resolve
// returns (nil, nil) when the request carries no usable credential for
// this source, including expired or malformed ones: a failing source must
// never abort the chain, only yield to the next source.
type CredentialSource interface {
	Name() string
	Resolve(ctx context.Context, r *http.Request) (*AuthContext, error)
}

// bearerSource validates Authorization: Bearer tokens against the token
// manager and the session bound into the token.
type bearerSource struct {
	tokens   *token.Manager
	sessions SessionStore
	now      func() time.Time
	log      zerolog.Logger
}

func (s *bearerSource) Name() string { return "bearer" }

func (s *bearerSource) Resolve(ctx context.Context, r *http.Request) (*AuthContext, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return nil, nil
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return nil, nil
	}

	claims, err := s.tokens.Validate(raw)
	if err != nil {
		// Expired, revoked or unknown tokens fall through to the next
		// source rather than failing the request.
		s.log.Debug().Err(err).Msg("bearer token rejected")
		return nil, nil
	}
	if claims.TokenType != "access" {
		return nil, nil
	}

	if claims.SessionID != "" {
		session, err := s.sessions.GetByID(ctx, claims.SessionID)
		if err != nil || !session.IsActive || session.ExpiresAt.Before(s.now()) {
			return nil, nil
		}
		_ = s.sessions.UpdateLastActivity(ctx, claims.SessionID)
	}

	role, err := authz.ParseRole(claims.Role)
	if err != nil {
		return nil, nil
	}

	var companyID *string
	if claims.CompanyID != "" {
		id := claims.CompanyID
		companyID = &id
	}

	return &AuthContext{
		UserID:    claims.UserID,
		Email:     strings.ToLower(claims.Email),
		Role:      role,
		CompanyID: companyID,
		SessionID: claims.SessionID,
		Source:    s.Name(),
	}, nil
}

// federatedSource resolves a session from one external identity provider
// and maps it to a local user, provisioning user and company on first
// sight.
type federatedSource struct {
	provider    IdentityProvider
	users       UserStore
	companies   CompanyStore
	memberships MembershipStore
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

func (s *federatedSource) Name() string { return "federated:" + s.provider.Name() }

func (s *federatedSource) Resolve(ctx context.Context, r *http.Request) (*AuthContext, error) {
	ident, err := s.provider.Session(ctx, r)
	if err != nil {
		// Provider failures read as "no session from this provider".
		s.log.Debug().Err(err).Str("provider", s.provider.Name()).Msg("provider session call failed")
		return nil, nil
	}
	if ident == nil || ident.Email == "" {
		return nil, nil
	}
	email := strings.ToLower(ident.Email)

	user, err := s.users.GetByProvider(ctx, s.provider.Name(), ident.ID)
	switch {
	case err == nil:
		// Stable provider-id match.
	case apperr.IsNotFound(err):
		user, err = s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			// Email-only match: back-fill the provider id so future
			// logins take the id path even after an email change.
			if backfillErr := s.users.SetProviderIdentity(ctx, user.ID, s.provider.Name(), ident.ID); backfillErr != nil {
				s.log.Warn().Err(backfillErr).Str("user_id", user.ID).Msg("provider id back-fill failed")
			}
		case apperr.IsNotFound(err):
			user = s.provision(ctx, ident, email)
			if user == nil {
				return nil, nil
			}
		default:
			s.log.Warn().Err(err).Msg("user lookup by email failed")
			return nil, nil
		}
	default:
		s.log.Warn().Err(err).Msg("user lookup by provider id failed")
		return nil, nil
	}

	return &AuthContext{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      authz.Role(user.Role),
		CompanyID: user.CompanyID,
		SessionID: "",
		Source:    s.Name(),
	}, nil
}

// provision creates a user for a never-seen federated identity. An
// outstanding membership invite for the email routes the user into the
// inviting company with the invited role; otherwise a fresh company is
// created and its first user is its owner, so the role is admin.
func (s *federatedSource) provision(ctx context.Context, ident *ProviderIdentity, email string) *repository.User {
	invite, err := s.memberships.FindActiveByEmail(ctx, email)
	switch {
	case err == nil:
		return s.provisionInvited(ctx, ident, email, invite)
	case apperr.IsNotFound(err):
	default:
		s.log.Warn().Err(err).Msg("invite lookup failed")
		return nil
	}

	companyName := ident.Name
	if companyName == "" {
		companyName = email
	}
	company := &repository.Company{Name: companyName}
	if err := s.companies.Create(ctx, company); err != nil {
		s.log.Warn().Err(err).Msg("just-in-time company creation failed")
		return nil
	}

	user := s.createUser(ctx, ident, email, company.ID, string(authz.RoleAdmin))
	if user == nil {
		return nil
	}
	s.log.Info().
		Str("provider", s.provider.Name()).
		Str("user_id", user.ID).
		Str("company_id", company.ID).
		Msg("provisioned user and company from federated login")
	return user
}

// provisionInvited creates the account inside the inviting company with
// the invited role and links the email-only membership row to it.
func (s *federatedSource) provisionInvited(ctx context.Context, ident *ProviderIdentity, email string, invite *repository.Membership) *repository.User {
	user := s.createUser(ctx, ident, email, invite.CompanyID, invite.Role)
	if user == nil {
		return nil
	}
	if invite.UserID == nil {
		if err := s.memberships.LinkUser(ctx, invite.ID, user.ID); err != nil {
			s.log.Warn().Err(err).Str("membership_id", invite.ID).Msg("membership link failed")
		}
	}
	s.log.Info().
		Str("provider", s.provider.Name()).
		Str("user_id", user.ID).
		Str("company_id", invite.CompanyID).
		Str("role", invite.Role).
		Msg("provisioned invited user from federated login")
	return user
}

func (s *federatedSource) createUser(ctx context.Context, ident *ProviderIdentity, email, companyID, role string) *repository.User {
	provider := s.provider.Name()
	user := &repository.User{
		CompanyID:      &companyID,
		Email:          email,
		Name:           ident.Name,
		Role:           role,
		AuthProvider:   &provider,
		AuthProviderID: &ident.ID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.log.Warn().Err(err).Msg("just-in-time user creation failed")
		return nil
	}
	if s.metrics != nil {
		s.metrics.Provisioning.Inc()
	}
	return user
}

// cookieSource resolves the first-party server-side session named by the
// session cookie.
type cookieSource struct {
	jar      *cookies.Jar
	sessions SessionStore
	users    UserStore
	now      func() time.Time
	log      zerolog.Logger
}

func (s *cookieSource) Name() string { return "cookie" }

func (s *cookieSource) Resolve(ctx context.Context, r *http.Request) (*AuthContext, error) {
	sessionID := s.jar.SessionID(r)
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if !apperr.IsNotFound(err) {
			s.log.Warn().Err(err).Msg("session lookup failed")
		}
		return nil, nil
	}
	if !session.IsActive || session.ExpiresAt.Before(s.now()) {
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if !apperr.IsNotFound(err) {
			s.log.Warn().Err(err).Msg("session user lookup failed")
		}
		return nil, nil
	}

	_ = s.sessions.UpdateLastActivity(ctx, sessionID)

	return &AuthContext{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      authz.Role(user.Role),
		CompanyID: user.CompanyID,
		SessionID: sessionID,
		Source:    s.Name(),
	}, nil
}
