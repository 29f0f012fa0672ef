package service

import (
	"context"
	"net/http"
	"time"

	"github.com/voltdesk/be-plt-auth/internal/repository"
	"github.com/voltdesk/be-plt-auth/pkg/authz"
)

// AuthContext is the minimal identity proven by one successful credential
// source. It is built fresh per request and never persisted as a whole.
type AuthContext struct {
	UserID    string     `json:"userId"`
	Email     string     `json:"email"` // always lowercased
	Role      authz.Role `json:"role"`
	CompanyID *string    `json:"companyId"` // nil until attached to a tenant
	SessionID string     `json:"sessionId"` // empty for session-less federated flows
	Source    string     `json:"source"`    // credential source that resolved it
}

// CompanyAuthContext is an AuthContext with a guaranteed company plus the
// membership record fields, when one exists. MembershipRole, when set, is
// authoritative over the account role.
type CompanyAuthContext struct {
	AuthContext
	CompanyID        string      `json:"companyId"`
	MembershipRole   *authz.Role `json:"membershipRole,omitempty"`
	MembershipActive *bool       `json:"membershipActive,omitempty"`
}

// EffectiveRole is the role all company-scoped permission decisions must
// use: the membership role when known, else the account role.
func (c *CompanyAuthContext) EffectiveRole() authz.Role {
	if c.MembershipRole != nil {
		return *c.MembershipRole
	}
	return c.Role
}

// ProviderIdentity is the provider-native user object returned by a
// federated identity provider session call.
type ProviderIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// IdentityProvider is a federated session source. Session returns nil
// (not an error) when the request carries no session for this provider.
type IdentityProvider interface {
	Name() string
	Session(ctx context.Context, r *http.Request) (*ProviderIdentity, error)
}

// ContextCache memoizes resolved company auth contexts, keyed by session
// id (or userID:companyID for session-less flows). Implementations must
// tolerate concurrent last-write-wins fills.
type ContextCache interface {
	Get(ctx context.Context, key string) (*CompanyAuthContext, bool)
	Set(ctx context.Context, key string, value *CompanyAuthContext, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Persistence interfaces, satisfied by the pgx repositories. Services
// depend on these so the authorization logic is testable without a
// database.

type UserStore interface {
	Create(ctx context.Context, user *repository.User) error
	GetByID(ctx context.Context, id string) (*repository.User, error)
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
	GetByProvider(ctx context.Context, provider, providerID string) (*repository.User, error)
	SetProviderIdentity(ctx context.Context, userID, provider, providerID string) error
	SetImpersonation(ctx context.Context, userID string, impersonationID *string) error
	IncrementFailedLogins(ctx context.Context, userID string) error
	LockAccount(ctx context.Context, userID string, until time.Time) error
	ResetLoginState(ctx context.Context, userID string) error
}

type CompanyStore interface {
	Create(ctx context.Context, company *repository.Company) error
	GetByID(ctx context.Context, id string) (*repository.Company, error)
}

type MembershipStore interface {
	Create(ctx context.Context, m *repository.Membership) error
	GetByID(ctx context.Context, id string) (*repository.Membership, error)
	GetByUser(ctx context.Context, companyID, userID string) (*repository.Membership, error)
	GetByEmail(ctx context.Context, companyID, email string) (*repository.Membership, error)
	FindActiveByEmail(ctx context.Context, email string) (*repository.Membership, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdateRole(ctx context.Context, id, role string) error
	LinkUser(ctx context.Context, id, userID string) error
	ListByCompany(ctx context.Context, companyID string) ([]*repository.Membership, error)
}

type PermissionStore interface {
	ListCapabilities(ctx context.Context, companyID, userID string) ([]string, error)
	Grant(ctx context.Context, grant *repository.UserPermission) error
	Revoke(ctx context.Context, companyID, userID, capability string) error
}

type SessionStore interface {
	Create(ctx context.Context, session *repository.Session, refreshToken string) error
	GetByID(ctx context.Context, sessionID string) (*repository.Session, error)
	UpdateLastActivity(ctx context.Context, sessionID string) error
	Deactivate(ctx context.Context, sessionID string) error
	DeactivateUserSessions(ctx context.Context, userID string) error
	RotateRefreshToken(ctx context.Context, sessionID, refreshToken string, expiresAt time.Time) error
	ValidateRefreshToken(ctx context.Context, sessionID, refreshToken string) (bool, error)
}

type ImpersonationStore interface {
	Create(ctx context.Context, imp *repository.ImpersonationLog) error
	ActiveFor(ctx context.Context, adminUserID, companyID string) (*repository.ImpersonationLog, error)
	End(ctx context.Context, id string, endedAt time.Time) error
}

type AuditStore interface {
	Record(ctx context.Context, event *repository.AuditEvent) error
}
