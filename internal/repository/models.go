package repository

import "time"

// User is the account-level record. Role here is the account default;
// per-company memberships override it for tenant-scoped decisions.
type User struct {
	ID                  string
	CompanyID           *string // nil until the user is attached to a tenant
	Email               string
	Name                string
	Role                string
	PasswordHash        *string // nil for federated-only accounts
	AuthProvider        *string // federated provider name, when linked
	AuthProviderID      *string // provider-issued stable id
	ImpersonationID     *string // current impersonation session, when acting as someone else
	ProfileComplete     bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Company is the tenant. Every company-scoped query filters by its id.
type Company struct {
	ID         string
	Name       string
	Subdomain  *string
	BrandColor string
	Theme      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Membership joins a user to a company. UserID is nil for invites issued
// before the invitee had an account; Email links them up later. Removed
// members are deactivated, never deleted.
type Membership struct {
	ID        string
	CompanyID string
	UserID    *string
	Email     string
	Role      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserPermission is an explicit per-user capability grant within one
// company. Grants extend role defaults; they never subtract.
type UserPermission struct {
	ID         string
	CompanyID  string
	UserID     string
	Capability string
	GrantedBy  *string
	CreatedAt  time.Time
}

// Session is a server-side first-party session. Bearer token pairs are
// bound to a session row as well.
type Session struct {
	ID                    string
	UserID                string
	IPAddress             *string
	UserAgent             *string
	CreatedAt             time.Time
	ExpiresAt             time.Time
	LastActivityAt        time.Time
	IsActive              bool
	RefreshTokenHash      *string
	RefreshTokenExpiresAt *time.Time
}

// ImpersonationLog records one admin-as-user support session. EndedAt nil
// means active, subject to the lazy TTL check.
type ImpersonationLog struct {
	ID           string
	AdminUserID  string
	TargetUserID string
	CompanyID    string
	StartedAt    time.Time
	EndedAt      *time.Time
}

// AuditEvent is a fire-and-forget record of a state-changing action.
type AuditEvent struct {
	ID          string
	CompanyID   *string
	ActorUserID *string
	Action      string
	TargetType  string
	TargetID    string
	Detail      *string
	Success     bool
	CreatedAt   time.Time
}
