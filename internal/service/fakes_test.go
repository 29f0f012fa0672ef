package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voltdesk/be-plt-auth/internal/repository"
	"github.com/voltdesk/be-plt-auth/pkg/apperr"
)

// In-memory store fakes. Each keeps rows in maps and supports error
// injection through failWith, so tests can exercise the degraded paths
// without a database.

type fakeUserStore struct {
	byID     map[string]*repository.User
	failWith error

	providerLinks map[string]string // userID -> provider:providerID
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byID:          make(map[string]*repository.User),
		providerLinks: make(map[string]string),
	}
}

func (f *fakeUserStore) add(user *repository.User) *repository.User {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = strings.ToLower(user.Email)
	f.byID[user.ID] = user
	return user
}

func (f *fakeUserStore) Create(_ context.Context, user *repository.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.add(user)
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*repository.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if user, ok := f.byID[id]; ok {
		return user, nil
	}
	return nil, apperr.NotFound("user", id)
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	email = strings.ToLower(email)
	for _, user := range f.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, apperr.NotFound("user", email)
}

func (f *fakeUserStore) GetByProvider(_ context.Context, provider, providerID string) (*repository.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, user := range f.byID {
		if user.AuthProvider != nil && *user.AuthProvider == provider &&
			user.AuthProviderID != nil && *user.AuthProviderID == providerID {
			return user, nil
		}
	}
	return nil, apperr.NotFound("user", providerID)
}

func (f *fakeUserStore) SetProviderIdentity(_ context.Context, userID, provider, providerID string) error {
	user, ok := f.byID[userID]
	if !ok {
		return apperr.NotFound("user", userID)
	}
	user.AuthProvider = &provider
	user.AuthProviderID = &providerID
	f.providerLinks[userID] = provider + ":" + providerID
	return nil
}

func (f *fakeUserStore) SetImpersonation(_ context.Context, userID string, impersonationID *string) error {
	user, ok := f.byID[userID]
	if !ok {
		return apperr.NotFound("user", userID)
	}
	user.ImpersonationID = impersonationID
	return nil
}

func (f *fakeUserStore) IncrementFailedLogins(_ context.Context, userID string) error {
	if user, ok := f.byID[userID]; ok {
		user.FailedLoginAttempts++
	}
	return nil
}

func (f *fakeUserStore) LockAccount(_ context.Context, userID string, until time.Time) error {
	if user, ok := f.byID[userID]; ok {
		user.LockedUntil = &until
	}
	return nil
}

func (f *fakeUserStore) ResetLoginState(_ context.Context, userID string) error {
	if user, ok := f.byID[userID]; ok {
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}
	return nil
}

type fakeCompanyStore struct {
	byID    map[string]*repository.Company
	created int
}

func newFakeCompanyStore() *fakeCompanyStore {
	return &fakeCompanyStore{byID: make(map[string]*repository.Company)}
}

func (f *fakeCompanyStore) Create(_ context.Context, company *repository.Company) error {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	f.byID[company.ID] = company
	f.created++
	return nil
}

func (f *fakeCompanyStore) GetByID(_ context.Context, id string) (*repository.Company, error) {
	if company, ok := f.byID[id]; ok {
		return company, nil
	}
	return nil, apperr.NotFound("company", id)
}

type fakeMembershipStore struct {
	rows     map[string]*repository.Membership
	failWith error
	lookups  int // GetByUser + GetByEmail calls
}

func newFakeMembershipStore() *fakeMembershipStore {
	return &fakeMembershipStore{rows: make(map[string]*repository.Membership)}
}

func (f *fakeMembershipStore) add(m *repository.Membership) *repository.Membership {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.Email = strings.ToLower(m.Email)
	f.rows[m.ID] = m
	return m
}

func (f *fakeMembershipStore) Create(_ context.Context, m *repository.Membership) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.add(m)
	return nil
}

func (f *fakeMembershipStore) GetByID(_ context.Context, id string) (*repository.Membership, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if m, ok := f.rows[id]; ok {
		return m, nil
	}
	return nil, apperr.NotFound("membership", id)
}

func (f *fakeMembershipStore) GetByUser(_ context.Context, companyID, userID string) (*repository.Membership, error) {
	f.lookups++
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, m := range f.rows {
		if m.CompanyID == companyID && m.UserID != nil && *m.UserID == userID {
			return m, nil
		}
	}
	return nil, apperr.NotFound("membership", userID)
}

func (f *fakeMembershipStore) GetByEmail(_ context.Context, companyID, email string) (*repository.Membership, error) {
	f.lookups++
	if f.failWith != nil {
		return nil, f.failWith
	}
	email = strings.ToLower(email)
	for _, m := range f.rows {
		if m.CompanyID == companyID && m.Email == email {
			return m, nil
		}
	}
	return nil, apperr.NotFound("membership", email)
}

func (f *fakeMembershipStore) FindActiveByEmail(_ context.Context, email string) (*repository.Membership, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	email = strings.ToLower(email)
	for _, m := range f.rows {
		if m.Email == email && m.IsActive {
			return m, nil
		}
	}
	return nil, apperr.NotFound("membership", email)
}

func (f *fakeMembershipStore) SetActive(_ context.Context, id string, active bool) error {
	m, ok := f.rows[id]
	if !ok {
		return apperr.NotFound("membership", id)
	}
	m.IsActive = active
	return nil
}

func (f *fakeMembershipStore) UpdateRole(_ context.Context, id, role string) error {
	m, ok := f.rows[id]
	if !ok {
		return apperr.NotFound("membership", id)
	}
	m.Role = role
	return nil
}

func (f *fakeMembershipStore) LinkUser(_ context.Context, id, userID string) error {
	m, ok := f.rows[id]
	if !ok {
		return apperr.NotFound("membership", id)
	}
	m.UserID = &userID
	return nil
}

func (f *fakeMembershipStore) ListByCompany(_ context.Context, companyID string) ([]*repository.Membership, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*repository.Membership
	for _, m := range f.rows {
		if m.CompanyID == companyID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakePermissionStore struct {
	grants   map[string][]string // companyID:userID -> capabilities
	failWith error
}

func newFakePermissionStore() *fakePermissionStore {
	return &fakePermissionStore{grants: make(map[string][]string)}
}

func (f *fakePermissionStore) key(companyID, userID string) string {
	return companyID + ":" + userID
}

func (f *fakePermissionStore) ListCapabilities(_ context.Context, companyID, userID string) ([]string, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.grants[f.key(companyID, userID)], nil
}

func (f *fakePermissionStore) Grant(_ context.Context, grant *repository.UserPermission) error {
	if f.failWith != nil {
		return f.failWith
	}
	key := f.key(grant.CompanyID, grant.UserID)
	f.grants[key] = append(f.grants[key], grant.Capability)
	return nil
}

func (f *fakePermissionStore) Revoke(_ context.Context, companyID, userID, capability string) error {
	key := f.key(companyID, userID)
	kept := f.grants[key][:0]
	for _, c := range f.grants[key] {
		if c != capability {
			kept = append(kept, c)
		}
	}
	f.grants[key] = kept
	return nil
}

type fakeSessionStore struct {
	byID     map[string]*repository.Session
	refresh  map[string]string // sessionID -> raw refresh token
	failWith error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		byID:    make(map[string]*repository.Session),
		refresh: make(map[string]string),
	}
}

func (f *fakeSessionStore) Create(_ context.Context, session *repository.Session, refreshToken string) error {
	if f.failWith != nil {
		return f.failWith
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	f.byID[session.ID] = session
	if refreshToken != "" {
		f.refresh[session.ID] = refreshToken
	}
	return nil
}

func (f *fakeSessionStore) GetByID(_ context.Context, sessionID string) (*repository.Session, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if s, ok := f.byID[sessionID]; ok {
		return s, nil
	}
	return nil, apperr.NotFound("session", sessionID)
}

func (f *fakeSessionStore) UpdateLastActivity(_ context.Context, sessionID string) error {
	if s, ok := f.byID[sessionID]; ok {
		s.LastActivityAt = time.Now()
	}
	return nil
}

func (f *fakeSessionStore) Deactivate(_ context.Context, sessionID string) error {
	if f.failWith != nil {
		return f.failWith
	}
	if s, ok := f.byID[sessionID]; ok {
		s.IsActive = false
	}
	return nil
}

func (f *fakeSessionStore) DeactivateUserSessions(_ context.Context, userID string) error {
	for _, s := range f.byID {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

func (f *fakeSessionStore) RotateRefreshToken(_ context.Context, sessionID, refreshToken string, expiresAt time.Time) error {
	if _, ok := f.byID[sessionID]; !ok {
		return apperr.NotFound("session", sessionID)
	}
	f.refresh[sessionID] = refreshToken
	f.byID[sessionID].RefreshTokenExpiresAt = &expiresAt
	return nil
}

func (f *fakeSessionStore) ValidateRefreshToken(_ context.Context, sessionID, refreshToken string) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	s, ok := f.byID[sessionID]
	if !ok || !s.IsActive {
		return false, nil
	}
	return f.refresh[sessionID] == refreshToken, nil
}

type fakeImpersonationStore struct {
	rows     map[string]*repository.ImpersonationLog
	failWith error
}

func newFakeImpersonationStore() *fakeImpersonationStore {
	return &fakeImpersonationStore{rows: make(map[string]*repository.ImpersonationLog)}
}

func (f *fakeImpersonationStore) Create(_ context.Context, imp *repository.ImpersonationLog) error {
	if f.failWith != nil {
		return f.failWith
	}
	if imp.ID == "" {
		imp.ID = uuid.New().String()
	}
	f.rows[imp.ID] = imp
	return nil
}

func (f *fakeImpersonationStore) ActiveFor(_ context.Context, adminUserID, companyID string) (*repository.ImpersonationLog, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, imp := range f.rows {
		if imp.AdminUserID == adminUserID && imp.CompanyID == companyID && imp.EndedAt == nil {
			return imp, nil
		}
	}
	return nil, nil
}

func (f *fakeImpersonationStore) End(_ context.Context, id string, endedAt time.Time) error {
	imp, ok := f.rows[id]
	if !ok {
		return apperr.NotFound("impersonation", id)
	}
	imp.EndedAt = &endedAt
	return nil
}

type fakeAuditStore struct {
	events []*repository.AuditEvent
}

func (f *fakeAuditStore) Record(_ context.Context, event *repository.AuditEvent) error {
	f.events = append(f.events, event)
	return nil
}

// fakeProvider is a scripted IdentityProvider.
type fakeProvider struct {
	name     string
	identity *ProviderIdentity
	err      error
	calls    int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Session(_ context.Context, r *http.Request) (*ProviderIdentity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

var errDatabaseDown = errors.New("connection refused")
