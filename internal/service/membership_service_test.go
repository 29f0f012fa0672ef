package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/voltdesk/be-plt-auth/internal/repository"
	"github.com/voltdesk/be-plt-auth/pkg/apperr"
	"github.com/voltdesk/be-plt-auth/pkg/authz"
)

type membershipFixture struct {
	memberships *fakeMembershipStore
	permissions *fakePermissionStore
	users       *fakeUserStore
	sessions    *fakeSessionStore
	audit       *fakeAuditStore
	svc         *MembershipService
	actor       *CompanyAuthContext
}

func newMembershipFixture(t *testing.T) *membershipFixture {
	t.Helper()
	f := &membershipFixture{
		memberships: newFakeMembershipStore(),
		permissions: newFakePermissionStore(),
		users:       newFakeUserStore(),
		sessions:    newFakeSessionStore(),
		audit:       &fakeAuditStore{},
	}
	f.svc = NewMembershipService(f.memberships, f.permissions, f.users, f.sessions, f.audit, zerolog.Nop())
	f.actor = &CompanyAuthContext{
		AuthContext: AuthContext{UserID: "admin-1", Email: "admin@example.com", Role: authz.RoleAdmin},
		CompanyID:   "company-1",
	}
	return f
}

func TestAddMember(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	t.Run("new email-only invite", func(t *testing.T) {
		m, err := f.svc.AddMember(ctx, f.actor, "New@Example.com", authz.RoleEngineer)
		if err != nil {
			t.Fatalf("AddMember: %v", err)
		}
		if m.Email != "new@example.com" {
			t.Errorf("email = %q, want lowercased", m.Email)
		}
		if m.UserID != nil {
			t.Error("invite for unknown email should not link a user")
		}
		if !m.IsActive {
			t.Error("new membership should be active")
		}
	})

	t.Run("invite for an existing account links immediately", func(t *testing.T) {
		user := f.users.add(&repository.User{Email: "known@example.com", Role: "client"})
		m, err := f.svc.AddMember(ctx, f.actor, "known@example.com", authz.RoleOffice)
		if err != nil {
			t.Fatalf("AddMember: %v", err)
		}
		if m.UserID == nil || *m.UserID != user.ID {
			t.Error("membership not linked to the existing account")
		}
	})

	t.Run("duplicate active invite conflicts", func(t *testing.T) {
		_, err := f.svc.AddMember(ctx, f.actor, "new@example.com", authz.RoleOffice)
		if apperr.StatusOf(err) != http.StatusConflict {
			t.Errorf("status = %d, want 409", apperr.StatusOf(err))
		}
	})

	t.Run("inactive membership is reactivated with the new role", func(t *testing.T) {
		row := f.memberships.add(&repository.Membership{
			CompanyID: "company-1",
			Email:     "returning@example.com",
			Role:      "engineer",
			IsActive:  false,
		})
		m, err := f.svc.AddMember(ctx, f.actor, "returning@example.com", authz.RoleFinance)
		if err != nil {
			t.Fatalf("AddMember: %v", err)
		}
		if m.ID != row.ID {
			t.Error("reactivation created a new row instead of reusing the old one")
		}
		if !m.IsActive || m.Role != "finance" {
			t.Errorf("membership = active:%v role:%s, want active finance", m.IsActive, m.Role)
		}
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		_, err := f.svc.AddMember(ctx, f.actor, "x@example.com", authz.Role("superuser"))
		if apperr.StatusOf(err) != http.StatusConflict {
			t.Errorf("status = %d, want 409", apperr.StatusOf(err))
		}
	})
}

func TestChangeRoleAndDeactivate(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	userID := "user-1"
	m := f.memberships.add(&repository.Membership{
		CompanyID: "company-1",
		UserID:    &userID,
		Email:     "member@example.com",
		Role:      "engineer",
		IsActive:  true,
	})
	session := &repository.Session{UserID: userID, IsActive: true}
	if err := f.sessions.Create(ctx, session, ""); err != nil {
		t.Fatalf("Create session: %v", err)
	}

	if err := f.svc.ChangeRole(ctx, f.actor, m.ID, authz.RoleOffice); err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	if m.Role != "office" {
		t.Errorf("role = %s, want office", m.Role)
	}

	if err := f.svc.Deactivate(ctx, f.actor, m.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if m.IsActive {
		t.Error("membership still active")
	}
	// Removal takes effect immediately, not at session expiry.
	if session.IsActive {
		t.Error("member's session survived deactivation")
	}
}

func TestCrossTenantMembershipHidden(t *testing.T) {
	f := newMembershipFixture(t)
	other := f.memberships.add(&repository.Membership{
		CompanyID: "company-2",
		Email:     "outsider@example.com",
		Role:      "office",
		IsActive:  true,
	})

	err := f.svc.ChangeRole(context.Background(), f.actor, other.ID, authz.RoleAdmin)
	if apperr.StatusOf(err) != http.StatusNotFound {
		t.Errorf("status = %d, want 404 masking the other tenant's row", apperr.StatusOf(err))
	}
	if other.Role != "office" {
		t.Error("other tenant's membership was modified")
	}
}

func TestCapabilityGrants(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	if err := f.svc.GrantCapability(ctx, f.actor, "user-1", authz.CapIssueInvoices); err != nil {
		t.Fatalf("GrantCapability: %v", err)
	}
	caps, _ := f.permissions.ListCapabilities(ctx, "company-1", "user-1")
	if len(caps) != 1 || caps[0] != "issue_invoices" {
		t.Errorf("grants = %v, want [issue_invoices]", caps)
	}

	if err := f.svc.GrantCapability(ctx, f.actor, "user-1", authz.Capability("launch_rockets")); apperr.StatusOf(err) != http.StatusConflict {
		t.Errorf("unknown capability status = %d, want 409", apperr.StatusOf(err))
	}

	if err := f.svc.RevokeCapability(ctx, f.actor, "user-1", authz.CapIssueInvoices); err != nil {
		t.Fatalf("RevokeCapability: %v", err)
	}
	caps, _ = f.permissions.ListCapabilities(ctx, "company-1", "user-1")
	if len(caps) != 0 {
		t.Errorf("grants after revoke = %v, want empty", caps)
	}
}
