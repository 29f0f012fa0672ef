package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/voltdesk/be-plt-auth/internal/repository"
	"github.com/voltdesk/be-plt-auth/pkg/apperr"
	"github.com/voltdesk/be-plt-auth/pkg/authz"
)

// MembershipService administers company memberships and explicit
// capability grants. Every mutation is audit-logged fire-and-forget.
type MembershipService struct {
	memberships MembershipStore
	permissions PermissionStore
	users       UserStore
	sessions    SessionStore
	audit       AuditStore
	log         zerolog.Logger
}

func NewMembershipService(
	memberships MembershipStore,
	permissions PermissionStore,
	users UserStore,
	sessions SessionStore,
	audit AuditStore,
	log zerolog.Logger,
) *MembershipService {
	return &MembershipService{
		memberships: memberships,
		permissions: permissions,
		users:       users,
		sessions:    sessions,
		audit:       audit,
		log:         log,
	}
}

// AddMember invites an email into the actor's company. When the invitee
// already has an account, the membership links to it immediately;
// otherwise the row stays email-only until first login. An inactive prior
// membership is reactivated with the new role instead of duplicated.
func (s *MembershipService) AddMember(ctx context.Context, actor *CompanyAuthContext, email string, role authz.Role) (*repository.Membership, error) {
	if !role.Valid() {
		return nil, apperr.Conflict("unknown role " + string(role))
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.Conflict("email is required")
	}

	existing, err := s.memberships.GetByEmail(ctx, actor.CompanyID, email)
	if err == nil {
		if existing.IsActive {
			return nil, apperr.Conflict("already an active member")
		}
		if err := s.memberships.SetActive(ctx, existing.ID, true); err != nil {
			return nil, apperr.Wrap(err, "membership reactivation failed")
		}
		if err := s.memberships.UpdateRole(ctx, existing.ID, string(role)); err != nil {
			return nil, apperr.Wrap(err, "membership role update failed")
		}
		existing.IsActive = true
		existing.Role = string(role)
		s.auditMembership(ctx, actor, "member_reactivated", existing)
		return existing, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, apperr.Wrap(err, "membership lookup failed")
	}

	membership := &repository.Membership{
		CompanyID: actor.CompanyID,
		Email:     email,
		Role:      string(role),
		IsActive:  true,
	}
	if user, err := s.users.GetByEmail(ctx, email); err == nil {
		membership.UserID = &user.ID
	} else if !apperr.IsNotFound(err) {
		s.log.Warn().Err(err).Str("email", email).Msg("invitee account lookup failed, creating email-only membership")
	}

	if err := s.memberships.Create(ctx, membership); err != nil {
		return nil, apperr.Wrap(err, "membership creation failed")
	}

	s.auditMembership(ctx, actor, "member_added", membership)
	s.log.Info().
		Str("company_id", actor.CompanyID).
		Str("email", email).
		Str("role", string(role)).
		Msg("member added")
	return membership, nil
}

// ChangeRole updates a member's role within the actor's company.
func (s *MembershipService) ChangeRole(ctx context.Context, actor *CompanyAuthContext, membershipID string, role authz.Role) error {
	if !role.Valid() {
		return apperr.Conflict("unknown role " + string(role))
	}
	membership, err := s.getInCompany(ctx, actor, membershipID)
	if err != nil {
		return err
	}
	if err := s.memberships.UpdateRole(ctx, membership.ID, string(role)); err != nil {
		return apperr.Wrap(err, "membership role update failed")
	}
	membership.Role = string(role)
	s.auditMembership(ctx, actor, "member_role_changed", membership)
	return nil
}

// Deactivate removes a member. The row is kept, inactive, for audit
// history, and any future company-scoped resolution for them denies.
// Their live sessions are revoked so the removal takes effect before the
// context cache TTL runs out.
func (s *MembershipService) Deactivate(ctx context.Context, actor *CompanyAuthContext, membershipID string) error {
	membership, err := s.getInCompany(ctx, actor, membershipID)
	if err != nil {
		return err
	}
	if err := s.memberships.SetActive(ctx, membership.ID, false); err != nil {
		return apperr.Wrap(err, "membership deactivation failed")
	}
	membership.IsActive = false
	if membership.UserID != nil {
		if err := s.sessions.DeactivateUserSessions(ctx, *membership.UserID); err != nil {
			s.log.Warn().Err(err).Str("user_id", *membership.UserID).Msg("session revocation failed")
		}
	}
	s.auditMembership(ctx, actor, "member_deactivated", membership)
	s.log.Info().Str("membership_id", membership.ID).Str("company_id", actor.CompanyID).Msg("member deactivated")
	return nil
}

// ListMembers returns every membership in the actor's company.
func (s *MembershipService) ListMembers(ctx context.Context, actor *CompanyAuthContext) ([]*repository.Membership, error) {
	members, err := s.memberships.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, apperr.Wrap(err, "membership list failed")
	}
	return members, nil
}

// GrantCapability adds an explicit capability grant on top of the user's
// role defaults.
func (s *MembershipService) GrantCapability(ctx context.Context, actor *CompanyAuthContext, userID string, capability authz.Capability) error {
	if !capability.Valid() {
		return apperr.Conflict("unknown capability " + string(capability))
	}
	grant := &repository.UserPermission{
		CompanyID:  actor.CompanyID,
		UserID:     userID,
		Capability: string(capability),
		GrantedBy:  &actor.UserID,
	}
	if err := s.permissions.Grant(ctx, grant); err != nil {
		return apperr.Wrap(err, "capability grant failed")
	}
	s.auditCapability(ctx, actor, "capability_granted", userID, capability)
	s.log.Info().
		Str("company_id", actor.CompanyID).
		Str("user_id", userID).
		Str("capability", string(capability)).
		Msg("capability granted")
	return nil
}

// RevokeCapability removes an explicit grant. Role defaults are not
// revocable this way; narrowing a role is done via ChangeRole.
func (s *MembershipService) RevokeCapability(ctx context.Context, actor *CompanyAuthContext, userID string, capability authz.Capability) error {
	if err := s.permissions.Revoke(ctx, actor.CompanyID, userID, string(capability)); err != nil {
		return apperr.Wrap(err, "capability revoke failed")
	}
	s.auditCapability(ctx, actor, "capability_revoked", userID, capability)
	s.log.Info().
		Str("company_id", actor.CompanyID).
		Str("user_id", userID).
		Str("capability", string(capability)).
		Msg("capability revoked")
	return nil
}

// getInCompany fetches a membership and hides rows belonging to other
// companies behind a not-found, so cross-tenant probing learns nothing.
func (s *MembershipService) getInCompany(ctx context.Context, actor *CompanyAuthContext, membershipID string) (*repository.Membership, error) {
	membership, err := s.memberships.GetByID(ctx, membershipID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, apperr.Wrap(err, "membership lookup failed")
	}
	if membership.CompanyID != actor.CompanyID {
		return nil, apperr.NotFound("membership", membershipID)
	}
	return membership, nil
}

func (s *MembershipService) auditMembership(ctx context.Context, actor *CompanyAuthContext, action string, m *repository.Membership) {
	detail := m.Email + " role=" + m.Role
	event := &repository.AuditEvent{
		CompanyID:   &actor.CompanyID,
		ActorUserID: &actor.UserID,
		Action:      action,
		TargetType:  "membership",
		TargetID:    m.ID,
		Detail:      &detail,
		Success:     true,
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn().Err(err).Msg("audit write failed")
	}
}

func (s *MembershipService) auditCapability(ctx context.Context, actor *CompanyAuthContext, action, userID string, capability authz.Capability) {
	detail := string(capability)
	event := &repository.AuditEvent{
		CompanyID:   &actor.CompanyID,
		ActorUserID: &actor.UserID,
		Action:      action,
		TargetType:  "user_permission",
		TargetID:    userID,
		Detail:      &detail,
		Success:     true,
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn().Err(err).Msg("audit write failed")
	}
}
