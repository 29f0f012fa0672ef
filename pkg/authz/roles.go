// Package authz defines the role and capability vocabulary shared by the
// whole platform, plus the default capability set each role carries.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role is the account- or membership-level role of a user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOffice   Role = "office"
	RoleFinance  Role = "finance"
	RoleEngineer Role = "engineer"
	RoleClient   Role = "client"
)

// Capability is a fine-grained permission, finer than a role. Capabilities
// are additive: a user's effective set is the role defaults plus any
// explicit per-user grants. Grants never revoke a role default.
type Capability string

const (
	CapManageTeam        Capability = "manage_team"
	CapManageClients     Capability = "manage_clients"
	CapManageSettings    Capability = "manage_settings"
	CapManageBilling     Capability = "manage_billing"
	CapIssueQuotes       Capability = "issue_quotes"
	CapIssueInvoices     Capability = "issue_invoices"
	CapIssueCertificates Capability = "issue_certificates"
	CapScheduleJobs      Capability = "schedule_jobs"
	CapViewReports       Capability = "view_reports"
	CapImpersonate       Capability = "impersonate_users"
)

var knownCapabilities = map[Capability]bool{
	CapManageTeam:        true,
	CapManageClients:     true,
	CapManageSettings:    true,
	CapManageBilling:     true,
	CapIssueQuotes:       true,
	CapIssueInvoices:     true,
	CapIssueCertificates: true,
	CapScheduleJobs:      true,
	CapViewReports:       true,
	CapImpersonate:       true,
}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	return knownCapabilities[c]
}

//go:embed capabilities.yaml
var capabilitiesYAML []byte

var roleDefaults map[Role]map[Capability]bool

func init() {
	var doc struct {
		Roles map[string][]string `yaml:"roles"`
	}
	if err := yaml.Unmarshal(capabilitiesYAML, &doc); err != nil {
		panic(fmt.Sprintf("authz: invalid capabilities.yaml: %v", err))
	}
	roleDefaults = make(map[Role]map[Capability]bool, len(doc.Roles))
	for role, caps := range doc.Roles {
		set := make(map[Capability]bool, len(caps))
		for _, c := range caps {
			set[Capability(c)] = true
		}
		roleDefaults[Role(role)] = set
	}
}

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the platform roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOffice, RoleFinance, RoleEngineer, RoleClient:
		return true
	}
	return false
}

// Defaults returns the capability defaults for r. The returned slice is a
// copy; callers may mutate it.
func Defaults(r Role) []Capability {
	set := roleDefaults[r]
	caps := make([]Capability, 0, len(set))
	for c := range set {
		caps = append(caps, c)
	}
	return caps
}

// HasDefault reports whether capability c is part of role r's defaults.
// RoleAdmin is not special-cased here; the universal admin override lives
// in the authorization service, not in the capability table.
func HasDefault(r Role, c Capability) bool {
	return roleDefaults[r][c]
}
