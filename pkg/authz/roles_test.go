package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"admin", RoleAdmin, false},
		{"  Office ", RoleOffice, false},
		{"ENGINEER", RoleEngineer, false},
		{"finance", RoleFinance, false},
		{"client", RoleClient, false},
		{"superuser", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseRole(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseRole(%q)", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestRoleDefaultsLoaded(t *testing.T) {
	// The embedded YAML must cover every role, including the empty
	// client set.
	assert.True(t, HasDefault(RoleOffice, CapIssueQuotes))
	assert.True(t, HasDefault(RoleFinance, CapIssueInvoices))
	assert.True(t, HasDefault(RoleEngineer, CapIssueCertificates))
	assert.True(t, HasDefault(RoleAdmin, CapImpersonate))

	assert.False(t, HasDefault(RoleOffice, CapIssueInvoices))
	assert.False(t, HasDefault(RoleEngineer, CapManageBilling))
	assert.Empty(t, Defaults(RoleClient))
}

func TestDefaultsReturnsCopy(t *testing.T) {
	caps := Defaults(RoleOffice)
	require.NotEmpty(t, caps)
	caps[0] = Capability("mutated")
	assert.NotContains(t, Defaults(RoleOffice), Capability("mutated"))
}

func TestValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("root").Valid())
}
