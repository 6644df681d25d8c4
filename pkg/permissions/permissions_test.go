package permissions

import (
	"testing"

	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/stretchr/testify/require"
)

func TestPolicy_IsAdmin(t *testing.T) {
	p := NewPolicy([]string{"staff", ""}, "")

	tests := []struct {
		name   string
		member *platform.Member
		want   bool
	}{
		{name: "nil", member: nil, want: false},
		{name: "no roles", member: &platform.Member{ID: "1"}, want: false},
		{name: "admin role", member: &platform.Member{ID: "1", Roles: []string{"other", "staff"}}, want: true},
		{name: "administrator flag", member: &platform.Member{ID: "1", Administrator: true}, want: true},
		{name: "empty role is not a match", member: &platform.Member{ID: "1", Roles: []string{""}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, p.IsAdmin(tt.member))
		})
	}
}

func TestPolicy_NoAdminRoles(t *testing.T) {
	p := NewPolicy(nil, "")
	require.False(t, p.IsAdmin(&platform.Member{ID: "1", Roles: []string{"staff"}}))
	require.True(t, p.IsAdmin(&platform.Member{ID: "1", Administrator: true}))
}

func TestPolicy_CanManage(t *testing.T) {
	p := NewPolicy([]string{"staff"}, "")
	ticket := &entities.Ticket{CreatorID: "creator"}

	require.True(t, p.CanManage(&platform.Member{ID: "creator"}, ticket))
	require.True(t, p.CanManage(&platform.Member{ID: "admin", Roles: []string{"staff"}}, ticket))
	require.False(t, p.CanManage(&platform.Member{ID: "someone"}, ticket))
	require.False(t, p.CanManage(&platform.Member{ID: "creator"}, nil))
}

func TestPolicy_EscalationTarget(t *testing.T) {
	_, ok := NewPolicy(nil, "").EscalationTarget()
	require.False(t, ok)

	role, ok := NewPolicy(nil, "tier2").EscalationTarget()
	require.True(t, ok)
	require.Equal(t, "tier2", role)
}
