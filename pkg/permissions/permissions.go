package permissions

import (
	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
)

// Policy answers who may do what to a ticket.
type Policy struct {
	adminRoles     []string
	escalationRole string
}

// NewPolicy creates a policy from the configured admin roles and escalation role. Either may be empty.
func NewPolicy(adminRoles []string, escalationRole string) *Policy {
	roles := make([]string, 0, len(adminRoles))
	for _, r := range adminRoles {
		if r != "" {
			roles = append(roles, r)
		}
	}
	return &Policy{
		adminRoles:     roles,
		escalationRole: escalationRole,
	}
}

// AdminRoles returns the configured admin roles.
func (p *Policy) AdminRoles() []string {
	return p.adminRoles
}

// IsAdmin reports whether the member holds an admin role or the guild administrator capability.
func (p *Policy) IsAdmin(m *platform.Member) bool {
	if m == nil {
		return false
	}
	if m.Administrator {
		return true
	}
	for _, r := range p.adminRoles {
		if m.HasRole(r) {
			return true
		}
	}
	return false
}

// CanManage reports whether the member is an admin or created the ticket.
func (p *Policy) CanManage(m *platform.Member, t *entities.Ticket) bool {
	if m == nil || t == nil {
		return false
	}
	return p.IsAdmin(m) || m.ID == t.CreatorID
}

// EscalationTarget returns the escalation role, if one is configured.
func (p *Policy) EscalationTarget() (string, bool) {
	return p.escalationRole, p.escalationRole != ""
}
