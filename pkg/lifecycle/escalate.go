package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
)

const escalationColor = 0xe74c3c

// Escalate pings the escalation role in the thread with a summary of the ticket.
func (s *Service) Escalate(ctx context.Context, actor *platform.Member, threadID, reason string) (err error) {
	defer observe("escalate", &err)

	t, err := s.Ticket(ctx, threadID)
	if err != nil {
		return err
	}
	role, ok := s.policy.EscalationTarget()
	if !ok {
		return ErrNoEscalationRole
	}
	if !s.policy.CanManage(actor, t) {
		return ErrPermissionDenied
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReason
	}

	if _, err := s.plat.Send(ctx, threadID, &platform.Outgoing{
		Content: "<@&" + role + ">",
		Embed: &platform.Embed{
			Title: "Ticket Escalation",
			Color: escalationColor,
			Fields: []platform.EmbedField{
				{Name: "Ticket", Value: threadMention(threadID), Inline: true},
				{Name: "Escalated by", Value: actor.Mention(), Inline: true},
				{Name: "Status", Value: string(t.Status), Inline: true},
				{Name: "Reason", Value: reason},
			},
		},
		MentionRoles: []string{role},
	}); err != nil {
		return platformFailed("escalate", err)
	}

	s.Audit(ctx, t.GuildID, fmt.Sprintf("Ticket %s escalated by %s: %s", threadMention(threadID), describe(actor), reason))
	return nil
}

// ListMine lists up to ten open or in progress tickets opened by the actor.
func (s *Service) ListMine(ctx context.Context, actor *platform.Member, guildID string) (tickets []*entities.Ticket, err error) {
	defer observe("list_mine", &err)

	tickets, err = s.store.ListOpenByCreator(ctx, guildID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing tickets: %w", err)
	}
	if len(tickets) > listMineLimit {
		tickets = tickets[:listMineLimit]
	}
	return tickets, nil
}
