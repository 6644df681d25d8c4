package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
)

// DefaultReason is used when an actor gives no reason.
const DefaultReason = "No reason provided"

// Reopen reopens a closed public ticket.
func (s *Service) Reopen(ctx context.Context, actor *platform.Member, threadID, reason string) (t *entities.Ticket, err error) {
	defer observe("reopen", &err)

	unlock := s.locks.lock(threadID)
	defer unlock()

	t, err = s.Ticket(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if t.IsPrivate {
		return nil, ErrPrivateNotReopenable
	}
	if t.Status.IsActive() {
		return nil, ErrAlreadyOpen
	}
	if !s.policy.CanManage(actor, t) {
		return nil, ErrPermissionDenied
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReason
	}

	if _, err := s.plat.EditThread(ctx, threadID, platform.ThreadEdit{
		Name:     platform.String(entities.ThreadName(s.threadName(ctx, t), entities.StatusOpen)),
		Locked:   platform.Bool(false),
		Archived: platform.Bool(false),
	}); err != nil {
		return nil, platformFailed("reopen the thread", err)
	}

	s.GrantAdmins(ctx, t.GuildID, threadID, t.CreatorID)

	if err := s.store.UpdateStatus(ctx, threadID, entities.StatusOpen); err != nil {
		return nil, fmt.Errorf("error reopening ticket: %w", err)
	}

	s.Audit(ctx, t.GuildID, fmt.Sprintf("Public ticket reopened %s by %s: %s", threadMention(threadID), describe(actor), reason))
	return s.Ticket(ctx, threadID)
}
