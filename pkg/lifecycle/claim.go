package lifecycle

import (
	"context"
	"fmt"

	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
)

// Claim assigns the ticket to the acting admin. An existing claim is never overwritten.
func (s *Service) Claim(ctx context.Context, actor *platform.Member, threadID string) (t *entities.Ticket, err error) {
	defer observe("claim", &err)

	unlock := s.locks.lock(threadID)
	defer unlock()

	t, err = s.Ticket(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if t.IsClaimed() {
		return nil, alreadyClaimed(s.displayName(ctx, t.GuildID, t.ClaimedBy))
	}
	if !s.policy.IsAdmin(actor) {
		return nil, ErrPermissionDenied
	}

	if err := s.store.SetClaim(ctx, threadID, actor.ID); err != nil {
		return nil, fmt.Errorf("error claiming ticket: %w", err)
	}
	t.ClaimedBy = actor.ID

	s.Audit(ctx, t.GuildID, fmt.Sprintf("Ticket %s claimed by %s.", threadMention(threadID), describe(actor)))
	return t, nil
}

// Unclaim clears the claim. Only the claimant or a guild administrator may do so.
func (s *Service) Unclaim(ctx context.Context, actor *platform.Member, threadID string) (t *entities.Ticket, err error) {
	defer observe("unclaim", &err)

	unlock := s.locks.lock(threadID)
	defer unlock()

	t, err = s.Ticket(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !t.IsClaimed() {
		return nil, ErrNotClaimed
	}
	if !s.policy.IsAdmin(actor) {
		return nil, ErrPermissionDenied
	}
	if t.ClaimedBy != actor.ID && !actor.Administrator {
		return nil, newError(KindPermissionDenied, "You can only unclaim your own tickets.")
	}

	if err := s.store.SetClaim(ctx, threadID, ""); err != nil {
		return nil, fmt.Errorf("error unclaiming ticket: %w", err)
	}
	t.ClaimedBy = ""

	s.Audit(ctx, t.GuildID, fmt.Sprintf("Ticket %s unclaimed by %s.", threadMention(threadID), describe(actor)))
	return t, nil
}
