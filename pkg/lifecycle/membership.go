package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
)

// AddUser adds a member to a private ticket.
func (s *Service) AddUser(ctx context.Context, actor *platform.Member, threadID, targetID string) (err error) {
	defer observe("add_user", &err)

	unlock := s.locks.lock(threadID)
	defer unlock()

	t, err := s.Ticket(ctx, threadID)
	if err != nil {
		return err
	}
	if !t.IsPrivate {
		return ErrPublicOnlyRestriction
	}
	if !s.policy.IsAdmin(actor) {
		return ErrPermissionDenied
	}

	if err := s.plat.AddThreadMember(ctx, threadID, targetID); err != nil {
		return platformFailed("add user", err)
	}

	s.Audit(ctx, t.GuildID, fmt.Sprintf("<@%s> added to ticket %s by %s.", targetID, threadMention(threadID), describe(actor)))
	return nil
}

// RemoveUser removes a member from a private ticket. The creator cannot be removed.
func (s *Service) RemoveUser(ctx context.Context, actor *platform.Member, threadID, targetID string) (err error) {
	defer observe("remove_user", &err)

	unlock := s.locks.lock(threadID)
	defer unlock()

	t, err := s.Ticket(ctx, threadID)
	if err != nil {
		return err
	}
	if !t.IsPrivate {
		return ErrPublicOnlyRestriction
	}
	if !s.policy.IsAdmin(actor) {
		return ErrPermissionDenied
	}
	if targetID == t.CreatorID {
		return ErrCannotRemoveCreator
	}

	if err := s.plat.RemoveThreadMember(ctx, threadID, targetID); err != nil {
		return platformFailed("remove user", err)
	}

	s.Audit(ctx, t.GuildID, fmt.Sprintf("<@%s> removed from ticket %s by %s.", targetID, threadMention(threadID), describe(actor)))
	return nil
}

// ConvertResult is the outcome of converting a ticket to private.
type ConvertResult struct {
	Ticket *entities.Ticket

	// Removed are the members taken out of the thread.
	Removed []string
}

// ConvertToPrivate marks a public ticket private and removes every member except the creator, admins and bots.
func (s *Service) ConvertToPrivate(ctx context.Context, actor *platform.Member, threadID string) (res *ConvertResult, err error) {
	defer observe("convert", &err)

	unlock := s.locks.lock(threadID)
	defer unlock()

	t, err := s.Ticket(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if t.IsPrivate {
		return nil, ErrAlreadyPrivate
	}
	if !s.policy.IsAdmin(actor) {
		return nil, ErrPermissionDenied
	}

	if err := s.store.SetPrivate(ctx, threadID); err != nil {
		return nil, fmt.Errorf("error converting ticket: %w", err)
	}
	t.IsPrivate = true

	res = &ConvertResult{Ticket: t, Removed: make([]string, 0)}

	members, err := s.plat.ThreadMembers(ctx, t.GuildID, threadID)
	if err != nil {
		s.l.Warn("Error listing thread members", slog.String(logging.KeyThread, threadID), slog.String(logging.KeyError, err.Error()))
	}
	for _, m := range members {
		if m.Bot || m.ID == t.CreatorID || s.policy.IsAdmin(m) {
			continue
		}
		if err := s.plat.RemoveThreadMember(ctx, threadID, m.ID); err != nil {
			s.l.Warn("Error removing thread member",
				slog.String(logging.KeyThread, threadID),
				slog.String(logging.KeyUser, m.ID),
				slog.String(logging.KeyError, err.Error()))
			continue
		}
		res.Removed = append(res.Removed, m.ID)
	}

	s.Audit(ctx, t.GuildID, fmt.Sprintf("Ticket %s converted to private by %s.", threadMention(threadID), describe(actor)))
	return res, nil
}
