package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jacobbrewer1/ticketbot/pkg/await"
	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/lifecycle/monitoring"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/Jacobbrewer1/ticketbot/pkg/transcript"
)

const (
	emojiSolved   = "✅"
	emojiRejected = "❌"

	// confirmToken is the reply that confirms a private close.
	confirmToken = "yes"
)

// resolutions maps the reactions accepted on a public close prompt to the status they resolve to.
var resolutions = map[string]entities.Status{
	emojiSolved:   entities.StatusSolved,
	emojiRejected: entities.StatusRejected,
}

// CloseResult is the outcome of closing a ticket.
type CloseResult struct {
	Ticket *entities.Ticket

	// Status is the status the ticket was resolved to.
	Status entities.Status

	// TimedOut is whether a public close fell back to the default status.
	TimedOut bool
}

// Close closes the ticket bound to the thread. A private ticket needs the actor to reply "yes" in the thread.
// A public ticket asks the creator or an admin to react with the resolution and falls back to closed when
// nobody does.
func (s *Service) Close(ctx context.Context, actor *platform.Member, threadID string) (res *CloseResult, err error) {
	defer observe("close", &err)

	t, err := s.checkClose(ctx, actor, threadID)
	if err != nil {
		return nil, err
	}

	if t.IsPrivate {
		return s.closePrivate(ctx, actor, t)
	}
	return s.closePublic(ctx, actor, t)
}

// checkClose validates a close against the current state of the ticket.
func (s *Service) checkClose(ctx context.Context, actor *platform.Member, threadID string) (*entities.Ticket, error) {
	unlock := s.locks.lock(threadID)
	defer unlock()

	t, err := s.Ticket(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, ErrAlreadyClosed
	}
	if !s.policy.CanManage(actor, t) {
		return nil, ErrPermissionDenied
	}
	return t, nil
}

func (s *Service) closePrivate(ctx context.Context, actor *platform.Member, t *entities.Ticket) (*CloseResult, error) {
	p := s.awaits.Expect(await.Expectation{Kind: await.KindMessage, ChannelID: t.ThreadID, Timeout: s.cfg.ConfirmTimeout})
	defer p.Cancel()

	prompt := fmt.Sprintf("%s confirm close? Reply '%s' within %s.", actor.Mention(), confirmToken, shortDuration(s.cfg.ConfirmTimeout))
	if _, err := s.plat.Send(ctx, t.ThreadID, &platform.Outgoing{Content: prompt}); err != nil {
		return nil, platformFailed("ask for confirmation", err)
	}

	for {
		ev, err := p.Next(ctx)
		if errors.Is(err, await.ErrExpired) {
			monitoring.Confirmations.WithLabelValues("private", "timeout").Inc()
			return nil, ErrConfirmationTimeout
		} else if err != nil {
			return nil, fmt.Errorf("error waiting for confirmation: %w", err)
		}

		if ev.Bot || ev.UserID != actor.ID {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(ev.Content), confirmToken) {
			monitoring.Confirmations.WithLabelValues("private", "cancelled").Inc()
			return nil, ErrCloseCancelled
		}
		break
	}
	monitoring.Confirmations.WithLabelValues("private", "confirmed").Inc()
	p.Cancel()

	unlock := s.locks.lock(t.ThreadID)
	defer unlock()

	t, err := s.recheckClose(ctx, t.ThreadID)
	if err != nil {
		return nil, err
	}

	s.revokeAdmins(ctx, t.GuildID, t.ThreadID, t.CreatorID)
	if err := s.plat.RemoveThreadMember(ctx, t.ThreadID, t.CreatorID); err != nil {
		s.l.Warn("Error removing creator from thread", slog.String(logging.KeyThread, t.ThreadID), slog.String(logging.KeyError, err.Error()))
	}

	if _, err := s.plat.EditThread(ctx, t.ThreadID, platform.ThreadEdit{
		Locked:   platform.Bool(true),
		Archived: platform.Bool(true),
	}); err != nil {
		s.restoreMembers(ctx, t, true)
		return nil, platformFailed("lock the thread", err)
	}

	return s.finishClose(ctx, actor, t, entities.StatusClosed, s.threadName(ctx, t), false)
}

func (s *Service) closePublic(ctx context.Context, actor *platform.Member, t *entities.Ticket) (*CloseResult, error) {
	p := s.awaits.Expect(await.Expectation{Kind: await.KindReaction, ChannelID: t.ThreadID, Timeout: s.cfg.ResolutionTimeout})
	defer p.Cancel()

	prompt, err := s.plat.Send(ctx, t.ThreadID, &platform.Outgoing{
		Content: fmt.Sprintf("React %s (solved) or %s (rejected) within %s. Admin or creator reaction counts.",
			emojiSolved, emojiRejected, shortDuration(s.cfg.ResolutionTimeout)),
	})
	if err != nil {
		return nil, platformFailed("post the resolution prompt", err)
	}

	for _, e := range []string{emojiSolved, emojiRejected} {
		if err := s.plat.React(ctx, t.ThreadID, prompt.ID, e); err != nil {
			s.l.Warn("Error adding resolution reaction", slog.String(logging.KeyThread, t.ThreadID), slog.String(logging.KeyError, err.Error()))
		}
	}

	status, timedOut, err := s.awaitResolution(ctx, p, t, prompt.ID)
	if err != nil {
		return nil, err
	}
	p.Cancel()

	unlock := s.locks.lock(t.ThreadID)
	defer unlock()

	t, err = s.recheckClose(ctx, t.ThreadID)
	if err != nil {
		return nil, err
	}

	s.revokeAdmins(ctx, t.GuildID, t.ThreadID, t.CreatorID)

	name := entities.ThreadName(s.threadName(ctx, t), status)
	if _, err := s.plat.EditThread(ctx, t.ThreadID, platform.ThreadEdit{
		Name:     platform.String(name),
		Locked:   platform.Bool(true),
		Archived: platform.Bool(true),
	}); err != nil {
		s.restoreMembers(ctx, t, false)
		return nil, platformFailed("lock the thread", err)
	}

	return s.finishClose(ctx, actor, t, status, name, timedOut)
}

// awaitResolution waits for a qualifying reaction on the prompt. Anything else is ignored until the deadline,
// at which point the ticket resolves to closed.
func (s *Service) awaitResolution(ctx context.Context, p *await.Pending, t *entities.Ticket, promptID string) (entities.Status, bool, error) {
	for {
		ev, err := p.Next(ctx)
		if errors.Is(err, await.ErrExpired) {
			monitoring.Confirmations.WithLabelValues("public", "timeout").Inc()
			return entities.StatusClosed, true, nil
		} else if err != nil {
			return "", false, fmt.Errorf("error waiting for resolution: %w", err)
		}

		if ev.Bot || ev.MessageID != promptID {
			continue
		}
		status, ok := resolutions[strings.TrimSuffix(ev.Emoji, "\uFE0F")]
		if !ok {
			continue
		}
		if ev.UserID != t.CreatorID {
			m, err := s.plat.Member(ctx, t.GuildID, ev.UserID)
			if err != nil || !s.policy.IsAdmin(m) {
				continue
			}
		}

		monitoring.Confirmations.WithLabelValues("public", string(status)).Inc()
		return status, false, nil
	}
}

// restoreMembers gives back the access taken away by a close that could not lock the thread.
func (s *Service) restoreMembers(ctx context.Context, t *entities.Ticket, creator bool) {
	if creator {
		if err := s.plat.AddThreadMember(ctx, t.ThreadID, t.CreatorID); err != nil {
			s.l.Warn("Error restoring creator", slog.String(logging.KeyThread, t.ThreadID), slog.String(logging.KeyError, err.Error()))
		}
	}
	s.GrantAdmins(ctx, t.GuildID, t.ThreadID, t.CreatorID)
}

// recheckClose re-reads the ticket after a confirmation wait. Another close may have won the race.
func (s *Service) recheckClose(ctx context.Context, threadID string) (*entities.Ticket, error) {
	t, err := s.Ticket(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, ErrAlreadyClosed
	}
	return t, nil
}

// finishClose persists the resolved status then delivers the transcript.
func (s *Service) finishClose(ctx context.Context, actor *platform.Member, t *entities.Ticket, status entities.Status, name string, timedOut bool) (*CloseResult, error) {
	if err := s.store.CloseTicket(ctx, t.ThreadID, status); err != nil {
		return nil, fmt.Errorf("error closing ticket: %w", err)
	}
	monitoring.TicketsClosed.WithLabelValues(string(status)).Inc()

	closed, err := s.Ticket(ctx, t.ThreadID)
	if err != nil {
		return nil, err
	}

	visibility := "Public"
	if closed.IsPrivate {
		visibility = "Private"
	}
	s.Audit(ctx, t.GuildID, fmt.Sprintf("%s ticket %s (%s) resolved as %s by %s.", visibility, name, t.ThreadID, status, describe(actor)))
	s.deliverTranscript(ctx, closed, name)

	return &CloseResult{
		Ticket:   closed,
		Status:   status,
		TimedOut: timedOut,
	}, nil
}

// deliverTranscript exports the thread history to the log channel and, when enabled, to the creator. Failures
// are logged.
func (s *Service) deliverTranscript(ctx context.Context, t *entities.Ticket, name string) {
	if s.cfg.LogChannelID == "" && !s.cfg.DMOnClose {
		return
	}

	l := s.l.With(slog.String(logging.KeyThread, t.ThreadID))

	msgs, err := s.plat.History(ctx, t.ThreadID)
	if err != nil {
		l.Warn("Error reading thread history", slog.String(logging.KeyError, err.Error()))
		return
	}

	files, err := s.renderer.Files(transcript.Header{
		TicketID: t.ID,
		ThreadID: t.ThreadID,
		Title:    t.Title,
		Status:   string(t.Status),
		Exported: s.now(),
	}, msgs)
	if err != nil {
		l.Warn("Error rendering transcript", slog.String(logging.KeyError, err.Error()))
		return
	}

	out := &platform.Outgoing{Content: "Transcript for " + name, Files: files}

	if s.cfg.LogChannelID != "" {
		if _, err := s.plat.Send(ctx, s.cfg.LogChannelID, out); err != nil {
			l.Warn("Error sending transcript", slog.String(logging.KeyError, err.Error()))
		}
	}
	if s.cfg.DMOnClose {
		if err := s.plat.SendDirect(ctx, t.CreatorID, out); err != nil {
			l.Warn("Error sending transcript to creator", slog.String(logging.KeyError, err.Error()))
		}
	}
}
