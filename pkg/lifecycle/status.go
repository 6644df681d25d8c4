package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/lifecycle/monitoring"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
)

// SetStatus sets the status of a ticket and renames its thread to match.
func (s *Service) SetStatus(ctx context.Context, actor *platform.Member, threadID, raw string) (t *entities.Ticket, err error) {
	defer observe("set_status", &err)

	unlock := s.locks.lock(threadID)
	defer unlock()

	t, err = s.Ticket(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !s.policy.IsAdmin(actor) {
		return nil, ErrPermissionDenied
	}
	status, ok := entities.ParseStatus(raw)
	if !ok {
		return nil, ErrInvalidStatus
	}

	name := entities.ThreadName(s.threadName(ctx, t), status)
	if _, err := s.plat.EditThread(ctx, threadID, platform.ThreadEdit{Name: platform.String(name)}); err != nil {
		return nil, platformFailed("rename the thread", err)
	}

	if status == entities.StatusInProgress {
		s.markInProgress(ctx, threadID)
	}

	if err := s.store.UpdateStatus(ctx, threadID, status); err != nil {
		return nil, fmt.Errorf("error updating status: %w", err)
	}
	if status.IsTerminal() && !t.Status.IsTerminal() {
		monitoring.TicketsClosed.WithLabelValues(string(status)).Inc()
	}

	s.Audit(ctx, t.GuildID, fmt.Sprintf("Ticket %s status changed to %s by %s.", threadMention(threadID), status, describe(actor)))
	return s.Ticket(ctx, threadID)
}

// markInProgress reacts to the first message of the thread.
func (s *Service) markInProgress(ctx context.Context, threadID string) {
	l := s.l.With(slog.String(logging.KeyThread, threadID))

	first, err := s.plat.FirstMessage(ctx, threadID)
	if err != nil {
		l.Warn("Error getting first message", slog.String(logging.KeyError, err.Error()))
		return
	}
	if err := s.plat.React(ctx, threadID, first.ID, s.runtime.Snapshot().InProgressEmoji); err != nil {
		l.Warn("Error adding in progress reaction", slog.String(logging.KeyError, err.Error()))
	}
}
