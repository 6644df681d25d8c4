package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess"
	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
)

const (
	ActionAdminsGranted = "admins_granted"
	ActionReminded      = "reminded"
	ActionPurged        = "purged"
)

const day = 24 * time.Hour

// Granter grants the admin roles access to a ticket thread and returns how many members were added.
type Granter interface {
	GrantAdmins(ctx context.Context, guildID, threadID string, skip ...string) int
}

// AdminRefresh re-syncs admin membership on every open ticket, so staff that gained a role after a ticket was
// opened can see it.
type AdminRefresh struct {
	l       *slog.Logger
	store   dataaccess.TicketStore
	granter Granter
}

// NewAdminRefresh creates a new AdminRefresh.
func NewAdminRefresh(l *slog.Logger, store dataaccess.TicketStore, granter Granter) *AdminRefresh {
	return &AdminRefresh{
		l:       l,
		store:   store,
		granter: granter,
	}
}

func (a *AdminRefresh) Name() string {
	return "admin_refresh"
}

func (a *AdminRefresh) Run(ctx context.Context, in Input) ([]Result, error) {
	tickets, err := a.store.ListOpen(ctx, in.GuildID)
	if err != nil {
		return nil, fmt.Errorf("error listing open tickets: %w", err)
	}

	results := make([]Result, 0)
	for _, t := range tickets {
		if n := a.granter.GrantAdmins(ctx, in.GuildID, t.ThreadID); n > 0 {
			results = append(results, Result{ThreadID: t.ThreadID, Action: ActionAdminsGranted})
		}
	}
	return results, nil
}

// StaleConfig is the thresholds used by the StaleDetector.
type StaleConfig struct {
	PublicAfter  time.Duration
	PrivateAfter time.Duration

	// RemindEvery is the minimum time between two reminders in the same thread.
	RemindEvery time.Duration
}

// NewStaleConfig builds a StaleConfig from day and hour counts.
func NewStaleConfig(publicDays, privateDays, reminderHours int) StaleConfig {
	return StaleConfig{
		PublicAfter:  time.Duration(publicDays) * day,
		PrivateAfter: time.Duration(privateDays) * day,
		RemindEvery:  time.Duration(reminderHours) * time.Hour,
	}
}

// StaleDetector posts a reminder in tickets that the creator side has gone quiet on.
type StaleDetector struct {
	l     *slog.Logger
	store dataaccess.TicketStore
	plat  platform.Platform
	cfg   StaleConfig

	mu sync.Mutex

	// reminded is the time of the last reminder per guild and thread.
	reminded map[string]map[string]time.Time
}

// NewStaleDetector creates a new StaleDetector.
func NewStaleDetector(l *slog.Logger, store dataaccess.TicketStore, plat platform.Platform, cfg StaleConfig) *StaleDetector {
	return &StaleDetector{
		l:        l,
		store:    store,
		plat:     plat,
		cfg:      cfg,
		reminded: make(map[string]map[string]time.Time),
	}
}

func (s *StaleDetector) Name() string {
	return "stale_detector"
}

func (s *StaleDetector) Run(ctx context.Context, in Input) ([]Result, error) {
	stale := make([]*entities.Ticket, 0)
	for _, private := range []bool{false, true} {
		after := s.cfg.PublicAfter
		if private {
			after = s.cfg.PrivateAfter
		}
		if after <= 0 {
			continue
		}

		tickets, err := s.store.ListStale(ctx, in.GuildID, private, in.Now.Add(-after))
		if err != nil {
			return nil, fmt.Errorf("error listing stale tickets: %w", err)
		}
		stale = append(stale, tickets...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A ticket that is no longer stale gets a fresh reminder next time it goes quiet.
	prev := s.reminded[in.GuildID]
	reminded := make(map[string]time.Time, len(stale))
	for _, t := range stale {
		if last, ok := prev[t.ThreadID]; ok {
			reminded[t.ThreadID] = last
		}
	}
	s.reminded[in.GuildID] = reminded

	results := make([]Result, 0)
	for _, t := range stale {
		if last, ok := reminded[t.ThreadID]; ok && in.Now.Sub(last) < s.cfg.RemindEvery {
			continue
		}

		if _, err := s.plat.Send(ctx, t.ThreadID, &platform.Outgoing{
			Content: staleReminder(t, in.Now),
		}); err != nil {
			s.l.Warn("Error sending stale reminder",
				slog.String(logging.KeyThread, t.ThreadID),
				slog.String(logging.KeyError, err.Error()),
			)
			continue
		}

		reminded[t.ThreadID] = in.Now
		results = append(results, Result{ThreadID: t.ThreadID, Action: ActionReminded})
	}
	return results, nil
}

func staleReminder(t *entities.Ticket, now time.Time) string {
	days := 0
	if t.LastUserMessageAt != nil {
		days = int(now.Sub(t.LastUserMessageAt.Time()) / day)
	}
	return fmt.Sprintf("<@%s> this ticket has had no activity for %d days. Reply to keep it open, or close it with /ticket_close.",
		t.CreatorID, days)
}

// ArchivePurge archives the threads of tickets that were closed long ago and deletes their records.
type ArchivePurge struct {
	l     *slog.Logger
	store dataaccess.TicketStore
	plat  platform.Platform
	after time.Duration
}

// NewArchivePurge creates a new ArchivePurge that purges tickets closed more than purgeDays ago.
func NewArchivePurge(l *slog.Logger, store dataaccess.TicketStore, plat platform.Platform, purgeDays int) *ArchivePurge {
	return &ArchivePurge{
		l:     l,
		store: store,
		plat:  plat,
		after: time.Duration(purgeDays) * day,
	}
}

func (a *ArchivePurge) Name() string {
	return "archive_purge"
}

func (a *ArchivePurge) Run(ctx context.Context, in Input) ([]Result, error) {
	if a.after <= 0 {
		return nil, nil
	}

	tickets, err := a.store.ListPurgeCandidates(ctx, in.GuildID, in.Now.Add(-a.after))
	if err != nil {
		return nil, fmt.Errorf("error listing purge candidates: %w", err)
	}

	results := make([]Result, 0)
	for _, t := range tickets {
		_, err := a.plat.EditThread(ctx, t.ThreadID, platform.ThreadEdit{
			Locked:   platform.Bool(true),
			Archived: platform.Bool(true),
		})
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			// Keep the record so the next run retries.
			a.l.Warn("Error archiving thread",
				slog.String(logging.KeyThread, t.ThreadID),
				slog.String(logging.KeyError, err.Error()),
			)
			continue
		}

		if err := a.store.DeleteTicket(ctx, t.ThreadID); err != nil && !errors.Is(err, dataaccess.ErrNotFound) {
			return results, fmt.Errorf("error deleting ticket: %w", err)
		}
		results = append(results, Result{ThreadID: t.ThreadID, Action: ActionPurged})
	}
	return results, nil
}
