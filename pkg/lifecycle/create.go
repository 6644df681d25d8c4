package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Jacobbrewer1/ticketbot/pkg/duplicate"
	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/lifecycle/monitoring"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
)

// CreateRequest opens a ticket.
type CreateRequest struct {
	Actor     *platform.Member
	GuildID   string
	ChannelID string
	Title     string
}

// CreateResult is the outcome of opening a ticket.
type CreateResult struct {
	Ticket *entities.Ticket
	Thread *platform.Thread

	// Truncated is whether the title was cut to the maximum length.
	Truncated bool

	// MaxTitleLen is the length the title was cut to.
	MaxTitleLen int

	// Duplicate is the closest recent title, if it scored above the threshold.
	Duplicate *duplicate.Match
}

// DuplicateNotice returns the advisory appended to replies when a possible duplicate was found.
func (r *CreateResult) DuplicateNotice() string {
	if r.Duplicate == nil {
		return ""
	}
	return fmt.Sprintf(" (Possible duplicate of '%s' score %.2f)", r.Duplicate.Title, r.Duplicate.Score)
}

// Create opens a ticket in a new thread. Tickets opened from the support channel are private, tickets opened
// from the public channel are public.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (res *CreateResult, err error) {
	defer observe("create", &err)

	actor := req.Actor
	l := s.l.With(slog.String(logging.KeyGuild, req.GuildID), slog.String(logging.KeyUser, actor.ID))

	if ok, wait := s.limiter.Allow(req.GuildID, actor.ID, s.runtime.Snapshot().Cooldown()); !ok {
		return nil, cooldownError(wait)
	}

	blocked, err := s.store.IsBlacklisted(ctx, req.GuildID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("error checking blacklist: %w", err)
	} else if blocked {
		return nil, ErrBlacklisted
	}

	title := strings.TrimSpace(req.Title)
	if entities.StripStatus(title) == "" {
		return nil, ErrEmptyTitle
	}

	res = &CreateResult{MaxTitleLen: s.cfg.MaxTitleLen}
	if utf8.RuneCountInString(title) > s.cfg.MaxTitleLen {
		title = strings.TrimSpace(truncate(title, s.cfg.MaxTitleLen))
		res.Truncated = true
	}

	if req.ChannelID == "" {
		return nil, ErrWrongChannel
	}

	var private bool
	switch req.ChannelID {
	case s.cfg.SupportChannelID:
		private = true
	case s.cfg.PublicChannelID:
		private = false
	default:
		return nil, ErrWrongChannel
	}
	res.Duplicate = s.findDuplicate(ctx, req.GuildID, title)

	kind := "Public"
	if private {
		kind = "Private"
	}

	thread, err := s.plat.CreateThread(ctx, req.ChannelID, title, private, fmt.Sprintf("%s ticket by %s", kind, describe(actor)))
	if err != nil {
		return nil, platformFailed("create the ticket thread", err)
	}
	res.Thread = thread

	unlock := s.locks.lock(thread.ID)
	defer unlock()

	if private {
		if err := s.plat.AddThreadMember(ctx, thread.ID, actor.ID); err != nil {
			l.Warn("Error adding creator to thread", slog.String(logging.KeyThread, thread.ID), slog.String(logging.KeyError, err.Error()))
		}
	}

	s.GrantAdmins(ctx, req.GuildID, thread.ID, actor.ID)

	if _, err := s.plat.Send(ctx, thread.ID, &platform.Outgoing{Content: s.greeting(actor, private) + res.DuplicateNotice()}); err != nil {
		l.Warn("Error sending greeting", slog.String(logging.KeyThread, thread.ID), slog.String(logging.KeyError, err.Error()))
	}

	t, created, err := s.store.CreateTicket(ctx, &entities.Ticket{
		GuildID:   req.GuildID,
		ThreadID:  thread.ID,
		CreatorID: actor.ID,
		IsPrivate: private,
		Status:    entities.StatusOpen,
		Title:     title,
	})
	if err != nil {
		return nil, fmt.Errorf("error saving ticket: %w", err)
	}
	res.Ticket = t

	if created {
		monitoring.TicketsCreated.Inc()
	}

	s.Audit(ctx, req.GuildID, fmt.Sprintf("%s ticket opened %s by %s.", kind, threadMention(thread.ID), describe(actor)))
	return res, nil
}

func (s *Service) greeting(actor *platform.Member, private bool) string {
	if private {
		return fmt.Sprintf("Hello %s, please describe your issue.", actor.Mention())
	}
	if s.runtime.Snapshot().AnonymizePublic {
		return "Ticket thread created."
	}
	return fmt.Sprintf("Thread created by %s.", actor.Mention())
}

// findDuplicate compares the title against the most recent titles of the guild. Failures are logged, the
// check never blocks creation.
func (s *Service) findDuplicate(ctx context.Context, guildID, title string) *duplicate.Match {
	recent, err := s.store.ListRecentTitles(ctx, guildID, duplicate.RecentWindow)
	if err != nil {
		s.l.Warn("Error listing recent titles", slog.String(logging.KeyGuild, guildID), slog.String(logging.KeyError, err.Error()))
		return nil
	}

	m, ok := duplicate.Best(title, recent, s.runtime.Snapshot().DuplicateSimilarity)
	if !ok {
		return nil
	}
	return m
}
