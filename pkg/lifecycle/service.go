package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/Jacobbrewer1/ticketbot/pkg/await"
	"github.com/Jacobbrewer1/ticketbot/pkg/cooldown"
	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess"
	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/lifecycle/monitoring"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/permissions"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/Jacobbrewer1/ticketbot/pkg/settings"
	"github.com/Jacobbrewer1/ticketbot/pkg/transcript"
	"golang.org/x/sync/errgroup"
)

// Service runs the ticket lifecycle. Every operation re-reads the ticket, and operations that mutate the same
// ticket are serialized. Close confirmations release the ticket while they wait.
type Service struct {
	l        *slog.Logger
	cfg      Config
	store    dataaccess.Store
	plat     platform.Platform
	policy   *permissions.Policy
	awaits   *await.Registry
	runtime  *settings.Runtime
	limiter  *cooldown.Limiter
	renderer *transcript.Renderer
	locks    *threadLocks
	now      func() time.Time
}

// NewService creates a new Service.
func NewService(
	l *slog.Logger,
	cfg Config,
	store dataaccess.Store,
	plat platform.Platform,
	policy *permissions.Policy,
	awaits *await.Registry,
	runtime *settings.Runtime,
	limiter *cooldown.Limiter,
) *Service {
	return &Service{
		l:        l.With(slog.String("component", "lifecycle")),
		cfg:      cfg.withDefaults(),
		store:    store,
		plat:     plat,
		policy:   policy,
		awaits:   awaits,
		runtime:  runtime,
		limiter:  limiter,
		renderer: transcript.NewRenderer(),
		locks:    newThreadLocks(),
		now:      time.Now,
	}
}

// Policy returns the permission policy the service checks against.
func (s *Service) Policy() *permissions.Policy {
	return s.policy
}

// Ticket gets the ticket bound to a thread.
func (s *Service) Ticket(ctx context.Context, threadID string) (*entities.Ticket, error) {
	t, err := s.store.GetTicketByThread(ctx, threadID)
	if errors.Is(err, dataaccess.ErrNotFound) {
		return nil, ErrNotManaged
	} else if err != nil {
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}
	return t, nil
}

// RecordActivity stamps the last user message time of the ticket bound to the thread. Messages from bots and
// threads that are not tickets are ignored.
func (s *Service) RecordActivity(ctx context.Context, threadID string, bot bool) error {
	if bot {
		return nil
	}
	err := s.store.UpdateLastUserMessage(ctx, threadID)
	if errors.Is(err, dataaccess.ErrNotFound) {
		return nil
	} else if err != nil {
		return fmt.Errorf("error recording activity: %w", err)
	}
	return nil
}

// observe records the result of an operation.
func observe(op string, err *error) {
	result := "ok"
	if *err != nil {
		var le *Error
		if errors.As(*err, &le) {
			result = le.Kind.String()
		} else {
			result = "error"
		}
	}
	monitoring.Operations.WithLabelValues(op, result).Inc()
}

// Audit logs the line and posts it to the log channel.
func (s *Service) Audit(ctx context.Context, guildID, line string) {
	s.l.Info("Audit", slog.String(logging.KeyGuild, guildID), slog.String("line", line))

	if s.cfg.LogChannelID == "" {
		return
	}
	if _, err := s.plat.Send(ctx, s.cfg.LogChannelID, &platform.Outgoing{Content: truncate(line, auditLimit)}); err != nil {
		s.l.Warn("Error sending audit line", slog.String(logging.KeyError, err.Error()))
	}
}

// adminMembers lists the non-bot holders of the admin roles, excluding skip.
func (s *Service) adminMembers(ctx context.Context, guildID string, skip ...string) []*platform.Member {
	roles := s.policy.AdminRoles()
	if len(roles) == 0 {
		return nil
	}

	members, err := s.plat.RoleMembers(ctx, guildID, roles)
	if err != nil {
		s.l.Warn("Error listing admins", slog.String(logging.KeyGuild, guildID), slog.String(logging.KeyError, err.Error()))
		return nil
	}

	seen := make(map[string]bool, len(members)+len(skip))
	for _, id := range skip {
		seen[id] = true
	}

	admins := make([]*platform.Member, 0, len(members))
	for _, m := range members {
		if m.Bot || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		admins = append(admins, m)
	}
	return admins
}

// GrantAdmins adds every admin to the thread. Individual failures are logged and skipped. It returns the
// number of admins added.
func (s *Service) GrantAdmins(ctx context.Context, guildID, threadID string, skip ...string) int {
	return s.fanOut(ctx, threadID, s.adminMembers(ctx, guildID, skip...), s.plat.AddThreadMember)
}

// revokeAdmins removes every admin from the thread. Individual failures are logged and skipped.
func (s *Service) revokeAdmins(ctx context.Context, guildID, threadID string, skip ...string) int {
	return s.fanOut(ctx, threadID, s.adminMembers(ctx, guildID, skip...), s.plat.RemoveThreadMember)
}

func (s *Service) fanOut(ctx context.Context, threadID string, members []*platform.Member, fn func(ctx context.Context, threadID, userID string) error) int {
	var (
		g  errgroup.Group
		ok = make(chan struct{}, len(members))
	)
	g.SetLimit(adminConcurrency)

	for _, m := range members {
		m := m
		g.Go(func() error {
			if err := fn(ctx, threadID, m.ID); err != nil {
				s.l.Warn("Error changing thread membership",
					slog.String(logging.KeyThread, threadID),
					slog.String(logging.KeyUser, m.ID),
					slog.String(logging.KeyError, err.Error()))
				return nil
			}
			ok <- struct{}{}
			return nil
		})
	}

	_ = g.Wait()
	return len(ok)
}

// threadName returns the current name of the thread, falling back to the ticket title.
func (s *Service) threadName(ctx context.Context, t *entities.Ticket) string {
	th, err := s.plat.Thread(ctx, t.ThreadID)
	if err != nil {
		s.l.Warn("Error getting thread", slog.String(logging.KeyThread, t.ThreadID), slog.String(logging.KeyError, err.Error()))
		return t.Title
	}
	return th.Name
}

// displayName resolves the name of a member for replies.
func (s *Service) displayName(ctx context.Context, guildID, userID string) string {
	m, err := s.plat.Member(ctx, guildID, userID)
	if err != nil || m.DisplayName == "" {
		return "User " + userID
	}
	return m.DisplayName
}

func threadMention(threadID string) string {
	return "<#" + threadID + ">"
}

func describe(m *platform.Member) string {
	if m.DisplayName == "" {
		return m.ID
	}
	return fmt.Sprintf("%s (%s)", m.DisplayName, m.ID)
}

// shortDuration formats whole minutes as "2m" and whole seconds as "15s".
func shortDuration(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d >= time.Second:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return d.String()
	}
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
