package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess"
	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/lifecycle"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/permissions"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/Jacobbrewer1/ticketbot/pkg/settings"
)

const (
	// BlacklistLimit is the most entries listed at once.
	BlacklistLimit = 20

	// DefaultBlacklistReason is recorded when no reason is given.
	DefaultBlacklistReason = "No reason provided"

	statsWindow = 7 * 24 * time.Hour
)

// ErrNotBlacklisted is returned when removing a user that is not blacklisted.
var ErrNotBlacklisted = errors.New("user is not blacklisted")

// Auditor posts a line to the audit log of a guild.
type Auditor interface {
	Audit(ctx context.Context, guildID, line string)
}

// Channels are the configured ticket channels, reported by PermsCheck.
type Channels struct {
	PublicID  string
	SupportID string
	LogID     string
}

// Service runs the staff only administrative commands.
type Service struct {
	l        *slog.Logger
	store    dataaccess.Store
	plat     platform.Platform
	runtime  *settings.Runtime
	policy   *permissions.Policy
	auditor  Auditor
	channels Channels
	now      func() time.Time
}

// NewService creates a new Service.
func NewService(
	l *slog.Logger,
	store dataaccess.Store,
	plat platform.Platform,
	runtime *settings.Runtime,
	policy *permissions.Policy,
	auditor Auditor,
	channels Channels,
) *Service {
	return &Service{
		l:        l.With(slog.String("component", "admin")),
		store:    store,
		plat:     plat,
		runtime:  runtime,
		policy:   policy,
		auditor:  auditor,
		channels: channels,
		now:      time.Now,
	}
}

func (s *Service) authorize(actor *platform.Member) error {
	if !s.policy.IsAdmin(actor) {
		return lifecycle.ErrPermissionDenied
	}
	return nil
}

// Setting is the current value of a tunable key.
type Setting struct {
	Key   settings.Key
	Value string

	// Persisted is whether the guild has a stored override for the key.
	Persisted bool
}

// ConfigGet returns one setting, or every setting when key is empty.
func (s *Service) ConfigGet(ctx context.Context, actor *platform.Member, key string) ([]Setting, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	keys := settings.Keys()
	persisted := make(map[string]bool)
	if key != "" {
		k, err := settings.ParseKey(key)
		if err != nil {
			return nil, err
		}
		keys = []settings.Key{k}

		_, err = s.store.GetOverride(ctx, actor.GuildID, string(k))
		if err != nil && !errors.Is(err, dataaccess.ErrNotFound) {
			return nil, fmt.Errorf("error getting override: %w", err)
		}
		persisted[string(k)] = err == nil
	} else {
		overrides, err := s.store.ListOverrides(ctx, actor.GuildID)
		if err != nil {
			return nil, fmt.Errorf("error listing overrides: %w", err)
		}
		for _, o := range overrides {
			persisted[o.Key] = true
		}
	}

	out := make([]Setting, 0, len(keys))
	for _, k := range keys {
		v, err := s.runtime.Get(k)
		if err != nil {
			return nil, err
		}
		out = append(out, Setting{Key: k, Value: v, Persisted: persisted[string(k)]})
	}
	return out, nil
}

// ConfigSet validates and applies a new value, then records it as an override for the guild.
func (s *Service) ConfigSet(ctx context.Context, actor *platform.Member, key, value string) (*Setting, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	k, err := settings.ParseKey(key)
	if err != nil {
		return nil, err
	}
	if err := s.runtime.Set(k, value); err != nil {
		return nil, err
	}

	v, err := s.runtime.Get(k)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetOverride(ctx, &entities.ConfigOverride{
		GuildID: actor.GuildID,
		Key:     string(k),
		Value:   v,
	}); err != nil {
		return nil, fmt.Errorf("error saving override: %w", err)
	}

	s.auditor.Audit(ctx, actor.GuildID, fmt.Sprintf("Config updated by %s: %s = %s", describe(actor), k, v))
	return &Setting{Key: k, Value: v, Persisted: true}, nil
}

// Restore applies the overrides persisted for a guild to the runtime settings. Overrides that no longer
// validate are logged and skipped. It returns the number applied.
func (s *Service) Restore(ctx context.Context, guildID string) (int, error) {
	overrides, err := s.store.ListOverrides(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("error listing overrides: %w", err)
	}

	applied := 0
	for _, o := range overrides {
		k, err := settings.ParseKey(o.Key)
		if err == nil {
			err = s.runtime.Set(k, o.Value)
		}
		if err != nil {
			s.l.Warn("Skipping stored override",
				slog.String(logging.KeyGuild, guildID),
				slog.String("key", o.Key),
				slog.String(logging.KeyError, err.Error()),
			)
			continue
		}
		applied++
	}
	return applied, nil
}

// BlacklistAdd blocks a user from opening tickets.
func (s *Service) BlacklistAdd(ctx context.Context, actor *platform.Member, userID, reason string) (*entities.BlacklistEntry, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = DefaultBlacklistReason
	}

	entry := &entities.BlacklistEntry{
		GuildID: actor.GuildID,
		UserID:  userID,
		Reason:  reason,
	}
	if err := s.store.AddBlacklist(ctx, entry); err != nil {
		return nil, fmt.Errorf("error adding blacklist entry: %w", err)
	}

	s.auditor.Audit(ctx, actor.GuildID, fmt.Sprintf("User blacklisted by %s: <@%s> (%s) - %s", describe(actor), userID, userID, reason))
	return entry, nil
}

// BlacklistRemove lets a user open tickets again.
func (s *Service) BlacklistRemove(ctx context.Context, actor *platform.Member, userID string) error {
	if err := s.authorize(actor); err != nil {
		return err
	}

	err := s.store.RemoveBlacklist(ctx, actor.GuildID, userID)
	if errors.Is(err, dataaccess.ErrNotFound) {
		return ErrNotBlacklisted
	} else if err != nil {
		return fmt.Errorf("error removing blacklist entry: %w", err)
	}

	s.auditor.Audit(ctx, actor.GuildID, fmt.Sprintf("User removed from blacklist by %s: <@%s> (%s)", describe(actor), userID, userID))
	return nil
}

// BlacklistList lists up to BlacklistLimit blacklisted users.
func (s *Service) BlacklistList(ctx context.Context, actor *platform.Member) ([]*entities.BlacklistEntry, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	entries, err := s.store.ListBlacklist(ctx, actor.GuildID, BlacklistLimit)
	if err != nil {
		return nil, fmt.Errorf("error listing blacklist: %w", err)
	}
	return entries, nil
}

// Stats is a summary of the tickets of a guild.
type Stats struct {
	Total    int64
	LastWeek int64

	// ByStatus has an entry for every status, in display order.
	ByStatus []entities.StatusCount
}

// Stats counts the tickets of the guild of the actor.
func (s *Service) Stats(ctx context.Context, actor *platform.Member) (*Stats, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	total, err := s.store.CountTotal(ctx, actor.GuildID)
	if err != nil {
		return nil, fmt.Errorf("error counting tickets: %w", err)
	}

	recent, err := s.store.CountCreatedSince(ctx, actor.GuildID, s.now().Add(-statsWindow))
	if err != nil {
		return nil, fmt.Errorf("error counting recent tickets: %w", err)
	}

	counts, err := s.store.CountByStatus(ctx, actor.GuildID)
	if err != nil {
		return nil, fmt.Errorf("error counting tickets by status: %w", err)
	}

	byStatus := make(map[entities.Status]int64, len(counts))
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}

	st := &Stats{
		Total:    total,
		LastWeek: recent,
		ByStatus: make([]entities.StatusCount, 0, len(entities.Statuses)),
	}
	for _, status := range entities.Statuses {
		st.ByStatus = append(st.ByStatus, entities.StatusCount{Status: status, Count: byStatus[status]})
	}
	return st, nil
}

// Check is one line of a configuration report.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// PermsCheck reports on the configured channels, roles and the store.
func (s *Service) PermsCheck(ctx context.Context, actor *platform.Member) ([]Check, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	checks := []Check{
		channelCheck("Public channel", s.channels.PublicID),
		channelCheck("Support channel", s.channels.SupportID),
		channelCheck("Log channel", s.channels.LogID),
	}

	roles := s.policy.AdminRoles()
	if len(roles) == 0 {
		checks = append(checks, Check{Name: "Admin roles", OK: false, Detail: "Not configured"})
	}
	for _, role := range roles {
		members, err := s.plat.RoleMembers(ctx, actor.GuildID, []string{role})
		if err != nil {
			s.l.Warn("Error listing role members", slog.String("role", role), slog.String(logging.KeyError, err.Error()))
			checks = append(checks, Check{Name: "Admin role <@&" + role + ">", OK: false, Detail: "Lookup failed"})
			continue
		}
		checks = append(checks, Check{
			Name:   "Admin role <@&" + role + ">",
			OK:     true,
			Detail: fmt.Sprintf("%d members", len(members)),
		})
	}

	if role, ok := s.policy.EscalationTarget(); ok {
		checks = append(checks, Check{Name: "Escalation role", OK: true, Detail: "<@&" + role + ">"})
	} else {
		checks = append(checks, Check{Name: "Escalation role", OK: true, Detail: "Not configured"})
	}

	if err := s.store.Ping(ctx); err != nil {
		checks = append(checks, Check{Name: "Database", OK: false, Detail: err.Error()})
	} else {
		checks = append(checks, Check{Name: "Database", OK: true, Detail: "Connected"})
	}
	return checks, nil
}

func channelCheck(name, id string) Check {
	if id == "" {
		return Check{Name: name, OK: false, Detail: "Not configured"}
	}
	return Check{Name: name, OK: true, Detail: "<#" + id + ">"}
}

func describe(m *platform.Member) string {
	if m.DisplayName == "" {
		return m.ID
	}
	return fmt.Sprintf("%s (%s)", m.DisplayName, m.ID)
}
