package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Jacobbrewer1/ticketbot/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/ticketbot/pkg/admin"
	"github.com/Jacobbrewer1/ticketbot/pkg/lifecycle"
	ticketMonitoring "github.com/Jacobbrewer1/ticketbot/pkg/lifecycle/monitoring"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/messages"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/Jacobbrewer1/ticketbot/pkg/settings"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	colorInfo    = 0x3498db
	colorHealthy = 0x2ecc71
	colorDanger  = 0xe74c3c
)

// helpPages groups the commands shown on each page of /help_tickets.
var helpPages = [][]string{
	{"ticket_open", "ticket_close", "ticket_reopen"},
	{"ticket_claim", "ticket_unclaim", "ticket_adduser", "ticket_removeuser"},
	{"ticket_listmine", "ticket_convert", "ticket_escalate", "ticket_status"},
	{"admin config_get", "admin config_set", "admin blacklist_add", "admin blacklist_remove", "admin blacklist_list", "admin stats", "admin perms_check", "health"},
}

type handlerFunc func(d *dispatcher, ctx context.Context, inv *invocation) (*reply, error)

// invocation is a command as received from either transport.
type invocation struct {
	cmd    *command
	source string
	actor  *platform.Member

	guildID   string
	channelID string

	// inThread is whether the command was used inside a thread.
	inThread bool

	args map[string]string
}

func (inv *invocation) arg(name string) string {
	return strings.TrimSpace(inv.args[name])
}

// reply is the response to an invocation.
type reply struct {
	content   string
	embed     *platform.Embed
	ephemeral bool
}

func ephemeralReply(content string) *reply {
	return &reply{content: content, ephemeral: true}
}

// dispatcher runs commands against the ticket and admin services and turns the outcome into a reply.
type dispatcher struct {
	l       *slog.Logger
	tickets *lifecycle.Service
	admin   *admin.Service
	runtime *settings.Runtime
	version string
	started time.Time

	// latency is the gateway heartbeat latency.
	latency func() time.Duration

	commands map[string]*command
}

func newDispatcher(
	l *slog.Logger,
	tickets *lifecycle.Service,
	adm *admin.Service,
	rt *settings.Runtime,
	version string,
	latency func() time.Duration,
) *dispatcher {
	d := &dispatcher{
		l:        l.With(slog.String("component", "commands")),
		tickets:  tickets,
		admin:    adm,
		runtime:  rt,
		version:  version,
		started:  time.Now(),
		latency:  latency,
		commands: make(map[string]*command),
	}
	for _, c := range commandTable() {
		d.commands[c.name] = c
	}
	return d
}

func (d *dispatcher) dispatch(ctx context.Context, inv *invocation) *reply {
	l := d.l.With(
		slog.String(logging.KeyCommand, inv.cmd.name),
		slog.String(logging.KeyUser, inv.actor.ID),
		slog.String(logging.KeyGuild, inv.guildID),
	)

	if inv.cmd.thread && !inv.inThread {
		return ephemeralReply(messages.ErrNotInThread)
	}
	for _, opt := range inv.cmd.options {
		if opt.required && inv.arg(opt.name) == "" {
			return ephemeralReply(usage(inv.cmd))
		}
	}

	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues(inv.cmd.name, inv.source))
	defer t.ObserveDuration()

	r, err := inv.cmd.run(d, ctx, inv)
	if err != nil {
		return d.failure(l, inv, err)
	}
	l.Debug("Command handled")
	return r
}

// failure turns an error into the reply shown to the actor. Errors that are not meant for the actor are logged and
// replaced by a generic message.
func (d *dispatcher) failure(l *slog.Logger, inv *invocation, err error) *reply {
	var (
		ticketErr *lifecycle.Error
		invalid   *settings.InvalidValueError
	)

	reason, content := "error", messages.ErrUserErrorProcessing
	switch {
	case inv.cmd.admin() && errors.Is(err, lifecycle.ErrPermissionDenied):
		reason, content = lifecycle.KindPermissionDenied.String(), messages.ErrAdminOnly
	case errors.As(err, &ticketErr):
		reason, content = ticketErr.Kind.String(), ticketErr.Message
	case errors.Is(err, settings.ErrUnknownKey):
		reason, content = "unknown_key", fmt.Sprintf("Unknown config key: `%s`\nAvailable: %s", inv.arg("key"), availableKeys())
	case errors.As(err, &invalid):
		reason, content = "invalid_value", fmt.Sprintf("Invalid value for `%s`: %s", invalid.Key, invalid.Reason)
	case errors.Is(err, admin.ErrNotBlacklisted):
		reason, content = "not_blacklisted", fmt.Sprintf("<@%s> is not blacklisted.", inv.arg("user"))
	default:
		l.Error("Error handling command", slog.String(logging.KeyError, err.Error()))
	}

	monitoring.DiscordCommandFailures.WithLabelValues(inv.cmd.name, reason).Inc()
	l.Debug("Command failed", slog.String("reason", reason))
	return ephemeralReply(content)
}

func usage(cmd *command) string {
	var sb strings.Builder
	sb.WriteString("Usage: " + textPrefix + cmd.name)
	for _, opt := range cmd.options {
		if opt.required {
			sb.WriteString(" <" + opt.name + ">")
		} else {
			sb.WriteString(" [" + opt.name + "]")
		}
	}
	return sb.String()
}

func availableKeys() string {
	keys := settings.Keys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

func (d *dispatcher) ticketOpen(ctx context.Context, inv *invocation) (*reply, error) {
	res, err := d.tickets.Create(ctx, &lifecycle.CreateRequest{
		Actor:     inv.actor,
		GuildID:   inv.guildID,
		ChannelID: inv.channelID,
		Title:     inv.arg("title"),
	})
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if res.Truncated {
		sb.WriteString(fmt.Sprintf("Title truncated to %d chars.\n", res.MaxTitleLen))
	}
	if res.Ticket.IsPrivate {
		sb.WriteString("Private ticket created: <#" + res.Thread.ID + ">")
	} else {
		sb.WriteString("Public ticket thread: <#" + res.Thread.ID + ">")
	}
	sb.WriteString(res.DuplicateNotice())

	return &reply{content: sb.String(), ephemeral: res.Ticket.IsPrivate}, nil
}

func (d *dispatcher) ticketClose(ctx context.Context, inv *invocation) (*reply, error) {
	res, err := d.tickets.Close(ctx, inv.actor, inv.channelID)
	if err != nil {
		return nil, err
	}

	switch {
	case res.Ticket.IsPrivate:
		return &reply{content: "Private ticket closed."}, nil
	case res.TimedOut:
		return &reply{content: "No resolution chosen. Ticket closed."}, nil
	default:
		return &reply{content: fmt.Sprintf("Ticket resolved as %s.", res.Status)}, nil
	}
}

func (d *dispatcher) ticketReopen(ctx context.Context, inv *invocation) (*reply, error) {
	reason := inv.arg("reason")
	if _, err := d.tickets.Reopen(ctx, inv.actor, inv.channelID, reason); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = lifecycle.DefaultReason
	}
	return &reply{content: "Ticket reopened. Reason: " + reason}, nil
}

func (d *dispatcher) ticketClaim(ctx context.Context, inv *invocation) (*reply, error) {
	if _, err := d.tickets.Claim(ctx, inv.actor, inv.channelID); err != nil {
		return nil, err
	}
	return &reply{content: "Ticket claimed by " + inv.actor.Mention() + "."}, nil
}

func (d *dispatcher) ticketUnclaim(ctx context.Context, inv *invocation) (*reply, error) {
	if _, err := d.tickets.Unclaim(ctx, inv.actor, inv.channelID); err != nil {
		return nil, err
	}
	return &reply{content: "Ticket unclaimed."}, nil
}

func (d *dispatcher) ticketAddUser(ctx context.Context, inv *invocation) (*reply, error) {
	target := inv.arg("member")
	if err := d.tickets.AddUser(ctx, inv.actor, inv.channelID, target); err != nil {
		return nil, err
	}
	return &reply{content: "Added <@" + target + "> to ticket."}, nil
}

func (d *dispatcher) ticketRemoveUser(ctx context.Context, inv *invocation) (*reply, error) {
	target := inv.arg("member")
	if err := d.tickets.RemoveUser(ctx, inv.actor, inv.channelID, target); err != nil {
		return nil, err
	}
	return &reply{content: "Removed <@" + target + "> from ticket."}, nil
}

func (d *dispatcher) ticketListMine(ctx context.Context, inv *invocation) (*reply, error) {
	tickets, err := d.tickets.ListMine(ctx, inv.actor, inv.guildID)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return ephemeralReply("No open tickets."), nil
	}

	lines := make([]string, 0, len(tickets))
	for _, t := range tickets {
		lines = append(lines, fmt.Sprintf("• <#%s> %s (%s)", t.ThreadID, t.Title, t.Status))
	}
	return &reply{
		embed: &platform.Embed{
			Title:       "Your Open Tickets",
			Description: strings.Join(lines, "\n"),
			Color:       colorInfo,
		},
		ephemeral: true,
	}, nil
}

func (d *dispatcher) ticketConvert(ctx context.Context, inv *invocation) (*reply, error) {
	res, err := d.tickets.ConvertToPrivate(ctx, inv.actor, inv.channelID)
	if err != nil {
		return nil, err
	}
	content := "Converted to private ticket."
	if n := len(res.Removed); n > 0 {
		content += fmt.Sprintf(" Removed %d member(s) without access.", n)
	}
	return &reply{content: content}, nil
}

func (d *dispatcher) ticketEscalate(ctx context.Context, inv *invocation) (*reply, error) {
	if err := d.tickets.Escalate(ctx, inv.actor, inv.channelID, inv.arg("reason")); err != nil {
		return nil, err
	}
	return ephemeralReply("Escalated."), nil
}

func (d *dispatcher) ticketStatus(ctx context.Context, inv *invocation) (*reply, error) {
	t, err := d.tickets.SetStatus(ctx, inv.actor, inv.channelID, inv.arg("status"))
	if err != nil {
		return nil, err
	}
	return &reply{content: fmt.Sprintf("Status set to: %s", t.Status)}, nil
}

func (d *dispatcher) configGet(ctx context.Context, inv *invocation) (*reply, error) {
	values, err := d.admin.ConfigGet(ctx, inv.actor, inv.arg("key"))
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(values))
	for _, v := range values {
		line := fmt.Sprintf("`%s`: `%s`", v.Key, v.Value)
		if v.Persisted {
			line += " (saved)"
		}
		lines = append(lines, line)
	}
	return &reply{
		embed: &platform.Embed{
			Title:       "Runtime Configuration",
			Description: strings.Join(lines, "\n"),
			Color:       colorInfo,
		},
		ephemeral: true,
	}, nil
}

func (d *dispatcher) configSet(ctx context.Context, inv *invocation) (*reply, error) {
	s, err := d.admin.ConfigSet(ctx, inv.actor, inv.arg("key"), inv.arg("value"))
	if err != nil {
		return nil, err
	}
	return ephemeralReply(fmt.Sprintf("Updated `%s` to `%s`", s.Key, s.Value)), nil
}

func (d *dispatcher) blacklistAdd(ctx context.Context, inv *invocation) (*reply, error) {
	entry, err := d.admin.BlacklistAdd(ctx, inv.actor, inv.arg("user"), inv.arg("reason"))
	if err != nil {
		return nil, err
	}
	return ephemeralReply(fmt.Sprintf("Blacklisted <@%s> from creating tickets.\nReason: %s", entry.UserID, entry.Reason)), nil
}

func (d *dispatcher) blacklistRemove(ctx context.Context, inv *invocation) (*reply, error) {
	user := inv.arg("user")
	if err := d.admin.BlacklistRemove(ctx, inv.actor, user); err != nil {
		return nil, err
	}
	return ephemeralReply(fmt.Sprintf("Removed <@%s> from blacklist.", user)), nil
}

func (d *dispatcher) blacklistList(ctx context.Context, inv *invocation) (*reply, error) {
	entries, err := d.admin.BlacklistList(ctx, inv.actor)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return ephemeralReply("No users blacklisted."), nil
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("• <@%s> %s: %s", e.UserID, e.UserID, e.Reason))
	}
	return &reply{
		embed: &platform.Embed{
			Title:       "Blacklisted Users",
			Description: strings.Join(lines, "\n"),
			Color:       colorDanger,
		},
		ephemeral: true,
	}, nil
}

func (d *dispatcher) stats(ctx context.Context, inv *invocation) (*reply, error) {
	st, err := d.admin.Stats(ctx, inv.actor)
	if err != nil {
		return nil, err
	}

	breakdown := make([]string, 0, len(st.ByStatus))
	for _, c := range st.ByStatus {
		breakdown = append(breakdown, fmt.Sprintf("%s: %d", c.Status, c.Count))
	}
	return &reply{
		embed: &platform.Embed{
			Title: "Ticket Statistics",
			Color: colorInfo,
			Fields: []platform.EmbedField{
				{Name: "Total Tickets", Value: strconv.FormatInt(st.Total, 10), Inline: true},
				{Name: "Last 7 Days", Value: strconv.FormatInt(st.LastWeek, 10), Inline: true},
				{Name: "Status Breakdown", Value: strings.Join(breakdown, "\n")},
			},
		},
		ephemeral: true,
	}, nil
}

func (d *dispatcher) permsCheck(ctx context.Context, inv *invocation) (*reply, error) {
	checks, err := d.admin.PermsCheck(ctx, inv.actor)
	if err != nil {
		return nil, err
	}

	fields := make([]platform.EmbedField, 0, len(checks))
	for _, c := range checks {
		mark := "✅"
		if !c.OK {
			mark = "❌"
		}
		fields = append(fields, platform.EmbedField{Name: c.Name, Value: mark + " " + c.Detail})
	}
	return &reply{
		embed: &platform.Embed{
			Title:  "Bot Permissions & Configuration Check",
			Color:  colorHealthy,
			Fields: fields,
		},
		ephemeral: true,
	}, nil
}

func (d *dispatcher) health(_ context.Context, _ *invocation) (*reply, error) {
	var latency time.Duration
	if d.latency != nil {
		latency = d.latency()
	}

	return &reply{
		embed: &platform.Embed{
			Title: "Bot Health",
			Color: colorHealthy,
			Fields: []platform.EmbedField{
				{Name: "Latency", Value: fmt.Sprintf("%d ms", latency.Milliseconds()), Inline: true},
				{Name: "Uptime", Value: fmt.Sprintf("%.2f h", time.Since(d.started).Hours()), Inline: true},
				{Name: "Tickets Created", Value: strconv.FormatInt(ticketsCreated(), 10), Inline: true},
				{Name: "Version", Value: d.version, Inline: true},
				{Name: "Go", Value: runtime.Version(), Inline: true},
				{Name: "Anonymize Public", Value: strconv.FormatBool(d.runtime.Snapshot().AnonymizePublic), Inline: true},
			},
		},
		ephemeral: true,
	}, nil
}

// ticketsCreated reads the process wide ticket counter.
func ticketsCreated() int64 {
	m := new(dto.Metric)
	if err := ticketMonitoring.TicketsCreated.Write(m); err != nil {
		return 0
	}
	return int64(m.GetCounter().GetValue())
}

func (d *dispatcher) help(_ context.Context, inv *invocation) (*reply, error) {
	page, err := strconv.Atoi(inv.arg("page"))
	if err != nil || page < 1 || page > len(helpPages) {
		page = 1
	}

	lines := make([]string, 0, len(helpPages[page-1]))
	for _, name := range helpPages[page-1] {
		c, ok := d.commands[name]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("`/%s` %s", c.name, c.description))
	}
	return &reply{
		embed: &platform.Embed{
			Title:       fmt.Sprintf("Ticket Help (%d/%d)", page, len(helpPages)),
			Description: strings.Join(lines, "\n"),
			Color:       colorInfo,
		},
		ephemeral: true,
	}, nil
}
