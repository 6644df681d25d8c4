package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/ticketbot/pkg/admin"
	"github.com/Jacobbrewer1/ticketbot/pkg/await"
	"github.com/Jacobbrewer1/ticketbot/pkg/cooldown"
	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess"
	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess/connection"
	"github.com/Jacobbrewer1/ticketbot/pkg/lifecycle"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/messages"
	"github.com/Jacobbrewer1/ticketbot/pkg/permissions"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform/platformtest"
	"github.com/Jacobbrewer1/ticketbot/pkg/settings"
	"github.com/stretchr/testify/require"
)

const (
	testGuild  = "guild"
	publicChan = "public"
	staffRole  = "staff"
)

type commandFixture struct {
	d     *dispatcher
	fake  *platformtest.Fake
	store dataaccess.Store

	creator *platform.Member
	staff   *platform.Member
	staff2  *platform.Member
}

func newCommandFixture(t *testing.T) *commandFixture {
	t.Helper()

	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err)

	db, err := (&connection.SQLite{Path: filepath.Join(t.TempDir(), "tickets.db")}).Connect(context.Background())
	require.NoError(t, err)

	store, err := dataaccess.NewSQLiteStore(context.Background(), l, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	fake := platformtest.New()
	rt := settings.NewRuntime(settings.Values{
		InProgressEmoji:     "🛠️",
		DuplicateSimilarity: 0.78,
	})
	policy := permissions.NewPolicy([]string{staffRole}, "")

	tickets := lifecycle.NewService(l, lifecycle.Config{
		PublicChannelID:   publicChan,
		SupportChannelID:  "support",
		ConfirmTimeout:    100 * time.Millisecond,
		ResolutionTimeout: 100 * time.Millisecond,
	}, store, fake, policy, await.NewRegistry(), rt, cooldown.NewLimiter(cooldown.DefaultUses, nil))
	adm := admin.NewService(l, store, fake, rt, policy, tickets, admin.Channels{PublicID: publicChan})

	return &commandFixture{
		d: newDispatcher(l, tickets, adm, rt, "test", func() time.Duration {
			return 42 * time.Millisecond
		}),
		fake:    fake,
		store:   store,
		creator: fake.AddMember(&platform.Member{ID: "creator", GuildID: testGuild, DisplayName: "Creator"}),
		staff:   fake.AddMember(&platform.Member{ID: "staff", GuildID: testGuild, DisplayName: "Staff", Roles: []string{staffRole}}),
		staff2:  fake.AddMember(&platform.Member{ID: "staff2", GuildID: testGuild, DisplayName: "Staff Two", Roles: []string{staffRole}}),
	}
}

func (f *commandFixture) run(t *testing.T, name string, actor *platform.Member, channelID string, args map[string]string) *reply {
	t.Helper()

	cmd, ok := f.d.commands[name]
	require.True(t, ok, "command %s", name)

	_, err := f.fake.Thread(context.Background(), channelID)
	return f.d.dispatch(context.Background(), &invocation{
		cmd:       cmd,
		source:    sourceText,
		actor:     actor,
		guildID:   testGuild,
		channelID: channelID,
		inThread:  err == nil,
		args:      args,
	})
}

func TestParseText(t *testing.T) {
	commands := newCommandFixture(t).d.commands

	tests := []struct {
		name    string
		content string
		cmd     string
		args    map[string]string
		ok      bool
	}{
		{
			name:    "title takes the rest",
			content: "!ticket_open My printer is on fire",
			cmd:     "ticket_open",
			args:    map[string]string{"title": "My printer is on fire"},
			ok:      true,
		},
		{
			name:    "mention is reduced to an id",
			content: "!ticket_adduser <@!123456>",
			cmd:     "ticket_adduser",
			args:    map[string]string{"member": "123456"},
			ok:      true,
		},
		{
			name:    "admin sub command",
			content: "!admin config_set in_progress_emoji 👀 now",
			cmd:     "admin config_set",
			args:    map[string]string{"key": "in_progress_emoji", "value": "👀 now"},
			ok:      true,
		},
		{
			name:    "name is case insensitive",
			content: "  !TICKET_CLAIM",
			cmd:     "ticket_claim",
			args:    map[string]string{},
			ok:      true,
		},
		{
			name:    "optional arguments can be left out",
			content: "!admin blacklist_add <@42>",
			cmd:     "admin blacklist_add",
			args:    map[string]string{"user": "42"},
			ok:      true,
		},
		{name: "admin without a sub command", content: "!admin"},
		{name: "unknown command", content: "!ticket_teleport"},
		{name: "plain message", content: "hello there"},
		{name: "bare prefix", content: "!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, ok := parseText(commands, tt.content)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			require.Equal(t, tt.cmd, cmd.name)
			require.Equal(t, tt.args, args)
		})
	}
}

func TestMentionID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<@123>", "123"},
		{"<@!123>", "123"},
		{"123", "123"},
		{"<@&123>", "<@&123>"},
		{"<#123>", "<#123>"},
		{"<@abc>", "<@abc>"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, mentionID(tt.in))
		})
	}
}

func TestDispatch_ThreadCommandOutsideThread(t *testing.T) {
	f := newCommandFixture(t)

	r := f.run(t, "ticket_claim", f.staff, publicChan, nil)
	require.Equal(t, messages.ErrNotInThread, r.content)
	require.True(t, r.ephemeral)
}

func TestDispatch_MissingArgument(t *testing.T) {
	f := newCommandFixture(t)

	r := f.run(t, "admin config_set", f.staff, publicChan, map[string]string{"key": "anonymize_public"})
	require.Equal(t, "Usage: !admin config_set <key> <value>", r.content)
}

func TestDispatch_OpenClaimAndStatus(t *testing.T) {
	f := newCommandFixture(t)

	r := f.run(t, "ticket_open", f.creator, publicChan, map[string]string{"title": "Login broken"})
	require.True(t, strings.HasPrefix(r.content, "Public ticket thread: <#"), r.content)
	require.False(t, r.ephemeral)

	tickets, err := f.store.ListOpen(context.Background(), testGuild)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	thread := tickets[0].ThreadID
	require.Contains(t, r.content, "<#"+thread+">")

	r = f.run(t, "ticket_claim", f.staff, thread, nil)
	require.Equal(t, "Ticket claimed by <@staff>.", r.content)

	r = f.run(t, "ticket_claim", f.staff2, thread, nil)
	require.True(t, r.ephemeral)
	require.Contains(t, r.content, "Already claimed")

	r = f.run(t, "ticket_status", f.staff, thread, map[string]string{"status": "solved"})
	require.Equal(t, "Status set to: solved", r.content)

	r = f.run(t, "ticket_status", f.staff, thread, map[string]string{"status": "done"})
	require.Equal(t, lifecycle.ErrInvalidStatus.Message, r.content)
}

func TestDispatch_ListMine(t *testing.T) {
	f := newCommandFixture(t)

	r := f.run(t, "ticket_listmine", f.creator, publicChan, nil)
	require.Equal(t, "No open tickets.", r.content)

	f.run(t, "ticket_open", f.creator, publicChan, map[string]string{"title": "Printer jammed"})

	r = f.run(t, "ticket_listmine", f.creator, publicChan, nil)
	require.NotNil(t, r.embed)
	require.Equal(t, "Your Open Tickets", r.embed.Title)
	require.Contains(t, r.embed.Description, "Printer jammed (open)")
	require.True(t, r.ephemeral)
}

func TestDispatch_AdminCommands(t *testing.T) {
	f := newCommandFixture(t)

	r := f.run(t, "admin blacklist_list", f.staff, publicChan, nil)
	require.Equal(t, "No users blacklisted.", r.content)

	tests := []struct {
		name  string
		cmd   string
		actor *platform.Member
		args  map[string]string
		want  string
	}{
		{
			name:  "members are refused",
			cmd:   "admin config_get",
			actor: f.creator,
			want:  messages.ErrAdminOnly,
		},
		{
			name:  "unknown key lists the available keys",
			cmd:   "admin config_set",
			actor: f.staff,
			args:  map[string]string{"key": "nope", "value": "1"},
			want:  "Unknown config key: `nope`\nAvailable: " + availableKeys(),
		},
		{
			name:  "invalid value",
			cmd:   "admin config_set",
			actor: f.staff,
			args:  map[string]string{"key": "anonymize_public", "value": "maybe"},
			want:  "Invalid value for `anonymize_public`: expected true or false",
		},
		{
			name:  "value updated",
			cmd:   "admin config_set",
			actor: f.staff,
			args:  map[string]string{"key": "anonymize_public", "value": "true"},
			want:  "Updated `anonymize_public` to `true`",
		},
		{
			name:  "removing a user that is not blacklisted",
			cmd:   "admin blacklist_remove",
			actor: f.staff,
			args:  map[string]string{"user": "99"},
			want:  "<@99> is not blacklisted.",
		},
		{
			name:  "blacklisting uses the default reason",
			cmd:   "admin blacklist_add",
			actor: f.staff,
			args:  map[string]string{"user": "99"},
			want:  "Blacklisted <@99> from creating tickets.\nReason: " + admin.DefaultBlacklistReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := f.run(t, tt.cmd, tt.actor, publicChan, tt.args)
			require.True(t, r.ephemeral)
			require.Equal(t, tt.want, r.content)
		})
	}

	r = f.run(t, "admin blacklist_list", f.staff, publicChan, nil)
	require.NotNil(t, r.embed)
	require.Contains(t, r.embed.Description, "<@99>")

	r = f.run(t, "ticket_open", &platform.Member{ID: "99", GuildID: testGuild}, publicChan, map[string]string{"title": "Let me in"})
	require.Equal(t, lifecycle.ErrBlacklisted.Message, r.content)
}

func TestDispatch_Help(t *testing.T) {
	f := newCommandFixture(t)

	tests := []struct {
		page  string
		title string
		has   string
	}{
		{"", "Ticket Help (1/4)", "`/ticket_open`"},
		{"2", "Ticket Help (2/4)", "`/ticket_adduser`"},
		{"4", "Ticket Help (4/4)", "`/admin config_set`"},
		{"9", "Ticket Help (1/4)", "`/ticket_close`"},
		{"two", "Ticket Help (1/4)", "`/ticket_reopen`"},
	}
	for _, tt := range tests {
		t.Run(tt.page, func(t *testing.T) {
			r := f.run(t, "help_tickets", f.creator, publicChan, map[string]string{"page": tt.page})
			require.Equal(t, tt.title, r.embed.Title)
			require.Contains(t, r.embed.Description, tt.has)
		})
	}
}

func TestDispatch_Health(t *testing.T) {
	f := newCommandFixture(t)

	r := f.run(t, "health", f.creator, publicChan, nil)
	require.NotNil(t, r.embed)

	fields := make(map[string]string, len(r.embed.Fields))
	for _, fl := range r.embed.Fields {
		fields[fl.Name] = fl.Value
	}
	require.Equal(t, "42 ms", fields["Latency"])
	require.Equal(t, "test", fields["Version"])
	require.Equal(t, "false", fields["Anonymize Public"])
	require.Contains(t, fields, "Tickets Created")
}

func TestSlashCommands(t *testing.T) {
	cmds := slashCommands(commandTable())

	byName := make(map[string]*discordgo.ApplicationCommand, len(cmds))
	for _, c := range cmds {
		byName[c.Name] = c
		require.LessOrEqual(t, len(c.Description), 100, c.Name)
	}
	require.Len(t, cmds, 14)

	adminCmd := byName[adminCmdName]
	require.NotNil(t, adminCmd)
	require.Len(t, adminCmd.Options, 7)
	for _, sub := range adminCmd.Options {
		require.Equal(t, discordgo.ApplicationCommandOptionSubCommand, sub.Type)
	}

	status := byName["ticket_status"]
	require.NotNil(t, status)
	require.Len(t, status.Options, 1)
	require.Len(t, status.Options[0].Choices, 5)
	require.True(t, status.Options[0].Required)

	add := byName["ticket_adduser"]
	require.Equal(t, discordgo.ApplicationCommandOptionUser, add.Options[0].Type)
}
