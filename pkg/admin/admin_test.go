package admin

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess"
	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess/connection"
	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/lifecycle"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/permissions"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform/platformtest"
	"github.com/Jacobbrewer1/ticketbot/pkg/settings"
	"github.com/stretchr/testify/require"
)

type recordingAuditor struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingAuditor) Audit(_ context.Context, _, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

type fixture struct {
	svc     *Service
	store   dataaccess.Store
	runtime *settings.Runtime
	audit   *recordingAuditor
	admin   *platform.Member
	member  *platform.Member
}

func newFixture(t *testing.T) *fixture {
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
	f := &fixture{
		store: store,
		runtime: settings.NewRuntime(settings.Values{
			InProgressEmoji:       "🛠️",
			DuplicateSimilarity:   0.78,
			TicketCooldownSeconds: 120,
		}),
		audit:  new(recordingAuditor),
		admin:  fake.AddMember(&platform.Member{ID: "admin", GuildID: "guild", DisplayName: "Ada", Roles: []string{"staff"}}),
		member: fake.AddMember(&platform.Member{ID: "member", GuildID: "guild", DisplayName: "Mo"}),
	}
	fake.AddMember(&platform.Member{ID: "helper", GuildID: "guild", Roles: []string{"staff"}, Bot: true})

	f.svc = NewService(l, store, fake, f.runtime, permissions.NewPolicy([]string{"staff"}, ""), f.audit, Channels{
		PublicID:  "public",
		SupportID: "support",
	})
	return f
}

func TestService_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	calls := map[string]func() error{
		"config_get": func() error {
			_, err := f.svc.ConfigGet(ctx, f.member, "")
			return err
		},
		"config_set": func() error {
			_, err := f.svc.ConfigSet(ctx, f.member, "anonymize_public", "true")
			return err
		},
		"blacklist_add": func() error {
			_, err := f.svc.BlacklistAdd(ctx, f.member, "someone", "")
			return err
		},
		"blacklist_remove": func() error {
			return f.svc.BlacklistRemove(ctx, f.member, "someone")
		},
		"blacklist_list": func() error {
			_, err := f.svc.BlacklistList(ctx, f.member)
			return err
		},
		"stats": func() error {
			_, err := f.svc.Stats(ctx, f.member)
			return err
		},
		"perms_check": func() error {
			_, err := f.svc.PermsCheck(ctx, f.member)
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, call(), lifecycle.ErrPermissionDenied)
		})
	}

	require.Empty(t, f.audit.lines)
	require.False(t, f.runtime.Snapshot().AnonymizePublic)
}

func TestService_ConfigSet(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		want      string
		expectErr func(t *testing.T, err error)
	}{
		{
			name:  "valid",
			key:   "duplicate_similarity",
			value: "0.9",
			want:  "0.9",
		},
		{
			name:  "key is case insensitive",
			key:   "Ticket_Cooldown_Seconds",
			value: "30",
			want:  "30",
		},
		{
			name:  "unknown key",
			key:   "max_title_len",
			value: "10",
			expectErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, settings.ErrUnknownKey)
			},
		},
		{
			name:  "invalid value",
			key:   "duplicate_similarity",
			value: "lots",
			expectErr: func(t *testing.T, err error) {
				var ive *settings.InvalidValueError
				require.ErrorAs(t, err, &ive)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			got, err := f.svc.ConfigSet(ctx, f.admin, tt.key, tt.value)
			if tt.expectErr != nil {
				tt.expectErr(t, err)

				overrides, err := f.store.ListOverrides(ctx, "guild")
				require.NoError(t, err)
				require.Empty(t, overrides)
				require.Empty(t, f.audit.lines)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got.Value)
			require.True(t, got.Persisted)

			o, err := f.store.GetOverride(ctx, "guild", string(got.Key))
			require.NoError(t, err)
			require.Equal(t, tt.want, o.Value)

			current, err := f.runtime.Get(got.Key)
			require.NoError(t, err)
			require.Equal(t, tt.want, current)

			require.Equal(t, []string{"Config updated by Ada (admin): " + string(got.Key) + " = " + tt.want}, f.audit.lines)
		})
	}
}

func TestService_ConfigGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ConfigSet(ctx, f.admin, "anonymize_public", "yes")
	require.Error(t, err)
	_, err = f.svc.ConfigSet(ctx, f.admin, "anonymize_public", "true")
	require.NoError(t, err)

	all, err := f.svc.ConfigGet(ctx, f.admin, "")
	require.NoError(t, err)
	require.Equal(t, []Setting{
		{Key: settings.KeyAnonymizePublic, Value: "true", Persisted: true},
		{Key: settings.KeyDuplicateSimilarity, Value: "0.78"},
		{Key: settings.KeyInProgressEmoji, Value: "🛠️"},
		{Key: settings.KeyTicketCooldownSeconds, Value: "120"},
	}, all)

	one, err := f.svc.ConfigGet(ctx, f.admin, "in_progress_emoji")
	require.NoError(t, err)
	require.Equal(t, []Setting{{Key: settings.KeyInProgressEmoji, Value: "🛠️"}}, one)

	_, err = f.svc.ConfigGet(ctx, f.admin, "nope")
	require.ErrorIs(t, err, settings.ErrUnknownKey)
}

func TestService_Restore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, o := range []*entities.ConfigOverride{
		{GuildID: "guild", Key: "anonymize_public", Value: "true"},
		{GuildID: "guild", Key: "duplicate_similarity", Value: "2"},
		{GuildID: "guild", Key: "retired_key", Value: "x"},
		{GuildID: "other", Key: "ticket_cooldown_seconds", Value: "5"},
	} {
		require.NoError(t, f.store.SetOverride(ctx, o))
	}

	applied, err := f.svc.Restore(ctx, "guild")
	require.NoError(t, err)
	require.Equal(t, 1, applied)

	v := f.runtime.Snapshot()
	require.True(t, v.AnonymizePublic)
	require.Equal(t, 0.78, v.DuplicateSimilarity)
	require.Equal(t, 120, v.TicketCooldownSeconds)
}

func TestService_Blacklist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.BlacklistAdd(ctx, f.admin, "spammer", "")
	require.NoError(t, err)
	require.Equal(t, DefaultBlacklistReason, entry.Reason)

	_, err = f.svc.BlacklistAdd(ctx, f.admin, "troll", "Abusive")
	require.NoError(t, err)

	blocked, err := f.store.IsBlacklisted(ctx, "guild", "spammer")
	require.NoError(t, err)
	require.True(t, blocked)

	entries, err := f.svc.BlacklistList(ctx, f.admin)
	require.NoError(t, err)
	require.Equal(t, []*entities.BlacklistEntry{
		{GuildID: "guild", UserID: "spammer", Reason: DefaultBlacklistReason},
		{GuildID: "guild", UserID: "troll", Reason: "Abusive"},
	}, entries)

	require.NoError(t, f.svc.BlacklistRemove(ctx, f.admin, "spammer"))
	require.ErrorIs(t, f.svc.BlacklistRemove(ctx, f.admin, "spammer"), ErrNotBlacklisted)

	require.Equal(t, []string{
		"User blacklisted by Ada (admin): <@spammer> (spammer) - No reason provided",
		"User blacklisted by Ada (admin): <@troll> (troll) - Abusive",
		"User removed from blacklist by Ada (admin): <@spammer> (spammer)",
	}, f.audit.lines)
}

func TestService_BlacklistListIsCapped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < BlacklistLimit+5; i++ {
		_, err := f.svc.BlacklistAdd(ctx, f.admin, string(rune('a'+i)), "")
		require.NoError(t, err)
	}

	entries, err := f.svc.BlacklistList(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, entries, BlacklistLimit)
}

func TestService_Stats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, thread := range []string{"t1", "t2", "t3"} {
		_, _, err := f.store.CreateTicket(ctx, &entities.Ticket{GuildID: "guild", ThreadID: thread, CreatorID: "member", Title: thread})
		require.NoError(t, err)
	}
	require.NoError(t, f.store.CloseTicket(ctx, "t2", entities.StatusSolved))
	require.NoError(t, f.store.UpdateStatus(ctx, "t3", entities.StatusInProgress))

	st, err := f.svc.Stats(ctx, f.admin)
	require.NoError(t, err)
	require.Equal(t, &Stats{
		Total:    3,
		LastWeek: 3,
		ByStatus: []entities.StatusCount{
			{Status: entities.StatusOpen, Count: 1},
			{Status: entities.StatusInProgress, Count: 1},
			{Status: entities.StatusSolved, Count: 1},
			{Status: entities.StatusRejected, Count: 0},
			{Status: entities.StatusClosed, Count: 0},
		},
	}, st)
}

func TestService_PermsCheck(t *testing.T) {
	f := newFixture(t)

	checks, err := f.svc.PermsCheck(context.Background(), f.admin)
	require.NoError(t, err)
	require.Equal(t, []Check{
		{Name: "Public channel", OK: true, Detail: "<#public>"},
		{Name: "Support channel", OK: true, Detail: "<#support>"},
		{Name: "Log channel", OK: false, Detail: "Not configured"},
		{Name: "Admin role <@&staff>", OK: true, Detail: "2 members"},
		{Name: "Escalation role", OK: true, Detail: "Not configured"},
		{Name: "Database", OK: true, Detail: "Connected"},
	}, checks)
}
