package lifecycle

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/await"
	"github.com/Jacobbrewer1/ticketbot/pkg/cooldown"
	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess"
	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess/connection"
	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/permissions"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform/platformtest"
	"github.com/Jacobbrewer1/ticketbot/pkg/settings"
	"github.com/stretchr/testify/require"
)

const (
	testGuild   = "guild"
	publicChan  = "public"
	supportChan = "support"
	logChan     = "log"
	staffRole   = "staff"
	tierTwoRole = "tier2"
)

type harness struct {
	svc     *Service
	fake    *platformtest.Fake
	store   dataaccess.Store
	awaits  *await.Registry
	runtime *settings.Runtime

	creator  *platform.Member
	admin    *platform.Member
	admin2   *platform.Member
	owner    *platform.Member
	outsider *platform.Member
	helper   *platform.Member
}

type harnessOptions struct {
	cfg            Config
	escalationRole string
	values         settings.Values
}

func newHarness(t *testing.T, opts ...func(*harnessOptions)) *harness {
	t.Helper()

	o := &harnessOptions{
		cfg: Config{
			PublicChannelID:   publicChan,
			SupportChannelID:  supportChan,
			LogChannelID:      logChan,
			MaxTitleLen:       90,
			ConfirmTimeout:    200 * time.Millisecond,
			ResolutionTimeout: 200 * time.Millisecond,
		},
		escalationRole: tierTwoRole,
		values: settings.Values{
			InProgressEmoji:     "🛠️",
			DuplicateSimilarity: 0.78,
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err, "Failed to create logger")

	db, err := (&connection.SQLite{Path: filepath.Join(t.TempDir(), "tickets.db")}).Connect(context.Background())
	require.NoError(t, err)

	store, err := dataaccess.NewSQLiteStore(context.Background(), l, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	fake := platformtest.New()
	h := &harness{
		fake:     fake,
		store:    store,
		awaits:   await.NewRegistry(),
		runtime:  settings.NewRuntime(o.values),
		creator:  fake.AddMember(&platform.Member{ID: "creator", GuildID: testGuild, DisplayName: "Creator"}),
		admin:    fake.AddMember(&platform.Member{ID: "admin", GuildID: testGuild, DisplayName: "Admin", Roles: []string{staffRole}}),
		admin2:   fake.AddMember(&platform.Member{ID: "admin2", GuildID: testGuild, DisplayName: "Admin Two", Roles: []string{staffRole}}),
		owner:    fake.AddMember(&platform.Member{ID: "owner", GuildID: testGuild, DisplayName: "Owner", Administrator: true}),
		outsider: fake.AddMember(&platform.Member{ID: "outsider", GuildID: testGuild, DisplayName: "Outsider"}),
		helper:   fake.AddMember(&platform.Member{ID: "helper", GuildID: testGuild, DisplayName: "Helper", Bot: true, Roles: []string{staffRole}}),
	}

	h.svc = NewService(l, o.cfg, store,
		fake,
		permissions.NewPolicy([]string{staffRole}, o.escalationRole),
		h.awaits,
		h.runtime,
		cooldown.NewLimiter(cooldown.DefaultUses, nil),
	)
	return h
}

// open creates a ticket for the creator from the given channel.
func (h *harness) open(t *testing.T, channelID, title string) *CreateResult {
	t.Helper()

	res, err := h.svc.Create(context.Background(), &CreateRequest{
		Actor:     h.creator,
		GuildID:   testGuild,
		ChannelID: channelID,
		Title:     title,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) ticket(t *testing.T, threadID string) *entities.Ticket {
	t.Helper()

	got, err := h.store.GetTicketByThread(context.Background(), threadID)
	require.NoError(t, err)
	return got
}

// onPrompt delivers the events once the service posts a message containing marker to the thread.
func (h *harness) onPrompt(threadID, marker string, events func(prompt *platform.Message) []await.Event) {
	h.fake.OnSend = func(channelID string, msg *platform.Message) {
		if channelID != threadID || !strings.Contains(msg.Content, marker) {
			return
		}
		for _, ev := range events(msg) {
			h.awaits.Deliver(ev)
		}
	}
}

// requireClosedAtInvariant checks that closed_at is set exactly when the status is terminal.
func requireClosedAtInvariant(t *testing.T, tk *entities.Ticket) {
	t.Helper()
	require.Equal(t, tk.Status.IsTerminal(), tk.ClosedAt != nil, "status %s closed_at %v", tk.Status, tk.ClosedAt)
}

func requireKind(t *testing.T, err error, target *Error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, target)
}
