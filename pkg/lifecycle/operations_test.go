package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReopen(t *testing.T) {
	h := newHarness(t)
	res := h.open(t, publicChan, "Cannot login")
	thread := res.Thread.ID

	_, err := h.svc.Reopen(context.Background(), h.creator, thread, "")
	requireKind(t, err, ErrAlreadyOpen)

	_, err = h.svc.SetStatus(context.Background(), h.admin, thread, "in_progress")
	require.NoError(t, err)
	_, err = h.svc.Reopen(context.Background(), h.creator, thread, "")
	requireKind(t, err, ErrAlreadyOpen)

	for _, st := range []entities.Status{entities.StatusSolved, entities.StatusRejected, entities.StatusClosed} {
		t.Run(string(st), func(t *testing.T) {
			_, err := h.svc.SetStatus(context.Background(), h.admin, thread, string(st))
			require.NoError(t, err)
			_, err = h.fake.EditThread(context.Background(), thread, platform.ThreadEdit{
				Locked: platform.Bool(true), Archived: platform.Bool(true),
			})
			require.NoError(t, err)

			_, err = h.svc.Reopen(context.Background(), h.outsider, thread, "")
			requireKind(t, err, ErrPermissionDenied)

			tk, err := h.svc.Reopen(context.Background(), h.creator, thread, "")
			require.NoError(t, err)
			require.Equal(t, entities.StatusOpen, tk.Status)
			requireClosedAtInvariant(t, tk)

			state := h.fake.ThreadState(thread)
			require.Equal(t, "Cannot login", state.Name)
			require.False(t, state.Locked)
			require.False(t, state.Archived)
			require.True(t, h.fake.Joined(thread, h.admin.ID))
		})
	}

	logs := h.fake.SentTo(logChan)
	require.Contains(t, logs[len(logs)-1].Msg.Content, "reopened <#"+thread+"> by Creator (creator): "+DefaultReason)
}

func TestReopen_PrivateNeverReopens(t *testing.T) {
	h := newHarness(t)
	res := h.open(t, supportChan, "Cannot login")

	for _, st := range entities.Statuses {
		require.NoError(t, h.store.UpdateStatus(context.Background(), res.Thread.ID, st))
		_, err := h.svc.Reopen(context.Background(), h.admin, res.Thread.ID, "please")
		requireKind(t, err, ErrPrivateNotReopenable)
	}
}

func TestClaim(t *testing.T) {
	h := newHarness(t)
	res := h.open(t, supportChan, "Cannot login")
	thread := res.Thread.ID

	_, err := h.svc.Claim(context.Background(), h.creator, thread)
	requireKind(t, err, ErrPermissionDenied)

	tk, err := h.svc.Claim(context.Background(), h.admin, thread)
	require.NoError(t, err)
	require.Equal(t, h.admin.ID, tk.ClaimedBy)

	_, err = h.svc.Claim(context.Background(), h.admin2, thread)
	requireKind(t, err, ErrAlreadyClaimed)
	require.Equal(t, "Already claimed by Admin.", err.Error())
	require.Equal(t, h.admin.ID, h.ticket(t, thread).ClaimedBy)

	_, err = h.svc.Claim(context.Background(), h.admin, "unknown")
	requireKind(t, err, ErrNotManaged)
}

func TestClaim_ConcurrentClaimsKeepFirst(t *testing.T) {
	h := newHarness(t)
	res := h.open(t, supportChan, "Cannot login")

	admins := make([]*platform.Member, 8)
	for i := range admins {
		admins[i] = h.fake.AddMember(&platform.Member{ID: fmt.Sprintf("staff-%d", i), Roles: []string{staffRole}})
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for _, a := range admins {
		a := a
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.Claim(context.Background(), a, res.Thread.ID); err == nil {
				mu.Lock()
				winners = append(winners, a.ID)
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrAlreadyClaimed)
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Equal(t, winners[0], h.ticket(t, res.Thread.ID).ClaimedBy)
	require.Zero(t, h.svc.locks.len())
}

func TestUnclaim(t *testing.T) {
	h := newHarness(t)
	res := h.open(t, supportChan, "Cannot login")
	thread := res.Thread.ID

	_, err := h.svc.Unclaim(context.Background(), h.admin, thread)
	requireKind(t, err, ErrNotClaimed)

	_, err = h.svc.Claim(context.Background(), h.admin, thread)
	require.NoError(t, err)

	// Another admin without the administrator capability cannot take it away.
	_, err = h.svc.Unclaim(context.Background(), h.admin2, thread)
	requireKind(t, err, ErrPermissionDenied)
	require.Equal(t, h.admin.ID, h.ticket(t, thread).ClaimedBy)

	_, err = h.svc.Unclaim(context.Background(), h.creator, thread)
	requireKind(t, err, ErrPermissionDenied)
	require.Equal(t, h.admin.ID, h.ticket(t, thread).ClaimedBy)

	tk, err := h.svc.Unclaim(context.Background(), h.owner, thread)
	require.NoError(t, err)
	require.Empty(t, tk.ClaimedBy)

	_, err = h.svc.Claim(context.Background(), h.admin2, thread)
	require.NoError(t, err)
	_, err = h.svc.Unclaim(context.Background(), h.admin2, thread)
	require.NoError(t, err)
	require.False(t, h.ticket(t, thread).IsClaimed())
}

func TestAddRemoveUser(t *testing.T) {
	h := newHarness(t)
	private := h.open(t, supportChan, "Cannot login").Thread.ID
	public := h.open(t, publicChan, "Feature request").Thread.ID
	ctx := context.Background()

	requireKind(t, h.svc.AddUser(ctx, h.admin, public, h.outsider.ID), ErrPublicOnlyRestriction)
	requireKind(t, h.svc.RemoveUser(ctx, h.admin, public, h.outsider.ID), ErrPublicOnlyRestriction)
	requireKind(t, h.svc.AddUser(ctx, h.creator, private, h.outsider.ID), ErrPermissionDenied)

	require.NoError(t, h.svc.AddUser(ctx, h.admin, private, h.outsider.ID))
	require.True(t, h.fake.Joined(private, h.outsider.ID))

	requireKind(t, h.svc.RemoveUser(ctx, h.admin, private, h.creator.ID), ErrCannotRemoveCreator)
	require.True(t, h.fake.Joined(private, h.creator.ID))

	require.NoError(t, h.svc.RemoveUser(ctx, h.admin, private, h.outsider.ID))
	require.False(t, h.fake.Joined(private, h.outsider.ID))

	h.fake.FailAdd["someone"] = errors.New("unknown member")
	err := h.svc.AddUser(ctx, h.admin, private, "someone")
	requireKind(t, err, ErrPlatformActionFailed)
	require.Contains(t, err.Error(), "unknown member")
}

func TestSetStatus(t *testing.T) {
	h := newHarness(t)
	res := h.open(t, supportChan, "Cannot login")
	thread := res.Thread.ID
	ctx := context.Background()

	_, err := h.svc.SetStatus(ctx, h.creator, thread, "solved")
	requireKind(t, err, ErrPermissionDenied)

	_, err = h.svc.SetStatus(ctx, h.admin, thread, "pending")
	requireKind(t, err, ErrInvalidStatus)
	require.Equal(t, "Valid statuses: open, in_progress, solved, rejected, closed", err.Error())

	tk, err := h.svc.SetStatus(ctx, h.admin, thread, "In_Progress")
	require.NoError(t, err)
	require.Equal(t, entities.StatusInProgress, tk.Status)
	require.Equal(t, "[In Progress] Cannot login", h.fake.ThreadState(thread).Name)

	greeting := h.fake.SentTo(thread)[0]
	reactions := h.fake.Reactions()
	require.Len(t, reactions, 1)
	require.Equal(t, greeting.MessageID, reactions[0].MessageID)
	require.Equal(t, "🛠️", reactions[0].Emoji)

	for _, st := range []string{"solved", "open", "rejected", "in_progress", "closed"} {
		tk, err := h.svc.SetStatus(ctx, h.admin, thread, st)
		require.NoError(t, err)
		requireClosedAtInvariant(t, tk)

		// Renaming twice to the same status changes nothing.
		name := h.fake.ThreadState(thread).Name
		_, err = h.svc.SetStatus(ctx, h.admin, thread, st)
		require.NoError(t, err)
		require.Equal(t, name, h.fake.ThreadState(thread).Name)
	}
	require.Equal(t, "[Closed] Cannot login", h.fake.ThreadState(thread).Name)
}

func TestSetStatus_PrefixOnlyThreadName(t *testing.T) {
	h := newHarness(t)
	res := h.open(t, publicChan, "Cannot login")
	thread := res.Thread.ID
	ctx := context.Background()

	_, err := h.fake.EditThread(ctx, thread, platform.ThreadEdit{Name: platform.String("[Solved]")})
	require.NoError(t, err)

	tk, err := h.svc.SetStatus(ctx, h.admin, thread, "open")
	require.NoError(t, err)
	require.Equal(t, entities.StatusOpen, tk.Status)
	require.Equal(t, "Ticket", h.fake.ThreadState(thread).Name)
}

func TestSetStatus_ReactionFailureIgnored(t *testing.T) {
	h := newHarness(t)
	res := h.open(t, supportChan, "Cannot login")
	h.fake.FailReact = errors.New("unknown emoji")

	tk, err := h.svc.SetStatus(context.Background(), h.admin, res.Thread.ID, "in_progress")
	require.NoError(t, err)
	require.Equal(t, entities.StatusInProgress, tk.Status)
}

func TestConvertToPrivate(t *testing.T) {
	h := newHarness(t)
	res := h.open(t, publicChan, "Cannot login")
	thread := res.Thread.ID
	ctx := context.Background()

	bystander := h.fake.AddMember(&platform.Member{ID: "bystander"})
	for _, id := range []string{h.creator.ID, h.outsider.ID, bystander.ID, h.helper.ID, h.owner.ID} {
		require.NoError(t, h.fake.AddThreadMember(ctx, thread, id))
	}

	_, err := h.svc.ConvertToPrivate(ctx, h.creator, thread)
	requireKind(t, err, ErrPermissionDenied)

	got, err := h.svc.ConvertToPrivate(ctx, h.admin, thread)
	require.NoError(t, err)
	require.True(t, got.Ticket.IsPrivate)
	require.ElementsMatch(t, []string{bystander.ID, h.outsider.ID}, got.Removed)

	for _, id := range []string{h.creator.ID, h.admin.ID, h.admin2.ID, h.owner.ID, h.helper.ID} {
		require.True(t, h.fake.Joined(thread, id), id)
	}
	require.True(t, h.ticket(t, thread).IsPrivate)

	_, err = h.svc.ConvertToPrivate(ctx, h.admin, thread)
	requireKind(t, err, ErrAlreadyPrivate)
	require.True(t, h.ticket(t, thread).IsPrivate)
}

func TestEscalate(t *testing.T) {
	h := newHarness(t)
	res := h.open(t, supportChan, "Cannot login")
	thread := res.Thread.ID
	ctx := context.Background()

	requireKind(t, h.svc.Escalate(ctx, h.outsider, thread, "help"), ErrPermissionDenied)
	requireKind(t, h.svc.Escalate(ctx, h.creator, "unknown", "help"), ErrNotManaged)

	require.NoError(t, h.svc.Escalate(ctx, h.creator, thread, ""))

	sent := h.fake.SentTo(thread)
	last := sent[len(sent)-1].Msg
	require.Equal(t, "<@&"+tierTwoRole+">", last.Content)
	require.Equal(t, []string{tierTwoRole}, last.MentionRoles)
	require.Equal(t, "Ticket Escalation", last.Embed.Title)
	require.Equal(t, DefaultReason, last.Embed.Fields[len(last.Embed.Fields)-1].Value)
}

func TestEscalate_NoRole(t *testing.T) {
	h := newHarness(t, func(o *harnessOptions) {
		o.escalationRole = ""
	})
	res := h.open(t, supportChan, "Cannot login")

	requireKind(t, h.svc.Escalate(context.Background(), h.admin, res.Thread.ID, "help"), ErrNoEscalationRole)
}

func TestAudit_Truncates(t *testing.T) {
	h := newHarness(t)

	h.svc.Audit(context.Background(), testGuild, strings.Repeat("ä", 2500))

	logs := h.fake.SentTo(logChan)
	require.Len(t, logs, 1)
	require.Equal(t, auditLimit, utf8.RuneCountInString(logs[0].Msg.Content))
}

func TestAudit_NoLogChannel(t *testing.T) {
	h := newHarness(t, func(o *harnessOptions) {
		o.cfg.LogChannelID = ""
	})

	h.svc.Audit(context.Background(), testGuild, "line")
	require.Empty(t, h.fake.SentTo(""))
}

func TestErrorKinds(t *testing.T) {
	err := alreadyClaimed("Someone")
	require.ErrorIs(t, err, ErrAlreadyClaimed)
	require.NotErrorIs(t, err, ErrNotClaimed)
	require.Equal(t, "already_claimed", err.Kind.String())

	wrapped := fmt.Errorf("outer: %w", ErrNotManaged)
	var le *Error
	require.ErrorAs(t, wrapped, &le)
	require.Equal(t, KindNotManaged, le.Kind)
}
