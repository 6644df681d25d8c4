package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/stretchr/testify/require"
)

type recordingStrategy struct {
	mu     sync.Mutex
	guilds []string
	fail   map[string]error
	ran    chan struct{}
}

func (r *recordingStrategy) Name() string {
	return "recording"
}

func (r *recordingStrategy) Run(_ context.Context, in Input) ([]Result, error) {
	r.mu.Lock()
	r.guilds = append(r.guilds, in.GuildID)
	r.mu.Unlock()

	if r.ran != nil {
		select {
		case r.ran <- struct{}{}:
		default:
		}
	}

	if err := r.fail[in.GuildID]; err != nil {
		return nil, err
	}
	return []Result{{ThreadID: in.GuildID + "-thread", Action: "touched"}}, nil
}

func (r *recordingStrategy) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.guilds...)
}

func newTestScheduler(t *testing.T, ready <-chan struct{}, guilds ...string) *Scheduler {
	t.Helper()

	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err)

	return New(l, func() []string { return guilds }, ready)
}

func TestScheduler_RunOnceContinuesPastFailingGuild(t *testing.T) {
	s := newTestScheduler(t, nil, "g1", "g2", "g3")
	st := &recordingStrategy{fail: map[string]error{"g2": errors.New("boom")}}

	results := s.RunOnce(context.Background(), st)

	require.Equal(t, []string{"g1", "g2", "g3"}, st.seen())
	require.Equal(t, []Result{
		{ThreadID: "g1-thread", Action: "touched"},
		{ThreadID: "g3-thread", Action: "touched"},
	}, results)
}

func TestScheduler_RegisterRejectsBadSchedule(t *testing.T) {
	s := newTestScheduler(t, nil)

	err := s.Register(context.Background(), "every now and then", &recordingStrategy{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "recording")

	err = s.RegisterFunc("every now and then", "prune", func() {})
	require.Error(t, err)
	require.Contains(t, err.Error(), "prune")

	require.NoError(t, s.RegisterFunc("@every 10m", "prune", func() {}))
}

func TestScheduler_StartWaitsForReady(t *testing.T) {
	ready := make(chan struct{})
	s := newTestScheduler(t, ready, "g1")
	st := &recordingStrategy{ran: make(chan struct{}, 1)}
	require.NoError(t, s.Register(context.Background(), "@every 1h", st))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	select {
	case <-st.ran:
		t.Fatal("strategy ran before the bot was ready")
	case <-time.After(50 * time.Millisecond):
	}

	close(ready)

	select {
	case <-st.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("strategy did not run once ready")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	require.Equal(t, []string{"g1"}, st.seen())
}

func TestScheduler_StartReturnsWhenCancelledBeforeReady(t *testing.T) {
	s := newTestScheduler(t, make(chan struct{}), "g1")
	st := &recordingStrategy{}
	require.NoError(t, s.Register(context.Background(), "@every 1h", st))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.Start(ctx), context.Canceled)
	require.Empty(t, st.seen())
}
