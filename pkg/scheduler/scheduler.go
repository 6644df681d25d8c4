package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/scheduler/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

// Input is what a strategy is run against.
type Input struct {
	Now     time.Time
	GuildID string
}

// Result is a ticket that a strategy acted on.
type Result struct {
	ThreadID string
	Action   string
}

// Strategy is a background policy run periodically for every guild. Running it twice in a row must be safe.
type Strategy interface {
	// Name is the name of the strategy, used for logging and metrics.
	Name() string

	// Run applies the strategy to a single guild.
	Run(ctx context.Context, in Input) ([]Result, error)
}

// GuildsFunc lists the guilds the strategies run against.
type GuildsFunc func() []string

type job struct {
	schedule string
	strategy Strategy
}

// Scheduler runs strategies on cron schedules once the bot is ready.
type Scheduler struct {
	l      *slog.Logger
	cron   *cron.Cron
	guilds GuildsFunc
	ready  <-chan struct{}
	now    func() time.Time

	mu   sync.Mutex
	jobs []job
}

// New creates a new Scheduler. Nothing runs before ready is closed.
func New(l *slog.Logger, guilds GuildsFunc, ready <-chan struct{}) *Scheduler {
	l = l.With(slog.String("component", "scheduler"))
	return &Scheduler{
		l: l,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{l}),
			cron.SkipIfStillRunning(cronLogger{l}),
		)),
		guilds: guilds,
		ready:  ready,
		now:    time.Now,
	}
}

// Register adds a strategy on a schedule such as "@every 6h".
func (s *Scheduler) Register(ctx context.Context, schedule string, st Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cron.AddFunc(schedule, func() {
		s.RunOnce(ctx, st)
	}); err != nil {
		return fmt.Errorf("error registering %s with schedule %q: %w", st.Name(), schedule, err)
	}

	s.jobs = append(s.jobs, job{schedule: schedule, strategy: st})
	s.l.Debug("Strategy registered",
		slog.String(logging.KeyStrategy, st.Name()),
		slog.String("schedule", schedule),
	)
	return nil
}

// RegisterFunc adds a process wide job that is not run per guild. It is not run by Start before its first
// scheduled time.
func (s *Scheduler) RegisterFunc(schedule, name string, fn func()) error {
	if _, err := s.cron.AddFunc(schedule, fn); err != nil {
		return fmt.Errorf("error registering %s with schedule %q: %w", name, schedule, err)
	}
	s.l.Debug("Job registered",
		slog.String(logging.KeyStrategy, name),
		slog.String("schedule", schedule),
	)
	return nil
}

// Start waits for the ready signal, runs every strategy once and then hands over to cron. It blocks until the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
	}

	s.mu.Lock()
	jobs := make([]job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, j := range jobs {
		s.RunOnce(ctx, j.strategy)
	}

	s.cron.Start()
	s.l.Info("Scheduler started", slog.Int("strategies", len(jobs)))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.l.Info("Scheduler stopped")
	return ctx.Err()
}

// RunOnce runs a strategy against every guild and returns everything it acted on. A failing guild does not stop
// the others.
func (s *Scheduler) RunOnce(ctx context.Context, st Strategy) []Result {
	t := prometheus.NewTimer(monitoring.StrategyDuration.WithLabelValues(st.Name()))
	defer t.ObserveDuration()

	l := s.l.With(slog.String(logging.KeyStrategy, st.Name()))

	all := make([]Result, 0)
	for _, g := range s.guilds() {
		if ctx.Err() != nil {
			break
		}

		results, err := st.Run(ctx, Input{Now: s.now(), GuildID: g})
		if err != nil {
			monitoring.StrategyRuns.WithLabelValues(st.Name(), "error").Inc()
			l.Error("Error running strategy",
				slog.String(logging.KeyGuild, g),
				slog.String(logging.KeyError, err.Error()),
			)
			continue
		}
		monitoring.StrategyRuns.WithLabelValues(st.Name(), "ok").Inc()

		for _, r := range results {
			monitoring.StrategyActions.WithLabelValues(st.Name(), r.Action).Inc()
			l.Info("Strategy acted on ticket",
				slog.String(logging.KeyGuild, g),
				slog.String(logging.KeyThread, r.ThreadID),
				slog.String("action", r.Action),
			)
		}
		all = append(all, results...)
	}
	return all
}

// cronLogger adapts slog to the cron logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, logging.KeyError, err.Error())...)
}
