package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/ticketbot/cmd/bot/config"
	"github.com/Jacobbrewer1/ticketbot/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/ticketbot/pkg/admin"
	"github.com/Jacobbrewer1/ticketbot/pkg/await"
	"github.com/Jacobbrewer1/ticketbot/pkg/cooldown"
	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess"
	"github.com/Jacobbrewer1/ticketbot/pkg/lifecycle"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/Jacobbrewer1/ticketbot/pkg/request"
	"github.com/Jacobbrewer1/ticketbot/pkg/scheduler"
	"github.com/Jacobbrewer1/ticketbot/pkg/settings"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	// PathMetrics is the path for metrics.
	PathMetrics = "/metrics"

	// PathHealth is the path for health check.
	PathHealth = "/health"
)

const (
	adminRefreshSchedule = "@every 6h"
	staleSchedule        = "@every 12h"
	purgeSchedule        = "@every 24h"
	pruneSchedule        = "@every 10m"

	shutdownTimeout = 10 * time.Second
)

type App struct {
	// is the logger.
	*slog.Logger

	cfg *config.Config

	// r is the router for the application.
	r *mux.Router

	// svr is the server for the application.
	svr *http.Server

	// s is the discord session.
	s *discordgo.Session

	store   dataaccess.Store
	plat    platform.Platform
	tickets *lifecycle.Service
	admin   *admin.Service
	awaits  *await.Registry
	limiter *cooldown.Limiter

	commands *dispatcher

	// ready is closed once the gateway session is ready.
	ready     chan struct{}
	readyOnce sync.Once

	// eventNotifier is the channel for notifying of events.
	eventNotifier chan any
}

// NewApp creates a new instance of App.
func NewApp(
	l *slog.Logger,
	cfg *config.Config,
	r *mux.Router,
	s *discordgo.Session,
	store dataaccess.Store,
	plat platform.Platform,
	tickets *lifecycle.Service,
	adm *admin.Service,
	awaits *await.Registry,
	limiter *cooldown.Limiter,
	rt *settings.Runtime,
) *App {
	a := &App{
		Logger:  l,
		cfg:     cfg,
		r:       r,
		s:       s,
		store:   store,
		plat:    plat,
		tickets: tickets,
		admin:   adm,
		awaits:  awaits,
		limiter: limiter,
		ready:   make(chan struct{}),

		// Buffered so the gateway never blocks on the listener.
		eventNotifier: make(chan any, 100),
	}
	a.commands = newDispatcher(l, tickets, adm, rt, Version, s.HeartbeatLatency)
	s.SetEventNotifier(a.eventNotifier)
	return a
}

// Run connects to Discord and serves until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	// Default the number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	a.RegisterDiscordHandlers()

	// Start event listener.
	go a.eventListener()

	sched, err := a.newScheduler(ctx)
	if err != nil {
		return fmt.Errorf("error creating scheduler: %w", err)
	}

	// Open websocket.
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}
	a.Info("Bot is now running.")

	a.generateServer()
	a.setupRoutes()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.runServer(gctx)
		return nil
	})
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("error running scheduler: %w", err)
		}
		return nil
	})

	err = g.Wait()
	a.Info("Shutting down")
	if hookErr := a.ShutdownHook(); hookErr != nil {
		a.Error("Error shutting down application", slog.String(logging.KeyError, hookErr.Error()))
	}
	return err
}

func (a *App) ShutdownHook() error {
	// Reset the total number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	// Unregister slash commands.
	if err := a.unregisterSlashCommands(); err != nil {
		return fmt.Errorf("error unregistering slash commands: %w", err)
	}

	// Close the connection to Discord.
	if err := a.s.Close(); err != nil {
		return fmt.Errorf("error closing connection to Discord: %w", err)
	}
	return nil
}

func (a *App) newScheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.Logger, a.guildIDs, a.ready)

	jobs := []struct {
		schedule string
		strategy scheduler.Strategy
	}{
		{adminRefreshSchedule, scheduler.NewAdminRefresh(a.Logger, a.store, a.tickets)},
		{staleSchedule, scheduler.NewStaleDetector(a.Logger, a.store, a.plat,
			scheduler.NewStaleConfig(a.cfg.StalePublicDays, a.cfg.StalePrivateDays, a.cfg.ReminderHours))},
		{purgeSchedule, scheduler.NewArchivePurge(a.Logger, a.store, a.plat, a.cfg.AutoPurgeDays)},
	}
	for _, j := range jobs {
		if err := sched.Register(ctx, j.schedule, j.strategy); err != nil {
			return nil, err
		}
	}

	if err := sched.RegisterFunc(pruneSchedule, "cooldown_prune", func() {
		if n := a.limiter.Prune(); n > 0 {
			a.Debug("Pruned cooldowns", slog.Int("count", n))
		}
	}); err != nil {
		return nil, err
	}
	return sched, nil
}

// runServer serves the monitoring endpoints until the context is cancelled. The bot keeps running without them.
func (a *App) runServer(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.svr.Shutdown(shutdownCtx); err != nil {
			a.Error("Error stopping monitoring server", slog.String(logging.KeyError, err.Error()))
		}
	}()

	a.Info("Starting monitoring server", slog.String("addr", a.svr.Addr))
	if err := a.svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.Error("Error starting monitoring server", slog.String(logging.KeyError, err.Error()))
		a.Warn("Monitoring server will not be available")
	}
}

func (a *App) setupRoutes() {
	a.r.HandleFunc(PathMetrics, promhttp.Handler().ServeHTTP).Methods(http.MethodGet)
	a.r.HandleFunc(PathHealth, middlewareHttp(a.healthCheck(), a)).Methods(http.MethodGet)

	a.r.NotFoundHandler = request.NotFoundHandler(a.Logger)
	a.r.MethodNotAllowedHandler = request.MethodNotAllowedHandler(a.Logger)
}

func (a *App) generateServer() {
	a.svr = &http.Server{
		Addr:              ":" + a.cfg.MonitoringPort,
		Handler:           a.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (a *App) RegisterDiscordHandlers() {
	a.s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.Info(fmt.Sprintf("Logged in as %s#%s", r.User.Username, r.User.Discriminator))
		a.readyOnce.Do(func() {
			close(a.ready)
		})
	})

	// Bot joined guild.
	a.s.AddHandler(a.guildJoinedHandler)

	// Bot left guild.
	a.s.AddHandler(a.guildLeaveHandler)

	a.s.AddHandler(a.interactionHandler)
	a.s.AddHandler(a.messageHandler)
	a.s.AddHandler(a.reactionHandler)
}

func (a *App) eventListener() {
	for e := range a.eventNotifier {
		switch t := e.(type) {
		case *discordgo.Event:
			if t.Type != "" {
				monitoring.TotalDiscordEvents.WithLabelValues(t.Type).Inc()
			} else {
				// If there is no type, then use the operation name.
				monitoring.TotalDiscordEvents.WithLabelValues(strings.ToUpper(t.Operation.String())).Inc()
			}
		default:
			a.Error("Unknown event type", slog.String("type", fmt.Sprintf("%T", e)))
			monitoring.TotalDiscordEvents.WithLabelValues("UNKNOWN").Inc()
		}
	}
}

func (a *App) Session() *discordgo.Session {
	return a.s
}
