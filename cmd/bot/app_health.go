package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexliesenfeld/health"
)

var errNotReady = errors.New("gateway session is not ready")

func (a *App) healthCheck() Controller {
	listener := func(ctx context.Context, name string, state health.CheckState) {
		a.Info("Health check status changed",
			slog.String("name", name),
			slog.String("state", string(state.Status)),
		)
	}

	checker := health.NewChecker(
		// Set a TTL of 1 second for the results of the checks.
		health.WithCacheDuration(1*time.Second),
		health.WithTimeout(2*time.Second),

		health.WithCheck(health.Check{
			Name: "Store",
			Check: func(ctx context.Context) error {
				if err := a.store.Ping(ctx); err != nil {
					return fmt.Errorf("failed to ping %s store: %w", a.cfg.StoreDriver, err)
				}
				return nil
			},
			Timeout:        2 * time.Second,
			StatusListener: listener,
		}),

		// The scheduler and the confirmation waits depend on a live gateway session.
		health.WithCheck(health.Check{
			Name: "Discord_Gateway",
			Check: func(context.Context) error {
				select {
				case <-a.ready:
					return nil
				default:
					return errNotReady
				}
			},
			StatusListener: listener,
		}),

		health.WithPeriodicCheck(15*time.Second, 5*time.Second, health.Check{
			Name: "Discord_API",
			Check: func(ctx context.Context) error {
				if _, err := a.Session().GatewayBot(); err != nil {
					return fmt.Errorf("failed to reach Discord API: %w", err)
				}
				return nil
			},
			Timeout:        3 * time.Second,
			StatusListener: listener,
		}),
	)

	return Controller(health.NewHandler(checker))
}
