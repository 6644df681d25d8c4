package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/ticketbot/cmd/bot/config"
	"github.com/Jacobbrewer1/ticketbot/pkg/admin"
	"github.com/Jacobbrewer1/ticketbot/pkg/await"
	"github.com/Jacobbrewer1/ticketbot/pkg/cooldown"
	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess"
	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess/connection"
	"github.com/Jacobbrewer1/ticketbot/pkg/lifecycle"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/permissions"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/Jacobbrewer1/ticketbot/pkg/settings"
)

func newSession(cfg *config.Config) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsAll)
	return dg, nil
}

// newStore connects to the configured store. The cleanup closes it.
func newStore(ctx context.Context, l *slog.Logger, cfg *config.Config) (dataaccess.Store, func(), error) {
	var (
		store dataaccess.Store
		err   error
	)

	switch cfg.StoreDriver {
	case dataaccess.DriverMongo:
		client, connErr := (&connection.MongoDB{URI: cfg.MongoUri}).Connect(ctx)
		if connErr != nil {
			return nil, nil, connErr
		}
		store, err = dataaccess.NewMongoStore(ctx, l, client)
	default:
		db, connErr := (&connection.SQLite{Path: cfg.DbPath}).Connect(ctx)
		if connErr != nil {
			return nil, nil, connErr
		}
		store, err = dataaccess.NewSQLiteStore(ctx, l, db)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error creating %s store: %w", cfg.StoreDriver, err)
	}

	cleanup := func() {
		if err := store.Close(context.Background()); err != nil {
			l.Error("Error closing store", slog.String(logging.KeyError, err.Error()))
		}
	}
	return store, cleanup, nil
}

func newPolicy(cfg *config.Config) *permissions.Policy {
	return permissions.NewPolicy(cfg.AdminRoleIds, cfg.EscalationRoleId)
}

func newRuntime(cfg *config.Config) *settings.Runtime {
	return settings.NewRuntime(settings.Values{
		AnonymizePublic:       cfg.AllowAnonPublic,
		InProgressEmoji:       cfg.InProgressEmoji,
		DuplicateSimilarity:   cfg.DuplicateSimilarity,
		TicketCooldownSeconds: cfg.TicketCooldownSeconds,
	})
}

func newLimiter() *cooldown.Limiter {
	return cooldown.NewLimiter(cooldown.DefaultUses, nil)
}

func newTicketService(
	l *slog.Logger,
	cfg *config.Config,
	store dataaccess.Store,
	plat platform.Platform,
	policy *permissions.Policy,
	awaits *await.Registry,
	rt *settings.Runtime,
	limiter *cooldown.Limiter,
) *lifecycle.Service {
	return lifecycle.NewService(l, lifecycle.Config{
		PublicChannelID:  cfg.PublicChannelId,
		SupportChannelID: cfg.SupportChannelId,
		LogChannelID:     cfg.LogChannelId,
		MaxTitleLen:      cfg.MaxTitleLen,
		DMOnClose:        cfg.DmOnClose,
	}, store, plat, policy, awaits, rt, limiter)
}

func newAdminService(
	l *slog.Logger,
	cfg *config.Config,
	store dataaccess.Store,
	plat platform.Platform,
	rt *settings.Runtime,
	policy *permissions.Policy,
	tickets *lifecycle.Service,
) *admin.Service {
	return admin.NewService(l, store, plat, rt, policy, tickets, admin.Channels{
		PublicID:  cfg.PublicChannelId,
		SupportID: cfg.SupportChannelId,
		LogID:     cfg.LogChannelId,
	})
}
