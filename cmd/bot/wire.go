//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/Jacobbrewer1/ticketbot/cmd/bot/config"
	"github.com/Jacobbrewer1/ticketbot/pkg/await"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform/discord"
	"github.com/google/wire"
	"github.com/gorilla/mux"
)

func InitializeApp(ctx context.Context) (*App, func(), error) {
	wire.Build(
		wire.Value(logging.Name(config.AppName)),
		logging.NewConfig,
		logging.CommonLogger,
		config.Load,
		mux.NewRouter,
		newSession,
		newStore,
		discord.New,
		wire.Bind(new(platform.Platform), new(*discord.Platform)),
		newPolicy,
		await.NewRegistry,
		newRuntime,
		newLimiter,
		newTicketService,
		newAdminService,
		NewApp,
	)
	return new(App), nil, nil
}
