package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := InitializeApp(ctx)
	if err != nil {
		log.Fatalln(err)
	}

	a.Info("Starting application", slog.String("version", Version))
	if err := a.Run(ctx); err != nil {
		a.Error("Error running application", slog.String(logging.KeyError, err.Error()))
		cleanup()
		os.Exit(1)
	}
	cleanup()
}
