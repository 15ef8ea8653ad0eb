package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/playsquad/realtime/internal/relay"
	"github.com/playsquad/realtime/internal/server"
	"github.com/playsquad/realtime/pkg/config"
	"github.com/playsquad/realtime/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelDebug)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background())
	defer stop()

	// REST handlers elsewhere in the platform hold this provider; it stays
	// a no-op until the app goes live.
	relays := relay.NewProvider()

	app := server.NewApp(logger, ctx, cfg, relays)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
