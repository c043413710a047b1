package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	resyncapp "github.com/artembakhtin/subscription-ledger/internal/app/resync"
	"github.com/artembakhtin/subscription-ledger/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting full panel resync", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := resyncapp.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("resync stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("full panel resync finished")
}
