package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"coursemind/internal/app"
	"coursemind/internal/config"
	"coursemind/internal/logger"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()
	defer deps.Pool.Release()

	application, err := app.New(
		cfg,
		deps.DB,
		deps.VectorStore,
		deps.Embedder,
		deps.Generator,
		deps.NSQProducer,
		deps.Pool,
	)
	if err != nil {
		slog.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	consumer, err := app.StartEventConsumer(cfg, application.EventConsumer)
	if err != nil {
		slog.Error("failed to start event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Stop()

	if err := application.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
