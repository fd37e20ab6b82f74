package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/kitsune-lab/syncstage/config"
	"github.com/kitsune-lab/syncstage/internal/engine"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting syncstage",
		"server_port", cfg.ServerPort,
		"data_dir", cfg.DataDir,
	)

	e, err := engine.New(cfg, logger)
	if err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			logger.Error("another instance is already running", "data_dir", cfg.DataDir)
			os.Exit(2)
		}
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := e.Start(ctx); err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "listen" {
			logger.Error("port bind failure", "error", err)
			os.Exit(3)
		}
		logger.Error("engine error", "error", err)
		os.Exit(1)
	}

	logger.Info("stopped")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
