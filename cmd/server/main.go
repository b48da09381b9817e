package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/johnrirwin/feedmix/internal/app"
	"github.com/johnrirwin/feedmix/internal/config"
	"github.com/johnrirwin/feedmix/internal/logging"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logging.New(logging.LevelError).Error("Failed to start", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		application.Logger.Info("Shutting down...")
		cancel()
	}()

	runErr := application.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	application.Shutdown(shutdownCtx)

	if runErr != nil {
		application.Logger.Error("HTTP server error", logging.WithField("error", runErr.Error()))
		os.Exit(1)
	}
}
