package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"truthlens-api/config"
	"truthlens-api/logging"
	"truthlens-api/server"
)

func main() {
	logger := logging.NewLoggerWithService("truthlens-api")

	if loaded := config.LoadEnvFiles(".env", ".env.local"); len(loaded) > 0 {
		logger.WithField("files", loaded).Debug("Loaded env files")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise service")
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		logger.WithError(err).Error("Server exited with error")
	}
}
