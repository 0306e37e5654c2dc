package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"provider-lake/internal/common/logging"
	"provider-lake/internal/config"
	"provider-lake/internal/job"
)

func main() {
	// Load .env if present; a missing file is fine in deployed environments
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logging.InitGlobalLogger(cfg.LogLevel, cfg.LogFile)
	defer logging.MustSync()

	runner, err := job.NewRunner(cfg)
	if err != nil {
		logging.GetGlobalLogger().Error("Failed to build pipeline", err)
		logging.MustSync()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := runner.Run(ctx); err != nil {
		logging.GetGlobalLogger().Error("Pipeline run failed", err)
		logging.MustSync()
		os.Exit(1)
	}
}
