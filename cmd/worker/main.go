package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rijksuitgaven/mailengine/internal/app"
	"github.com/rijksuitgaven/mailengine/internal/config"
	"github.com/rijksuitgaven/mailengine/internal/pkg/distlock"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	once := flag.Bool("once", false, "run a single scheduler pass and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err.Error())
		os.Exit(1)
	}
	app.ConfigureLogger(cfg.Log, "mailengine-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize", "error", err.Error())
		os.Exit(1)
	}
	defer engine.Close()
	engine.Start(ctx)

	if *once {
		res, err := engine.Worker.RunOnce(ctx)
		switch {
		case errors.Is(err, distlock.ErrNotAcquired):
			logger.Info("scheduler pass skipped, lock held elsewhere")
		case err != nil:
			logger.Error("scheduler pass failed", "error", err.Error())
			engine.Close()
			os.Exit(1)
		default:
			logger.Info("scheduler pass finished", "processed", res.Processed, "sent", res.Sent,
				"skipped", res.Skipped, "errors", res.Errors)
		}
		return
	}

	engine.Worker.Start()
	logger.Info("worker running", "schedule", cfg.Worker.Schedule, "timezone", cfg.Mail.Timezone)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := engine.Worker.Stop(stopCtx); err != nil {
		logger.Warn("scheduler did not stop in time", "error", err.Error())
	}
	logger.Info("worker stopped")
}
