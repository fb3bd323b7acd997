package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/rijksuitgaven/mailengine/internal/api"
	"github.com/rijksuitgaven/mailengine/internal/app"
	"github.com/rijksuitgaven/mailengine/internal/config"
	"github.com/rijksuitgaven/mailengine/internal/migrations"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	migrate := flag.Bool("migrate", false, "apply database migrations before serving")
	withScheduler := flag.Bool("scheduler", true, "run the hourly sequence scheduler in-process")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err.Error())
		os.Exit(1)
	}
	app.ConfigureLogger(cfg.Log, "mailengine-server")

	if *migrate {
		if err := migrations.Run(cfg.Database.URL); err != nil {
			logger.Error("migrations failed", "error", err.Error())
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize", "error", err.Error())
		os.Exit(1)
	}
	engine.Start(ctx)

	if *withScheduler {
		engine.Worker.Start()
	}

	handlers := engine.Handlers()
	server := api.NewServer(cfg.Server, handlers, engine.HealthChecker())

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		addr := cfg.Server.Addr()
		logger.Info("starting server", "addr", addr, "provider", cfg.ProviderName(), "scheduler", *withScheduler)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err.Error())
			done <- syscall.SIGTERM
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}
	if err := engine.Worker.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler did not stop in time", "error", err.Error())
	}
	handlers.Close()
	cancel()
	engine.Close()

	logger.Info("server stopped")
}
