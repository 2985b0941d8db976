package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-b2b-orders/internal/app"
	"github.com/noah-isme/backend-b2b-orders/internal/config"
	"github.com/noah-isme/backend-b2b-orders/internal/ledger"
	"github.com/noah-isme/backend-b2b-orders/internal/obs"
	"github.com/noah-isme/backend-b2b-orders/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()

	shutdownMeter, err := obs.InitMeterProvider(nil)
	if err != nil {
		logger.Error().Err(err).Msg("initialise meter provider")
	} else {
		defer func() { _ = shutdownMeter(context.Background()) }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	deps, err := app.Open(openCtx, cfg, logger, app.Options{ApplicationName: "b2b-orders-worker"})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	// The worker only reads the ledger; it never schedules reminders of its own.
	ledgerService, err := ledger.NewService(ledger.ServiceConfig{
		Store:  ledger.NewPgStore(deps.DB),
		Events: deps.Events,
		Logger: logger.With().Str("module", "ledger").Logger(),
		Meter:  deps.Meter,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise ledger service")
	}

	handlers, err := tasks.NewHandlers(tasks.HandlersConfig{
		Payments: ledgerService,
		Events:   deps.Events,
		Logger:   logger.With().Str("module", "tasks").Logger(),
		Meter:    deps.Meter,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise task handlers")
	}

	mux := asynq.NewServeMux()
	handlers.Register(mux)

	srv := tasks.NewServer(deps.RedisOpt, cfg.WorkerConcurrency, logger)
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}

	metricsSrv := &http.Server{
		Addr:              envOrDefault("WORKER_METRICS_ADDR", ":9091"),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("worker metrics listener")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("worker draining")
	srv.Shutdown()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	_ = metricsSrv.Shutdown(shutdownCtx)
	cancelShutdown()
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
