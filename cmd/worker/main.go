package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/notelib/score-intake/internal/bootstrap"
	"github.com/notelib/score-intake/internal/config"
	"github.com/notelib/score-intake/internal/observability/logging"
	"github.com/notelib/score-intake/internal/observability/metrics"
)

const serviceName = "intake-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	processTimeout := time.Duration(cfg.ProcessTimeoutSeconds) * time.Second

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeSessionQueued(ctx, func(handlerCtx context.Context, sessionID string) error {
		jobID := uuid.NewString()
		start := time.Now()

		if session, err := app.Repo.GetByID(handlerCtx, sessionID); err == nil {
			workerMetrics.ObserveQueueLag(serviceName, start.Sub(session.CreatedAt))
		}

		workerMetrics.StartSession()
		processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
		defer cancel()

		processErr := app.ProcessUC.ProcessByID(processCtx, jobID, sessionID)
		workerMetrics.FinishSession(serviceName, time.Since(start), processErr)
		if processErr == nil {
			if session, err := app.Repo.GetByID(handlerCtx, sessionID); err == nil {
				workerMetrics.RecordPolicy(serviceName, string(session.Policy))
			}
		}
		return processErr
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
