package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/docs-governance/internal/bootstrap"
	"github.com/kirillkom/docs-governance/internal/config"
	"github.com/kirillkom/docs-governance/internal/core/domain"
	"github.com/kirillkom/docs-governance/internal/infrastructure/audit"
	"github.com/kirillkom/docs-governance/internal/observability/logging"
	"github.com/kirillkom/docs-governance/internal/observability/metrics"
)

const service = "journal-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	if cfg.AuditMode != config.AuditModeQueue {
		slog.Error("worker_requires_queue_mode", "audit_mode", cfg.AuditMode)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	consumer := audit.NewConsumer(app.Journal, func(outcome string) {
		slog.Debug("journal_entry_handled", "outcome", outcome)
	})

	slog.Info("worker_subscribed", "subject", cfg.NATSAuditSubject)
	err = app.Queue.SubscribeAudit(ctx, func(handlerCtx context.Context, entry domain.AuditEntry) error {
		writeCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		start := time.Now()
		workerMetrics.StartEntry()
		err := consumer.Handle(writeCtx, entry)
		workerMetrics.FinishEntry(service, time.Since(start), err)
		workerMetrics.ObserveQueueLag(service, time.Since(entry.Timestamp))
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
	}
}
