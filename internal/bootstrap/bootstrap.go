package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docs-governance/internal/config"
	"github.com/kirillkom/docs-governance/internal/core/ports"
	"github.com/kirillkom/docs-governance/internal/core/usecase"
	"github.com/kirillkom/docs-governance/internal/infrastructure/audit"
	"github.com/kirillkom/docs-governance/internal/infrastructure/cache/processcache"
	"github.com/kirillkom/docs-governance/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/docs-governance/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docs-governance/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docs-governance/internal/infrastructure/resilience"
	"github.com/kirillkom/docs-governance/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docs-governance/internal/observability/metrics"
)

const apiService = "api"

type App struct {
	Config config.Config

	DB          *sql.DB
	Queue       *nats.Queue
	Journal     ports.JournalStore
	HTTPMetrics *metrics.HTTPServerMetrics

	Documents *usecase.DocumentUseCase
	Comments  *usecase.CommentUseCase
	JournalUC *usecase.JournalUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(apiService)
	executor := resilience.NewExecutor(resilienceConfig(cfg), resilience.WithStateObserver(func(operation, _, to string) {
		httpMetrics.RecordBreakerTransition(apiService, operation, to)
	}))

	processes := processcache.New(postgres.NewProcessRepository(db), processcache.Options{
		Size:     cfg.ProcessCacheSize,
		TTL:      cfg.ProcessCacheTTL,
		Executor: executor,
		OnLookup: func(hit bool) { httpMetrics.RecordProcessLookup(apiService, hit) },
	})

	journal := postgres.NewJournalRepository(db)
	var sink ports.AuditSink = audit.NewJournalSink(journal)

	var queue *nats.Queue
	if cfg.AuditMode == config.AuditModeQueue {
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSAuditSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init audit queue: %w", err)
		}
		sink = audit.NewQueueSink(queue, sink)
	}
	dispatcher := audit.NewDispatcher(sink, audit.DispatcherOptions{
		Buffer:  cfg.AuditBufferSize,
		Timeout: cfg.AuditTimeout,
		OnDrop:  func() { httpMetrics.RecordAuditDropped(apiService) },
	})

	documents := usecase.NewDocumentUseCase(
		postgres.NewDocumentRepository(db),
		storage,
		processes,
		dispatcher,
		httpMetrics.Observer(apiService),
	).WithAuditTimeout(cfg.AuditTimeout)
	comments := usecase.NewCommentUseCase(documents, postgres.NewCommentRepository(db), dispatcher)
	journalUC := usecase.NewJournalUseCase(journal, xlsx.NewExporter(nil), cfg.JournalDefaultLimit)

	slog.Info("app_initialized",
		"audit_mode", cfg.AuditMode,
		"audit_buffer", cfg.AuditBufferSize,
		"storage_path", cfg.StoragePath,
		"process_cache_ttl", cfg.ProcessCacheTTL.String(),
	)

	return &App{
		Config:      cfg,
		DB:          db,
		Queue:       queue,
		Journal:     journal,
		HTTPMetrics: httpMetrics,

		Documents: documents,
		Comments:  comments,
		JournalUC: journalUC,

		closeFn: func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), cfg.AuditTimeout+time.Second)
			defer cancel()
			if err := dispatcher.Close(drainCtx); err != nil {
				slog.Warn("audit_drain_incomplete", "error", err)
			}
			if queue != nil {
				queue.Close()
			}
			_ = db.Close()
		},
	}, nil
}

// Ready reports whether the database answers.
func (a *App) Ready(ctx context.Context) error {
	return postgres.Ping(ctx, a.DB)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff:     cfg.ResilienceRetryInitialBackoff,
		RetryMaxBackoff:         cfg.ResilienceRetryMaxBackoff,
		RetryMultiplier:         cfg.ResilienceRetryMultiplier,
		BreakerEnabled:          cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:      cfg.ResilienceBreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.ResilienceBreakerHalfOpenMaxReq, 0)),
	}
}
