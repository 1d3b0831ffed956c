// Package bootstrap assembles the intake application from its adapters.
// Both binaries share one wiring path so the API and the worker always
// agree on schema, queue subject and storage layout.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/notelib/score-intake/internal/config"
	"github.com/notelib/score-intake/internal/core/ports"
	"github.com/notelib/score-intake/internal/core/usecase"
	"github.com/notelib/score-intake/internal/events"
	"github.com/notelib/score-intake/internal/infrastructure/analyzer/pdfstruct"
	"github.com/notelib/score-intake/internal/infrastructure/commit"
	"github.com/notelib/score-intake/internal/infrastructure/extractor/remote"
	"github.com/notelib/score-intake/internal/infrastructure/queue/nats"
	"github.com/notelib/score-intake/internal/infrastructure/repository/postgres"
	"github.com/notelib/score-intake/internal/infrastructure/resilience"
	"github.com/notelib/score-intake/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Repo      ports.SessionRepository
	Bus       *events.Bus
	Relay     *nats.ProgressRelay
	IngestUC  ports.SessionIngestor
	ProcessUC ports.SessionProcessor
	ReviewUC  ports.SessionReviewer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSessionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	catalog := postgres.NewPieceRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	extractor := remote.New(cfg.ExtractorURL,
		remote.WithTimeout(time.Duration(cfg.ExtractorTimeoutSeconds)*time.Second),
		remote.WithResilienceExecutor(executor),
	)
	committer := commit.New(cfg.LibraryURL,
		commit.WithTimeout(time.Duration(cfg.LibraryTimeoutSeconds)*time.Second),
		commit.WithResilienceExecutor(executor),
	)

	analyzer := pdfstruct.New(cfg.Analyzer, logger)
	bus := events.NewBus(logger)

	// The pipeline publishes progress onto NATS; the API bridges the
	// subject back into its local bus so SSE works across processes.
	relay := nats.NewProgressRelay(queue, cfg.NATSProgressSubject)

	ingestUC := usecase.NewIngestSessionUseCase(repo, storage, queue)
	processUC := usecase.NewProcessSessionUseCase(repo, catalog, storage, analyzer, extractor, relay, logger)
	reviewUC := usecase.NewReviewSessionUseCase(repo, catalog, storage, committer, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue: queue,
		Repo:  repo,
		Bus:   bus,
		Relay: relay,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		ReviewUC:  reviewUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
