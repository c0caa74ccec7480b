package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/integrity"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/app"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/intercompany"
	jobmetrics "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/jobs"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/db"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The worker only records charge batches; it never posts journals, so the
	// account resolver is not needed here.
	generator := intercompany.NewGenerator(nil, intercompany.NewRepository(pool), logger)
	idempotency := shared.NewIdempotencyStore(pool)
	metrics := jobmetrics.NewMetrics(nil)

	chargesJob := jobs.NewIntercompanyChargesJob(generator, idempotency, logger, metrics)
	cleanupJob := &jobs.IdempotencyCleanupJob{Store: idempotency, Logger: logger, Metrics: metrics}
	integrityJob := &jobs.LedgerIntegrityJob{
		Scanner: integrity.NewChecker(integrity.NewRepository(pool), logger),
		Logger:  logger,
		Metrics: metrics,
	}

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(24 * 30)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewLedgerIntegrityTask(0)
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskIntercompanyCharges, Handler: chargesJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 * * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr), slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
