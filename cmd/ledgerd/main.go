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

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	fxhttp "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx/http"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/journals"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/app"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/inventory"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/observability"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/pettycash"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/cache"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/db"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/receipts"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/sidechannel"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	slog.SetDefault(logger)

	if cfg.MigrateOnStart {
		if err := migrateUp(cfg.PGDSN, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	checks := map[string]app.Pinger{"postgres": dbpool}
	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, fx shared cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		checks["redis"] = app.RedisPinger{Client: client}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	pipeline, err := app.BuildPipeline(cfg, logger, dbpool, redisClient, metrics)
	if err != nil {
		logger.Error("build pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	queue := sidechannel.NewQueue(cfg.SidechannelWorkers, logger,
		sidechannel.WithMetrics(metrics.Jobs()))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	var chargeSink receipts.ChargeSink = pipeline.Generator
	if cfg.SidechannelAsynq {
		client, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init asynq client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		chargeSink = client
		logger.Info("intercompany charges routed through asynq")
	}

	receiptService := receipts.NewService(pipeline.Store, pipeline.Generator, chargeSink, queue, logger)
	pettyCashService := pettycash.NewService(pettycash.NewRepository(dbpool), pipeline.Store, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), pipeline.Store, pipeline.Audit, logger)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		EventsHandler:    events.NewHandler(logger, pipeline.Store),
		JournalsHandler:  journals.NewHandler(logger, pipeline.Ledger),
		ReceiptsHandler:  receipts.NewHandler(logger, receiptService),
		FXHandler:        fxhttp.NewHandler(logger, pipeline.Rates),
		PettyCashHandler: pettycash.NewHandler(logger, pettyCashService),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Checks:           checks,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if err := queue.Close(shutdownCtx); err != nil {
		logger.Warn("side-channel tasks still running at shutdown", slog.Any("error", err))
	}
}

func migrateUp(dsn string, logger *slog.Logger) error {
	migrator, err := db.NewMigrator(dsn, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("migrator close", slog.Any("error", err))
		}
	}()
	return migrator.Up()
}
