package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/coa"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/journals"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/mappings"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/directory"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/integration"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/intercompany"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/observability"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// Pipeline is the posting core shared by the server, the worker and the CLI.
type Pipeline struct {
	Chart       *coa.Chart
	Directory   *directory.Repository
	Accounts    *mappings.Resolver
	Rates       *fx.Resolver
	Ledger      *journals.Service
	Store       *events.Store
	Generator   *intercompany.Generator
	Audit       *shared.AuditLogger
	Idempotency *shared.IdempotencyStore
}

// BuildPipeline wires the postgres-backed posting core. redisClient and
// metrics may be nil.
func BuildPipeline(cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics) (*Pipeline, error) {
	fallback, err := cfg.FallbackRates()
	if err != nil {
		return nil, err
	}
	retry := shared.DefaultRetryPolicy()
	retry.Attempts = uint64(cfg.FXRetryAttempts)

	chart := coa.Default()
	dir := directory.NewRepository(pool)
	audit := shared.NewAuditLogger(pool)

	accounts := mappings.NewResolver(mappings.NewRepository(pool), dir, chart, logger).
		WithRetryPolicy(retry)

	fxOpts := []fx.Option{fx.WithFallbackRates(fallback), fx.WithRetryPolicy(retry)}
	if redisClient != nil && cfg.FXRedisTTL > 0 {
		fxOpts = append(fxOpts, fx.WithSharedCache(fx.NewRedisCache(redisClient, cfg.FXRedisTTL)))
	}
	if metrics != nil {
		fxOpts = append(fxOpts, fx.WithObserver(metrics))
	}
	var provider fx.Provider
	if cfg.FXBotURL != "" {
		provider = fx.NewBOTClient(cfg.FXBotURL, cfg.FXBotClientID, &http.Client{Timeout: 10 * time.Second})
	}
	rates := fx.NewResolver(fx.NewCache(cfg.FXCacheTTL, cfg.FXCacheMaxEntries), fx.NewRepository(pool), provider,
		logger, fxOpts...)

	ledgerOpts := []journals.Option{
		journals.WithRates(rates),
		journals.WithAudit(audit),
		journals.WithLogger(logger.With(slog.String("component", "journals"))),
	}
	if metrics != nil {
		ledgerOpts = append(ledgerOpts, journals.WithObserver(metrics))
	}
	ledger := journals.NewService(journals.NewRepository(pool), chart, ledgerOpts...)

	handlers := integration.NewHandlers(accounts, rates, dir, dir, logger)
	store := events.NewStore(events.NewRepository(pool), handlers, ledger, logger)
	if metrics != nil {
		store = store.WithObserver(metrics)
	}

	return &Pipeline{
		Chart:       chart,
		Directory:   dir,
		Accounts:    accounts,
		Rates:       rates,
		Ledger:      ledger,
		Store:       store,
		Generator:   intercompany.NewGenerator(accounts, intercompany.NewRepository(pool), logger),
		Audit:       audit,
		Idempotency: shared.NewIdempotencyStore(pool),
	}, nil
}

// RedisPinger adapts a go-redis client to the /healthz check.
type RedisPinger struct{ Client *redis.Client }

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
