package fx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// SharedCache is a cross-process snapshot cache.
type SharedCache interface {
	Get(ctx context.Context, key string) (Snapshot, bool, error)
	Set(ctx context.Context, key string, snap Snapshot) error
	Delete(ctx context.Context, key string) error
}

// Observer receives the source of every resolved rate.
type Observer interface {
	ObserveFXLookup(source string)
}

// DefaultFallbackTTL is how long a fallback snapshot is reused before the
// store and provider are asked again.
const DefaultFallbackTTL = time.Minute

// Resolver turns (currency, date) into a Snapshot against BaseCurrency. Lookup
// order: local cache, shared cache, fx_rate_cache, provider, configured fallback.
type Resolver struct {
	cache    *Cache
	shared   SharedCache
	store    Store
	provider Provider
	fallback map[string]decimal.Decimal
	// fallbackTTL bounds how long a fallback snapshot shadows the real
	// sources once they recover.
	fallbackTTL time.Duration
	retry       shared.RetryPolicy
	group       singleflight.Group
	observer    Observer
	logger      *slog.Logger
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithSharedCache adds a cross-process cache tier.
func WithSharedCache(c SharedCache) Option {
	return func(r *Resolver) { r.shared = c }
}

// WithFallbackRates sets rates used when every other source fails.
func WithFallbackRates(rates map[string]decimal.Decimal) Option {
	return func(r *Resolver) {
		for cur, rate := range rates {
			if code, err := NormalizeCurrency(cur); err == nil && rate.IsPositive() {
				r.fallback[code] = rate
			}
		}
	}
}

// WithFallbackTTL sets how long a fallback snapshot stays in the local cache.
// Zero disables caching fallback snapshots.
func WithFallbackTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.fallbackTTL = ttl }
}

// WithRetryPolicy overrides the retry policy used for store and provider calls.
func WithRetryPolicy(p shared.RetryPolicy) Option {
	return func(r *Resolver) { r.retry = p }
}

// WithObserver registers a lookup observer.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver wires a resolver. cache must be constructed once per process and
// shared; store and provider may be nil.
func NewResolver(cache *Cache, store Store, provider Provider, logger *slog.Logger, opts ...Option) *Resolver {
	if cache == nil {
		cache = NewCache(0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		cache:       cache,
		store:       store,
		provider:    provider,
		fallback:    make(map[string]decimal.Decimal),
		fallbackTTL: DefaultFallbackTTL,
		retry:       shared.DefaultRetryPolicy(),
		logger:      logger.With(slog.String("component", "fx_resolver")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the rate converting currency into BaseCurrency on date.
func (r *Resolver) Resolve(ctx context.Context, currency string, date time.Time) (Snapshot, error) {
	code, err := NormalizeCurrency(currency)
	if err != nil {
		return Snapshot{}, err
	}
	day := Day(date)
	if code == BaseCurrency {
		r.observe(SourceManual)
		return Identity(day), nil
	}
	key := cacheKey(code, day)
	if snap, ok := r.cache.Get(key); ok {
		r.observe(snap.Source)
		return snap, nil
	}
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.load(ctx, code, day, key)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		snap := res.Val.(Snapshot)
		r.observe(snap.Source)
		return snap, nil
	}
}

// Convert expresses amount in the base currency using snap.
func (r *Resolver) Convert(amount decimal.Decimal, snap Snapshot) decimal.Decimal {
	return snap.Convert(amount)
}

// SetManualRate records an operator-supplied rate, replacing cached values.
func (r *Resolver) SetManualRate(ctx context.Context, currency string, date time.Time, rate decimal.Decimal) (Snapshot, error) {
	return r.Import(ctx, Snapshot{From: currency, Date: date, Rate: rate, Source: SourceManual})
}

// Import persists an externally sourced snapshot and refreshes the caches.
func (r *Resolver) Import(ctx context.Context, snap Snapshot) (Snapshot, error) {
	code, err := NormalizeCurrency(snap.From)
	if err != nil {
		return Snapshot{}, err
	}
	if code == BaseCurrency {
		return Snapshot{}, fmt.Errorf("fx: %s rate is fixed at 1: %w", BaseCurrency, shared.ErrInvalidInput)
	}
	if !snap.Rate.IsPositive() {
		return Snapshot{}, fmt.Errorf("fx: rate must be positive: %w", shared.ErrInvalidInput)
	}
	if !snap.Source.Valid() {
		return Snapshot{}, fmt.Errorf("fx: unknown source %q: %w", snap.Source, shared.ErrInvalidInput)
	}
	snap.From, snap.To, snap.Date = code, BaseCurrency, Day(snap.Date)
	if r.store == nil {
		return Snapshot{}, errors.New("fx: no rate store configured")
	}
	if err := r.store.Upsert(ctx, snap); err != nil {
		return Snapshot{}, err
	}
	key := cacheKey(code, snap.Date)
	r.cache.Invalidate(key)
	if r.shared != nil {
		if err := r.shared.Delete(ctx, key); err != nil {
			r.logger.Warn("fx shared cache delete failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return snap, nil
}

func (r *Resolver) load(ctx context.Context, code string, day time.Time, key string) (Snapshot, error) {
	if r.shared != nil {
		snap, ok, err := r.shared.Get(ctx, key)
		if err != nil {
			r.logger.Warn("fx shared cache read failed", slog.String("key", key), slog.Any("error", err))
		} else if ok {
			r.cache.Put(key, snap)
			return snap, nil
		}
	}
	if r.store != nil {
		snap, err := shared.Retry(ctx, r.retry, func(ctx context.Context) (Snapshot, error) {
			snap, err := r.store.Get(ctx, code, day)
			if errors.Is(err, ErrRateNotFound) {
				return snap, shared.Permanent(err)
			}
			return snap, err
		})
		if err == nil {
			r.remember(ctx, key, snap)
			return snap, nil
		}
		if !errors.Is(err, ErrRateNotFound) {
			r.logger.Warn("fx store lookup failed", slog.String("currency", code), slog.Any("error", err))
		}
	}
	if r.provider != nil {
		snap, err := shared.Retry(ctx, r.retry, func(ctx context.Context) (Snapshot, error) {
			snap, err := r.provider.Fetch(ctx, code, day)
			if errors.Is(err, ErrRateNotFound) {
				return snap, shared.Permanent(err)
			}
			return snap, err
		})
		if err == nil {
			if r.store != nil {
				if err := r.store.Upsert(ctx, snap); err != nil {
					r.logger.Warn("fx store write failed", slog.String("currency", code), slog.Any("error", err))
				}
			}
			r.remember(ctx, key, snap)
			return snap, nil
		}
		r.logger.Warn("fx provider lookup failed", slog.String("currency", code), slog.Time("date", day), slog.Any("error", err))
	}
	if rate, ok := r.fallback[code]; ok {
		snap := Snapshot{From: code, To: BaseCurrency, Rate: rate, Date: day, Source: SourceFallback}
		r.cache.PutFor(key, snap, r.fallbackTTL)
		return snap, nil
	}
	return Snapshot{}, fmt.Errorf("%w: %s on %s", ErrRateUnavailable, code, day.Format(time.DateOnly))
}

func (r *Resolver) remember(ctx context.Context, key string, snap Snapshot) {
	r.cache.Put(key, snap)
	if r.shared == nil {
		return
	}
	if err := r.shared.Set(ctx, key, snap); err != nil {
		r.logger.Warn("fx shared cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (r *Resolver) observe(source Source) {
	if r.observer != nil {
		r.observer.ObserveFXLookup(string(source))
	}
}
