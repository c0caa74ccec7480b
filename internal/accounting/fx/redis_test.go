package fx

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, ttl), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, mr := newTestRedisCache(t, time.Hour)
	ctx := context.Background()
	snap := Snapshot{From: "USD", To: BaseCurrency, Rate: decimal.RequireFromString("36.25"), Date: Day(march), Source: SourceBOT}
	require.NoError(t, cache.Set(ctx, "USD|2024-03-15", snap))

	got, ok, err := cache.Get(ctx, "USD|2024-03-15")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Rate.Equal(snap.Rate))
	require.Equal(t, SourceBOT, got.Source)

	mr.FastForward(2 * time.Hour)
	_, ok, err = cache.Get(ctx, "USD|2024-03-15")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolverUsesSharedCache(t *testing.T) {
	cache, _ := newTestRedisCache(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, cacheKey("EUR", Day(march)), Snapshot{From: "EUR", To: BaseCurrency, Rate: decimal.RequireFromString("39.5"), Date: Day(march), Source: SourceAPI}))

	provider := &stubProvider{rate: decimal.NewFromInt(1)}
	r := NewResolver(NewCache(time.Hour, 10), nil, provider, nil, WithSharedCache(cache))
	snap, err := r.Resolve(ctx, "EUR", march)
	require.NoError(t, err)
	require.Equal(t, SourceAPI, snap.Source)
	require.Zero(t, provider.calls.Load())
}
