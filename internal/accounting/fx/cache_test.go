package fx

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCacheExpiresEntries(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Minute, 0)
	c.WithNow(func() time.Time { return now })
	c.Put("USD|2024-01-01", Snapshot{Rate: decimal.NewFromInt(35)})

	_, ok := c.Get("USD|2024-01-01")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("USD|2024-01-01")
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestCacheEvictsWhenFull(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Hour, 2)
	c.WithNow(func() time.Time { return now })
	c.Put("a", Snapshot{})
	now = now.Add(time.Second)
	c.Put("b", Snapshot{})
	now = now.Add(time.Second)
	c.Put("c", Snapshot{})

	require.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}
