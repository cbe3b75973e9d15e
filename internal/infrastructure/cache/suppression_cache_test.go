package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/infrastructure/config"
)

func setupTestCache(t *testing.T) (*SuppressionCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := &config.RedisConfig{
		URL:          mr.Addr(),
		DB:           0,
		PoolSize:     5,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		CacheTTL:     time.Minute,
	}

	cache, err := NewSuppressionCache(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	return cache, mr
}

func TestSuppressionCache_NewSuppressionCache(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewSuppressionCache(nil, zaptest.NewLogger(t))
		require.Error(t, err)
	})

	t.Run("unreachable server", func(t *testing.T) {
		cfg := &config.RedisConfig{
			URL:         "127.0.0.1:1",
			DialTimeout: 100 * time.Millisecond,
		}
		_, err := NewSuppressionCache(cfg, zaptest.NewLogger(t))
		require.Error(t, err)
	})
}

func TestSuppressionCache_RoundTrip(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	judged := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	state := &drift.SuppressionState{
		LastVerdict:     drift.VerdictNoise,
		JudgedAt:        judged,
		SuppressedUntil: judged.Add(14 * 24 * time.Hour),
		NoiseCount60d:   2,
	}

	_, found, err := cache.Get(ctx, "tenant-a", "PAYER-001", drift.ModuleDenialRate)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "tenant-a", "PAYER-001", drift.ModuleDenialRate, state))

	got, found, err := cache.Get(ctx, "tenant-a", "PAYER-001", drift.ModuleDenialRate)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, drift.VerdictNoise, got.LastVerdict)
	assert.True(t, got.JudgedAt.Equal(judged))
	assert.Equal(t, 2, got.NoiseCount60d)
}

func TestSuppressionCache_KeysAreScoped(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	state := &drift.SuppressionState{LastVerdict: drift.VerdictConfirmed, JudgedAt: time.Now().UTC()}
	require.NoError(t, cache.Set(ctx, "tenant-a", "PAYER-001", drift.ModuleDenialRate, state))

	// Same entity under a different module or tenant must miss.
	_, found, err := cache.Get(ctx, "tenant-a", "PAYER-001", drift.ModulePaymentTiming)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = cache.Get(ctx, "tenant-b", "PAYER-001", drift.ModuleDenialRate)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSuppressionCache_Invalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	state := &drift.SuppressionState{LastVerdict: drift.VerdictNoise, JudgedAt: time.Now().UTC()}
	require.NoError(t, cache.Set(ctx, "tenant-a", "PAYER-001", drift.ModuleDenialRate, state))
	require.NoError(t, cache.Invalidate(ctx, "tenant-a", "PAYER-001", drift.ModuleDenialRate))

	_, found, err := cache.Get(ctx, "tenant-a", "PAYER-001", drift.ModuleDenialRate)
	require.NoError(t, err)
	assert.False(t, found)

	// Invalidating an absent key is not an error.
	require.NoError(t, cache.Invalidate(ctx, "tenant-a", "PAYER-001", drift.ModuleDenialRate))
}

func TestSuppressionCache_EntriesExpire(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	state := &drift.SuppressionState{LastVerdict: drift.VerdictNoise, JudgedAt: time.Now().UTC()}
	require.NoError(t, cache.Set(ctx, "tenant-a", "PAYER-001", drift.ModuleDenialRate, state))

	mr.FastForward(2 * time.Minute)

	_, found, err := cache.Get(ctx, "tenant-a", "PAYER-001", drift.ModuleDenialRate)
	require.NoError(t, err)
	assert.False(t, found)
}
