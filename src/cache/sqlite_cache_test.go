package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/store"
)

func setupTestSQLite(t *testing.T) *SQLiteCache {
	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache, err := NewSQLiteCache(db)
	require.NoError(t, err)
	return cache
}

func TestSQLiteCache_SetAndGet(t *testing.T) {
	cache := setupTestSQLite(t)
	ctx := context.Background()

	entry := &models.CacheEntry{
		Fingerprint: "fp1",
		Text:        "a durable answer",
		Provider:    "openai-main",
		Bucket:      models.BucketComplex,
		CostUSD:     0.01,
		CreatedAt:   time.Now(),
		TTL:         time.Hour,
	}

	require.NoError(t, cache.Set(ctx, entry))

	got, err := cache.Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Text, got.Text)
	assert.Equal(t, entry.Provider, got.Provider)
	assert.Equal(t, models.BucketComplex, got.Bucket)
	assert.Equal(t, int64(1), got.HitCount)
}

func TestSQLiteCache_Miss(t *testing.T) {
	cache := setupTestSQLite(t)

	got, err := cache.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteCache_TTLExpiry(t *testing.T) {
	cache := setupTestSQLite(t)
	ctx := context.Background()

	entry := &models.CacheEntry{
		Fingerprint: "stale",
		Text:        "old",
		Provider:    "p",
		CreatedAt:   time.Now().Add(-2 * time.Hour),
		TTL:         time.Hour,
	}
	require.NoError(t, cache.Set(ctx, entry))

	got, err := cache.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry must read as a miss")
}

func TestSQLiteCache_Replace(t *testing.T) {
	cache := setupTestSQLite(t)
	ctx := context.Background()

	first := &models.CacheEntry{Fingerprint: "fp", Text: "v1", Provider: "p", CreatedAt: time.Now(), TTL: time.Hour}
	second := &models.CacheEntry{Fingerprint: "fp", Text: "v2", Provider: "p", CreatedAt: time.Now(), TTL: time.Hour}

	require.NoError(t, cache.Set(ctx, first))
	require.NoError(t, cache.Set(ctx, second))

	got, err := cache.Get(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Text)
}

func TestSQLiteCache_Delete(t *testing.T) {
	cache := setupTestSQLite(t)
	ctx := context.Background()

	entry := &models.CacheEntry{Fingerprint: "del", Text: "x", Provider: "p", CreatedAt: time.Now(), TTL: time.Hour}
	require.NoError(t, cache.Set(ctx, entry))
	require.NoError(t, cache.Delete(ctx, "del"))

	got, _ := cache.Get(ctx, "del")
	assert.Nil(t, got)
}

func TestSQLiteCache_Stats(t *testing.T) {
	cache := setupTestSQLite(t)
	ctx := context.Background()

	cache.Set(ctx, &models.CacheEntry{Fingerprint: "a", Text: "x", Provider: "p", CreatedAt: time.Now(), TTL: time.Hour})
	cache.Get(ctx, "a")
	cache.Get(ctx, "missing")

	stats := cache.Stats()
	assert.Equal(t, models.TierPersistent, stats.Tier)
	assert.Equal(t, int64(1), stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
