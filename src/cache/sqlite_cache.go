package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mindroute-ai/mindroute/src/models"
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	fingerprint TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	provider TEXT NOT NULL,
	bucket TEXT NOT NULL,
	cost_usd REAL NOT NULL,
	created_at DATETIME NOT NULL,
	ttl_seconds INTEGER NOT NULL,
	hit_count INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteCache is the persistent tier. Eviction is TTL-only: expired
// rows are treated as misses on read and swept lazily on write.
type SQLiteCache struct {
	db *sql.DB

	hits   atomic.Int64
	misses atomic.Int64
}

func NewSQLiteCache(db *sql.DB) (*SQLiteCache, error) {
	if _, err := db.Exec(createCacheTable); err != nil {
		return nil, fmt.Errorf("migrate cache table: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Name() string {
	return models.TierPersistent
}

func (c *SQLiteCache) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	var (
		entry      models.CacheEntry
		ttlSeconds int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT fingerprint, text, provider, bucket, cost_usd, created_at, ttl_seconds, hit_count
		 FROM cache_entries WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&entry.Fingerprint, &entry.Text, &entry.Provider, &entry.Bucket,
		&entry.CostUSD, &entry.CreatedAt, &ttlSeconds, &entry.HitCount)

	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	entry.TTL = time.Duration(ttlSeconds) * time.Second
	if entry.Expired(time.Now()) {
		c.misses.Add(1)
		return nil, nil
	}

	c.hits.Add(1)
	entry.HitCount++
	_, _ = c.db.ExecContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1 WHERE fingerprint = ?`,
		fingerprint)

	return &entry, nil
}

func (c *SQLiteCache) Set(ctx context.Context, entry *models.CacheEntry) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries
		 (fingerprint, text, provider, bucket, cost_usd, created_at, ttl_seconds, hit_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Fingerprint, entry.Text, entry.Provider, string(entry.Bucket),
		entry.CostUSD, entry.CreatedAt.UTC(), int64(entry.TTL.Seconds()), entry.HitCount,
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}

	// Opportunistic sweep of expired rows.
	_, _ = c.db.ExecContext(ctx,
		`DELETE FROM cache_entries
		 WHERE (julianday('now') - julianday(created_at)) * 86400 > ttl_seconds`)

	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, fingerprint string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Stats() models.TierStats {
	var count int64
	_ = c.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count)

	return models.TierStats{
		Tier:    c.Name(),
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Close is a no-op; the shared database handle is owned by the caller.
func (c *SQLiteCache) Close() error {
	return nil
}
