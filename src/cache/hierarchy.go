// Package cache implements the three-tier cache hierarchy: a
// process-local LRU tier, a shared Redis tier, and a persistent SQLite
// tier, queried in that order with read-through backfill.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/mindroute-ai/mindroute/src/logx"
	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/safety"
)

// Hierarchy queries tiers in fixed order. A tier error is treated as a
// miss on that tier and logged, never surfaced: the next tier (or the
// provider selector) covers it.
type Hierarchy struct {
	tiers           []models.CacheTierStore
	tierTimeout     time.Duration
	includeProvider bool
}

// LookupResult reports where a fingerprint was found and the per-tier
// hit/miss trail for the routing decision.
type LookupResult struct {
	Entry    *models.CacheEntry
	Tier     string
	TierHits map[string]bool
}

func NewHierarchy(tierTimeout time.Duration, includeProvider bool, tiers ...models.CacheTierStore) *Hierarchy {
	if tierTimeout <= 0 {
		tierTimeout = 250 * time.Millisecond
	}
	return &Hierarchy{
		tiers:           tiers,
		tierTimeout:     tierTimeout,
		includeProvider: includeProvider,
	}
}

// Fingerprint hashes the normalized message plus the minimal context
// that affects the answer. Provider identity is folded in only when
// configured; by default a model change does not invalidate entries.
func (h *Hierarchy) Fingerprint(message, locale, provider string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(message)), " ")
	data := normalized + "|" + strings.ToLower(locale)
	if h.includeProvider {
		data += "|" + provider
	}
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Lookup queries tiers in order; the first hit wins and is backfilled
// into every faster tier that missed.
func (h *Hierarchy) Lookup(ctx context.Context, fingerprint string) LookupResult {
	result := LookupResult{TierHits: make(map[string]bool, len(h.tiers))}

	for i, tier := range h.tiers {
		entry, err := h.get(ctx, tier, fingerprint)
		if err != nil {
			logx.Warn().Err(err).Str("tier", tier.Name()).Msg("cache tier unavailable, skipping")
			result.TierHits[tier.Name()] = false
			continue
		}
		if entry == nil {
			result.TierHits[tier.Name()] = false
			continue
		}

		result.TierHits[tier.Name()] = true
		result.Entry = entry
		result.Tier = tier.Name()
		h.backfill(ctx, entry, i)
		return result
	}

	return result
}

// Store writes an entry through every tier. Crisis text is never a
// valid cache value regardless of what the caller passed.
func (h *Hierarchy) Store(ctx context.Context, entry *models.CacheEntry) {
	if entry.Text == safety.ImmediateResponse || entry.Text == safety.ElevatedResponse {
		logx.Error().Str("fingerprint", shortFP(entry.Fingerprint)).Msg("refusing to cache crisis response")
		return
	}

	for _, tier := range h.tiers {
		if err := h.set(ctx, tier, entry); err != nil {
			logx.Warn().Err(err).Str("tier", tier.Name()).Msg("cache tier write failed")
		}
	}
}

// Stats returns per-tier counters for the health endpoint.
func (h *Hierarchy) Stats() []models.TierStats {
	stats := make([]models.TierStats, 0, len(h.tiers))
	for _, tier := range h.tiers {
		stats = append(stats, tier.Stats())
	}
	return stats
}

func (h *Hierarchy) Close() error {
	var firstErr error
	for _, tier := range h.tiers {
		if err := tier.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// backfill writes a hit into all faster tiers that missed.
func (h *Hierarchy) backfill(ctx context.Context, entry *models.CacheEntry, hitIndex int) {
	for i := 0; i < hitIndex; i++ {
		if err := h.set(ctx, h.tiers[i], entry); err != nil {
			logx.Warn().Err(err).Str("tier", h.tiers[i].Name()).Msg("cache backfill failed")
		}
	}
}

func (h *Hierarchy) get(ctx context.Context, tier models.CacheTierStore, fingerprint string) (*models.CacheEntry, error) {
	tctx, cancel := context.WithTimeout(ctx, h.tierTimeout)
	defer cancel()
	return tier.Get(tctx, fingerprint)
}

func (h *Hierarchy) set(ctx context.Context, tier models.CacheTierStore, entry *models.CacheEntry) error {
	tctx, cancel := context.WithTimeout(ctx, h.tierTimeout)
	defer cancel()
	return tier.Set(tctx, entry)
}

func shortFP(fingerprint string) string {
	if len(fingerprint) > 8 {
		return fingerprint[:8]
	}
	return fingerprint
}
