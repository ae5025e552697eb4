package models

import (
	"context"
	"time"
)

// ProviderClient is the uniform contract every provider adapter
// implements. Translating it into a provider's actual wire protocol is
// the adapter's job.
type ProviderClient interface {
	ID() string
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// CacheTierStore defines one level of the cache hierarchy.
// Get returns (nil, nil) on a miss or an expired entry.
type CacheTierStore interface {
	Name() string
	Get(ctx context.Context, fingerprint string) (*CacheEntry, error)
	Set(ctx context.Context, entry *CacheEntry) error
	Delete(ctx context.Context, fingerprint string) error
	Stats() TierStats
	Close() error
}

// OutcomeStore is the append-only routing decision log.
type OutcomeStore interface {
	Append(ctx context.Context, d *RoutingDecision) error
	RecentSince(ctx context.Context, since time.Time) ([]RoutingDecision, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	AttachFeedback(ctx context.Context, requestID string, rating int) error
	Close() error
}
