// Package policy holds the tunable routing parameters as immutable,
// versioned snapshots. The adaptation loop publishes new snapshots; the
// request path only ever reads, so no lock guards the hot path.
package policy

import (
	"sync/atomic"
	"time"

	"github.com/mindroute-ai/mindroute/src/models"
)

// Snapshot is an immutable bundle of routing parameters. Never mutate a
// published snapshot; derive a new one and publish it.
type Snapshot struct {
	Version int64

	// Classifier bucket boundaries: score <= TrivialMax is trivial,
	// score <= ModerateMax is moderate, anything above is complex.
	TrivialMax  float64
	ModerateMax float64

	// ProviderRanking is the ordered candidate list, best first.
	ProviderRanking []string

	// TierTTLs are the cache TTLs applied on provider success, per
	// complexity bucket.
	TierTTLs map[models.Bucket]time.Duration

	// TemplateConfidenceFloor is the minimum fuzzy-match confidence for
	// a template hit to terminate the pipeline.
	TemplateConfidenceFloor float64

	CreatedAt time.Time
}

// BucketFor maps a complexity score onto a bucket using this snapshot's
// thresholds.
func (s *Snapshot) BucketFor(score float64) models.Bucket {
	switch {
	case score <= s.TrivialMax:
		return models.BucketTrivial
	case score <= s.ModerateMax:
		return models.BucketModerate
	default:
		return models.BucketComplex
	}
}

// TTLFor returns this snapshot's TTL for a bucket.
func (s *Snapshot) TTLFor(bucket models.Bucket) time.Duration {
	if ttl, ok := s.TierTTLs[bucket]; ok {
		return ttl
	}
	return s.TierTTLs[models.BucketComplex]
}

// Clone returns a deep copy suitable for deriving the next version.
func (s *Snapshot) Clone() *Snapshot {
	next := *s
	next.ProviderRanking = append([]string(nil), s.ProviderRanking...)
	next.TierTTLs = make(map[models.Bucket]time.Duration, len(s.TierTTLs))
	for k, v := range s.TierTTLs {
		next.TierTTLs[k] = v
	}
	return &next
}

// Store publishes and serves snapshots. Publish is last-writer-wins on
// version number; in-flight requests keep the pointer they loaded.
type Store struct {
	current atomic.Pointer[Snapshot]
	version atomic.Int64
}

// NewStore seeds the store with an initial snapshot at version 1.
func NewStore(initial *Snapshot) *Store {
	st := &Store{}
	seed := initial.Clone()
	seed.Version = 1
	seed.CreatedAt = time.Now()
	st.version.Store(1)
	st.current.Store(seed)
	return st
}

// Current returns the latest published snapshot.
func (st *Store) Current() *Snapshot {
	return st.current.Load()
}

// Publish assigns the next version number and swaps the snapshot in
// atomically.
func (st *Store) Publish(next *Snapshot) *Snapshot {
	next.Version = st.version.Add(1)
	next.CreatedAt = time.Now()
	st.current.Store(next)
	return next
}
