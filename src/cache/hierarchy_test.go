package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mindroute-ai/mindroute/src/mocks"
	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/safety"
)

// stubTier is an in-memory tier with a controllable name and failure
// mode, used to exercise hierarchy ordering.
type stubTier struct {
	name    string
	mu      sync.Mutex
	entries map[string]*models.CacheEntry
	fail    bool
}

func newStubTier(name string) *stubTier {
	return &stubTier{name: name, entries: make(map[string]*models.CacheEntry)}
}

func (s *stubTier) Name() string { return s.name }

func (s *stubTier) Get(_ context.Context, fp string) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("tier down")
	}
	entry, ok := s.entries[fp]
	if !ok || entry.Expired(time.Now()) {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (s *stubTier) Set(_ context.Context, entry *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("tier down")
	}
	copied := *entry
	s.entries[entry.Fingerprint] = &copied
	return nil
}

func (s *stubTier) Delete(_ context.Context, fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, fp)
	return nil
}

func (s *stubTier) Stats() models.TierStats { return models.TierStats{Tier: s.name} }

func (s *stubTier) Close() error { return nil }

func freshEntry(fp, text string) *models.CacheEntry {
	return &models.CacheEntry{
		Fingerprint: fp,
		Text:        text,
		Provider:    "openai-main",
		Bucket:      models.BucketModerate,
		CreatedAt:   time.Now(),
		TTL:         time.Hour,
	}
}

func TestHierarchy_Fingerprint(t *testing.T) {
	h := NewHierarchy(time.Second, false)

	a := h.Fingerprint("How are you?", "en-US", "")
	b := h.Fingerprint("  how ARE   you? ", "EN-us", "")
	c := h.Fingerprint("How are you?", "de-DE", "")

	assert.Equal(t, a, b, "normalization must make fingerprints match")
	assert.NotEqual(t, a, c, "locale is part of the fingerprint")
}

func TestHierarchy_FingerprintProviderFlag(t *testing.T) {
	plain := NewHierarchy(time.Second, false)
	scoped := NewHierarchy(time.Second, true)

	assert.Equal(t,
		plain.Fingerprint("hi", "en", "a"),
		plain.Fingerprint("hi", "en", "b"),
		"provider ignored by default")
	assert.NotEqual(t,
		scoped.Fingerprint("hi", "en", "a"),
		scoped.Fingerprint("hi", "en", "b"),
		"provider folded in when configured")
}

func TestHierarchy_FirstHitWins(t *testing.T) {
	local := newStubTier("local")
	shared := newStubTier("shared")
	h := NewHierarchy(time.Second, false, local, shared)
	ctx := context.Background()

	require.NoError(t, local.Set(ctx, freshEntry("fp", "from local")))
	require.NoError(t, shared.Set(ctx, freshEntry("fp", "from shared")))

	res := h.Lookup(ctx, "fp")

	require.NotNil(t, res.Entry)
	assert.Equal(t, "from local", res.Entry.Text)
	assert.Equal(t, "local", res.Tier)
	assert.True(t, res.TierHits["local"])
}

func TestHierarchy_BackfillOnSlowTierHit(t *testing.T) {
	local := newStubTier("local")
	shared := newStubTier("shared")
	persistent := newStubTier("persistent")
	h := NewHierarchy(time.Second, false, local, shared, persistent)
	ctx := context.Background()

	require.NoError(t, persistent.Set(ctx, freshEntry("fp", "durable answer")))

	res := h.Lookup(ctx, "fp")
	require.NotNil(t, res.Entry)
	assert.Equal(t, "persistent", res.Tier)
	assert.False(t, res.TierHits["local"])
	assert.False(t, res.TierHits["shared"])
	assert.True(t, res.TierHits["persistent"])

	// The next read is served by the fastest tier.
	res = h.Lookup(ctx, "fp")
	require.NotNil(t, res.Entry)
	assert.Equal(t, "local", res.Tier)
}

func TestHierarchy_UnavailableTierIsSkipped(t *testing.T) {
	broken := newStubTier("local")
	broken.fail = true
	shared := newStubTier("shared")
	h := NewHierarchy(time.Second, false, broken, shared)
	ctx := context.Background()

	require.NoError(t, shared.Set(ctx, freshEntry("fp", "still reachable")))

	res := h.Lookup(ctx, "fp")
	require.NotNil(t, res.Entry)
	assert.Equal(t, "shared", res.Tier)
}

func TestHierarchy_ErroringTierStillReceivesBackfill(t *testing.T) {
	flaky := &mocks.MockCacheTier{TierName: "local"}
	flaky.On("Get", mock.Anything, "fp").Return(nil, errors.New("tier down"))
	flaky.On("Set", mock.Anything, mock.Anything).Return(errors.New("tier down"))

	shared := newStubTier("shared")
	h := NewHierarchy(time.Second, false, flaky, shared)
	ctx := context.Background()

	require.NoError(t, shared.Set(ctx, freshEntry("fp", "reachable")))

	res := h.Lookup(ctx, "fp")
	require.NotNil(t, res.Entry)
	assert.Equal(t, "shared", res.Tier)
	assert.False(t, res.TierHits["local"])

	// The hit is still offered to the faster tier; its write error is
	// swallowed, not surfaced.
	flaky.AssertExpectations(t)
}

func TestHierarchy_TotalMiss(t *testing.T) {
	h := NewHierarchy(time.Second, false, newStubTier("local"), newStubTier("shared"))

	res := h.Lookup(context.Background(), "absent")

	assert.Nil(t, res.Entry)
	assert.Empty(t, res.Tier)
	assert.False(t, res.TierHits["local"])
	assert.False(t, res.TierHits["shared"])
}

func TestHierarchy_StoreWritesAllTiers(t *testing.T) {
	local := newStubTier("local")
	shared := newStubTier("shared")
	persistent := newStubTier("persistent")
	h := NewHierarchy(time.Second, false, local, shared, persistent)
	ctx := context.Background()

	h.Store(ctx, freshEntry("fp", "write through"))

	for _, tier := range []*stubTier{local, shared, persistent} {
		entry, err := tier.Get(ctx, "fp")
		require.NoError(t, err)
		require.NotNil(t, entry, "tier %s missing entry", tier.name)
		assert.Equal(t, "write through", entry.Text)
	}
}

func TestHierarchy_NeverStoresCrisisResponse(t *testing.T) {
	local := newStubTier("local")
	h := NewHierarchy(time.Second, false, local)
	ctx := context.Background()

	h.Store(ctx, freshEntry("fp-immediate", safety.ImmediateResponse))
	h.Store(ctx, freshEntry("fp-elevated", safety.ElevatedResponse))

	got, _ := local.Get(ctx, "fp-immediate")
	assert.Nil(t, got)
	got, _ = local.Get(ctx, "fp-elevated")
	assert.Nil(t, got)
}

func TestHierarchy_RoundTripByteIdentical(t *testing.T) {
	local := newStubTier("local")
	h := NewHierarchy(time.Second, false, local)
	ctx := context.Background()

	payload := "exact payload ✓ with unicode"
	h.Store(ctx, freshEntry("fp", payload))

	res := h.Lookup(ctx, "fp")
	require.NotNil(t, res.Entry)
	assert.Equal(t, payload, res.Entry.Text)
}
