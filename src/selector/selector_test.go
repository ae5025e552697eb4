package selector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mindroute-ai/mindroute/src/config"
	"github.com/mindroute-ai/mindroute/src/mocks"
	"github.com/mindroute-ai/mindroute/src/models"
)

// fakeProvider is a scriptable adapter for selector tests.
type fakeProvider struct {
	id    string
	fail  bool
	calls atomic.Int64
	text  string
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) Complete(_ context.Context, _ string) (*models.Completion, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("provider unavailable")
	}
	return &models.Completion{
		Text:         f.text,
		Model:        "gpt-4o-mini",
		InputTokens:  20,
		OutputTokens: 40,
	}, nil
}

func testBreaker() config.BreakerConfig {
	return config.BreakerConfig{
		FailureThreshold: 3,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
	}
}

func newTestSelector(brk config.BreakerConfig, fakes ...*fakeProvider) *Selector {
	cfgs := make([]config.ProviderConfig, 0, len(fakes))
	clients := make(map[string]models.ProviderClient, len(fakes))
	for i, f := range fakes {
		cfgs = append(cfgs, config.ProviderConfig{ID: f.id, BaseRank: i + 1, Timeout: time.Second})
		clients[f.id] = f
	}
	return New(cfgs, clients, brk)
}

func TestSelector_FirstCandidateSucceeds(t *testing.T) {
	a := &fakeProvider{id: "a", text: "answer from a"}
	b := &fakeProvider{id: "b", text: "answer from b"}
	s := newTestSelector(testBreaker(), a, b)

	out := s.Execute(context.Background(), "prompt", []string{"a", "b"})

	assert.Equal(t, "a", out.Provider)
	assert.Equal(t, "answer from a", out.Text)
	assert.False(t, out.Degraded)
	assert.Greater(t, out.CostUSD, 0.0)
	assert.Equal(t, int64(0), b.calls.Load())
}

func TestSelector_FallsThroughToNextCandidate(t *testing.T) {
	a := &fakeProvider{id: "a", fail: true}
	b := &fakeProvider{id: "b", text: "answer from b"}
	s := newTestSelector(testBreaker(), a, b)

	for i := 0; i < 2; i++ {
		out := s.Execute(context.Background(), "prompt", []string{"a", "b"})
		assert.Equal(t, "b", out.Provider)
		assert.Equal(t, "answer from b", out.Text)
	}

	view := s.Profile("a").View()
	assert.Equal(t, int64(2), view.Failures, "failure count increases monotonically")
	assert.False(t, view.BreakerOpen)
}

func TestSelector_BreakerOpensAndSkips(t *testing.T) {
	a := &fakeProvider{id: "a", fail: true}
	b := &fakeProvider{id: "b", text: "b wins"}
	s := newTestSelector(testBreaker(), a, b)

	for i := 0; i < 3; i++ {
		s.Execute(context.Background(), "prompt", []string{"a", "b"})
	}

	require.True(t, s.Profile("a").View().BreakerOpen)
	callsBefore := a.calls.Load()

	out := s.Execute(context.Background(), "prompt", []string{"a", "b"})
	assert.Equal(t, "b", out.Provider)
	assert.Equal(t, callsBefore, a.calls.Load(), "open breaker must skip the provider entirely")
}

func TestSelector_BreakerClosesAfterCooldown(t *testing.T) {
	a := &fakeProvider{id: "a", fail: true}
	s := newTestSelector(testBreaker(), a)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		s.Execute(context.Background(), "prompt", []string{"a"})
	}
	require.True(t, s.Profile("a").View().BreakerOpen)

	// Cooldown elapses and the provider has recovered.
	now = now.Add(31 * time.Second)
	a.fail = false
	a.text = "recovered"

	out := s.Execute(context.Background(), "prompt", []string{"a"})
	assert.Equal(t, "a", out.Provider)
	assert.Equal(t, "recovered", out.Text)
	assert.False(t, s.Profile("a").View().BreakerOpen)
}

func TestSelector_ExhaustionReturnsDegradedFallback(t *testing.T) {
	a := &fakeProvider{id: "a", fail: true}
	b := &fakeProvider{id: "b", fail: true}
	s := newTestSelector(testBreaker(), a, b)

	out := s.Execute(context.Background(), "prompt", []string{"a", "b"})

	assert.True(t, out.Degraded)
	assert.Empty(t, out.Provider)
	assert.Equal(t, FallbackResponse, out.Text)
}

func TestSelector_PassesPromptThroughUnchanged(t *testing.T) {
	client := &mocks.MockProviderClient{ProviderID: "a"}
	client.On("Complete", mock.Anything, "compare journaling and meditation").
		Return(&models.Completion{Text: "ok", Model: "gpt-4o-mini", InputTokens: 10, OutputTokens: 10}, nil)

	s := New(
		[]config.ProviderConfig{{ID: "a", BaseRank: 1, Timeout: time.Second}},
		map[string]models.ProviderClient{"a": client},
		testBreaker(),
	)

	out := s.Execute(context.Background(), "compare journaling and meditation", []string{"a"})

	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, "a", out.Provider)
	client.AssertExpectations(t)
}

func TestSelector_UnknownProviderInRankingIsIgnored(t *testing.T) {
	b := &fakeProvider{id: "b", text: "ok"}
	s := newTestSelector(testBreaker(), b)

	out := s.Execute(context.Background(), "prompt", []string{"ghost", "b"})

	assert.Equal(t, "b", out.Provider)
}

func TestProfile_EMAMovesTowardObservations(t *testing.T) {
	p := NewProfile("a", 1)

	p.RecordSuccess(100*time.Millisecond, 0.01)
	first := p.View()
	p.RecordSuccess(100*time.Millisecond, 0.01)
	second := p.View()

	assert.Equal(t, 1.0, first.SuccessRate)
	assert.Greater(t, second.LatencyMS, first.LatencyMS, "latency EMA converges upward from zero")
	assert.Greater(t, second.CostUSD, first.CostUSD)
}

func TestProfile_FailureWindowResetsStreak(t *testing.T) {
	p := NewProfile("a", 1)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	p.RecordFailure(base, 3, time.Minute)
	p.RecordFailure(base.Add(10*time.Second), 3, time.Minute)
	// Third failure lands outside the sliding window: streak restarts.
	p.RecordFailure(base.Add(2*time.Minute), 3, time.Minute)

	assert.False(t, p.View().BreakerOpen)
}
