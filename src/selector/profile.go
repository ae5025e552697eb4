package selector

import (
	"sync"
	"time"
)

// emaAlpha weights the most recent observation in the rolling stats.
const emaAlpha = 0.3

// Profile tracks one provider's rolling stats and circuit breaker.
// Created at startup from static configuration, updated incrementally
// on every attempt, never deleted while the provider stays configured.
type Profile struct {
	mu sync.Mutex

	id       string
	baseRank int

	successRate float64
	latencyMS   float64
	costUSD     float64
	attempts    int64
	failures    int64

	consecutiveFailures int
	lastFailureAt       time.Time
	openedAt            time.Time
	open                bool
}

// View is an immutable copy of a profile for ranking and reporting.
type View struct {
	ID          string  `json:"id"`
	BaseRank    int     `json:"base_rank"`
	SuccessRate float64 `json:"success_rate"`
	LatencyMS   float64 `json:"latency_ms"`
	CostUSD     float64 `json:"cost_usd"`
	Attempts    int64   `json:"attempts"`
	Failures    int64   `json:"failures"`
	BreakerOpen bool    `json:"breaker_open"`
}

func NewProfile(id string, baseRank int) *Profile {
	return &Profile{
		id:          id,
		baseRank:    baseRank,
		successRate: 1.0,
	}
}

// Available reports whether the breaker permits an attempt at time now.
// An open breaker closes again once the cooldown has elapsed; the next
// failure reopens it immediately.
func (p *Profile) Available(now time.Time, cooldown time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return true
	}
	if now.Sub(p.openedAt) >= cooldown {
		p.open = false
		p.consecutiveFailures = 0
		return true
	}
	return false
}

// RecordSuccess folds a successful attempt into the rolling stats and
// resets the failure streak.
func (p *Profile) RecordSuccess(latency time.Duration, costUSD float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempts++
	p.successRate = ema(p.successRate, 1.0)
	p.latencyMS = ema(p.latencyMS, float64(latency.Milliseconds()))
	p.costUSD = ema(p.costUSD, costUSD)
	p.consecutiveFailures = 0
}

// RecordFailure counts a failed attempt; threshold consecutive failures
// inside the sliding window open the breaker.
func (p *Profile) RecordFailure(now time.Time, threshold int, window time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempts++
	p.failures++
	p.successRate = ema(p.successRate, 0.0)

	if !p.lastFailureAt.IsZero() && now.Sub(p.lastFailureAt) > window {
		p.consecutiveFailures = 0
	}
	p.lastFailureAt = now
	p.consecutiveFailures++

	if p.consecutiveFailures >= threshold {
		p.open = true
		p.openedAt = now
	}
}

func (p *Profile) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	return View{
		ID:          p.id,
		BaseRank:    p.baseRank,
		SuccessRate: p.successRate,
		LatencyMS:   p.latencyMS,
		CostUSD:     p.costUSD,
		Attempts:    p.attempts,
		Failures:    p.failures,
		BreakerOpen: p.open,
	}
}

func ema(current, observation float64) float64 {
	return current*(1-emaAlpha) + observation*emaAlpha
}
