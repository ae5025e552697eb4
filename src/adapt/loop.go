// Package adapt is the background loop that re-tunes routing policy
// from the outcome log. It is strictly unidirectional: it reads
// decisions and provider profiles, and its only output is a freshly
// published policy snapshot. Safety behavior is never touched.
package adapt

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/mindroute-ai/mindroute/src/config"
	"github.com/mindroute-ai/mindroute/src/logx"
	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/policy"
	"github.com/mindroute-ai/mindroute/src/selector"
)

const (
	thresholdStep = 0.05
	minTrivialMax = 0.05
	ttlGrowth     = 1.25
	ttlShrink     = 0.8
	minTTL        = 5 * time.Minute
	maxTTL        = 48 * time.Hour
)

// ProfileSource yields point-in-time provider stats; the selector
// implements it.
type ProfileSource interface {
	Profiles() []selector.View
}

type Loop struct {
	cfg      config.AdaptationConfig
	outcomes models.OutcomeStore
	profiles ProfileSource
	policies *policy.Store

	lastCycle time.Time
}

func NewLoop(cfg config.AdaptationConfig, outcomes models.OutcomeStore, profiles ProfileSource, policies *policy.Store) *Loop {
	return &Loop{
		cfg:      cfg,
		outcomes: outcomes,
		profiles: profiles,
		policies: policies,
	}
}

// Run drives cycles until ctx is done. A single goroutine runs cycles
// sequentially, so a new cycle never starts before the previous one has
// published. It wakes frequently to honor the batch-size trigger but a
// cycle fires only when the interval has elapsed or enough new records
// have arrived, whichever comes first.
func (l *Loop) Run(ctx context.Context) {
	l.lastCycle = time.Now()

	poll := l.cfg.Interval / 4
	if poll < time.Second {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !l.due(ctx) {
				continue
			}
			l.Cycle(ctx)
		}
	}
}

func (l *Loop) due(ctx context.Context) bool {
	if time.Since(l.lastCycle) >= l.cfg.Interval {
		return true
	}
	count, err := l.outcomes.CountSince(ctx, l.lastCycle)
	if err != nil {
		logx.Warn().Err(err).Msg("adaptation: counting new outcomes failed")
		return false
	}
	return count >= l.cfg.BatchSize
}

// Cycle reads recent outcomes and publishes the next snapshot.
func (l *Loop) Cycle(ctx context.Context) {
	since := l.lastCycle.Add(-l.cfg.Interval * 10)
	decisions, err := l.outcomes.RecentSince(ctx, since)
	if err != nil {
		logx.Warn().Err(err).Msg("adaptation: reading outcome log failed, keeping current policy")
		l.lastCycle = time.Now()
		return
	}

	current := l.policies.Current()
	next := Derive(l.cfg, current, decisions, l.profiles.Profiles())
	published := l.policies.Publish(next)
	l.lastCycle = time.Now()

	logx.Info().
		Int64("version", published.Version).
		Int("outcomes", len(decisions)).
		Float64("trivial_max", published.TrivialMax).
		Strs("ranking", published.ProviderRanking).
		Msg("published policy snapshot")
}

// Derive computes the next snapshot from an immutable base and the
// observed outcomes. Pure: re-running it on the same inputs yields a
// decision-equivalent snapshot, which makes publish races harmless
// (last writer wins).
func Derive(cfg config.AdaptationConfig, base *policy.Snapshot, decisions []models.RoutingDecision, profiles []selector.View) *policy.Snapshot {
	next := base.Clone()

	tuneThresholds(cfg, next, decisions)
	next.ProviderRanking = rankProviders(cfg, profiles, decisions)
	tuneTTLs(next, decisions)

	return next
}

// tuneThresholds keeps the trivial bucket's template-hit rate inside
// the target band by widening or narrowing the bucket.
func tuneThresholds(cfg config.AdaptationConfig, snap *policy.Snapshot, decisions []models.RoutingDecision) {
	trivialTotal := 0
	templateHits := 0
	for _, d := range decisions {
		if d.Bucket != models.BucketTrivial {
			continue
		}
		trivialTotal++
		if d.Stage == models.StageTemplate {
			templateHits++
		}
	}
	if trivialTotal == 0 {
		return
	}

	hitRate := float64(templateHits) / float64(trivialTotal)
	switch {
	case hitRate > cfg.TemplateHitHigh:
		// Plenty of canned answers landing: the bucket can afford to
		// be wider.
		snap.TrivialMax = math.Min(snap.TrivialMax+thresholdStep, snap.ModerateMax-thresholdStep)
	case hitRate < cfg.TemplateHitLow:
		snap.TrivialMax = math.Max(snap.TrivialMax-thresholdStep, minTrivialMax)
	}
}

// rankProviders orders providers by a weighted blend of success rate,
// latency, and cost, nudged by user feedback. Deterministic: ties break
// on base rank, then id.
func rankProviders(cfg config.AdaptationConfig, profiles []selector.View, decisions []models.RoutingDecision) []string {
	if len(profiles) == 0 {
		return nil
	}

	maxLatency, maxCost := 1.0, 1e-9
	for _, p := range profiles {
		maxLatency = math.Max(maxLatency, p.LatencyMS)
		maxCost = math.Max(maxCost, p.CostUSD)
	}

	feedback := feedbackByProvider(decisions)

	type scored struct {
		view  selector.View
		score float64
	}
	ranked := make([]scored, 0, len(profiles))
	for _, p := range profiles {
		score := cfg.SuccessWeight*p.SuccessRate -
			cfg.LatencyWeight*(p.LatencyMS/maxLatency) -
			cfg.CostWeight*(p.CostUSD/maxCost)
		score += 0.1 * feedback[p.ID]
		ranked = append(ranked, scored{view: p, score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].view.BaseRank != ranked[j].view.BaseRank {
			return ranked[i].view.BaseRank < ranked[j].view.BaseRank
		}
		return ranked[i].view.ID < ranked[j].view.ID
	})

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.view.ID
	}
	return ids
}

// feedbackByProvider averages ratings (-1..1) per serving provider.
func feedbackByProvider(decisions []models.RoutingDecision) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, d := range decisions {
		if d.Provider == "" || d.FeedbackRating == nil {
			continue
		}
		sums[d.Provider] += float64(*d.FeedbackRating)
		counts[d.Provider]++
	}
	avg := make(map[string]float64, len(sums))
	for id, sum := range sums {
		avg[id] = sum / float64(counts[id])
	}
	return avg
}

// tuneTTLs balances staleness against hit rate per bucket: buckets that
// rarely hit get longer TTLs, buckets drawing negative feedback on
// cached answers get shorter ones.
func tuneTTLs(snap *policy.Snapshot, decisions []models.RoutingDecision) {
	type bucketStats struct {
		total       int
		cacheHits   int
		negativeFed int
	}
	stats := make(map[models.Bucket]*bucketStats)
	for _, d := range decisions {
		if d.Bucket == "" {
			continue
		}
		s := stats[d.Bucket]
		if s == nil {
			s = &bucketStats{}
			stats[d.Bucket] = s
		}
		s.total++
		if d.Stage == models.StageCache {
			s.cacheHits++
			if d.FeedbackRating != nil && *d.FeedbackRating < 0 {
				s.negativeFed++
			}
		}
	}

	for bucket, s := range stats {
		if s.total < 10 {
			continue
		}
		ttl := snap.TierTTLs[bucket]
		hitRate := float64(s.cacheHits) / float64(s.total)

		if s.negativeFed > 0 && s.negativeFed*4 >= s.cacheHits {
			ttl = time.Duration(float64(ttl) * ttlShrink)
		} else if hitRate < 0.1 {
			ttl = time.Duration(float64(ttl) * ttlGrowth)
		}

		if ttl < minTTL {
			ttl = minTTL
		}
		if ttl > maxTTL {
			ttl = maxTTL
		}
		snap.TierTTLs[bucket] = ttl
	}
}
