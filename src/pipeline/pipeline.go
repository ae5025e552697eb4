// Package pipeline wires the routing stages together: safety scanner,
// complexity classifier, template matcher, cache hierarchy, provider
// selector. Every request produces exactly one immutable
// RoutingDecision on the outcome log.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mindroute-ai/mindroute/src/cache"
	"github.com/mindroute-ai/mindroute/src/classifier"
	"github.com/mindroute-ai/mindroute/src/logx"
	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/policy"
	"github.com/mindroute-ai/mindroute/src/safety"
	"github.com/mindroute-ai/mindroute/src/selector"
	"github.com/mindroute-ai/mindroute/src/templates"
)

type Pipeline struct {
	scanner    *safety.Scanner
	classifier *classifier.Classifier
	matcher    *templates.Matcher
	hierarchy  *cache.Hierarchy
	selector   *selector.Selector
	policies   *policy.Store
	outcomes   models.OutcomeStore
}

func New(
	scanner *safety.Scanner,
	cls *classifier.Classifier,
	matcher *templates.Matcher,
	hierarchy *cache.Hierarchy,
	sel *selector.Selector,
	policies *policy.Store,
	outcomes models.OutcomeStore,
) *Pipeline {
	return &Pipeline{
		scanner:    scanner,
		classifier: cls,
		matcher:    matcher,
		hierarchy:  hierarchy,
		selector:   sel,
		policies:   policies,
		outcomes:   outcomes,
	}
}

// Route runs one message through the pipeline and always returns a
// well-formed response. The policy snapshot is pinned at entry; a
// publish mid-request never changes this request's parameters.
func (p *Pipeline) Route(ctx context.Context, req *models.RouteRequest) *models.Response {
	started := time.Now()
	requestID := uuid.NewString()
	snap := p.policies.Current()

	// Stage 1: safety. Never skipped, never cached, never delegated.
	if verdict := p.scanner.Scan(req.Message); verdict != models.VerdictClear {
		resp := &models.Response{
			RequestID:       requestID,
			Text:            safety.ResponseFor(verdict),
			Stage:           models.StageScanner,
			Cacheable:       false,
			Confidence:      1.0,
			CostUSD:         0,
			Latency:         time.Since(started),
			SnapshotVersion: snap.Version,
			Timestamp:       time.Now(),
		}
		p.record(ctx, req, resp, classifier.Result{}, nil, true)
		logx.Info().Str("request_id", requestID).Str("verdict", string(verdict)).Msg("crisis short-circuit")
		return resp
	}

	// Stage 2: complexity.
	cls := p.classifier.Classify(req.Message, req.Session, snap)

	// Stage 3: templates, trivial bucket only.
	if cls.Bucket == models.BucketTrivial {
		if match, ok := p.matcher.Match(req.Message, snap.TemplateConfidenceFloor); ok {
			resp := &models.Response{
				RequestID:       requestID,
				Text:            match.Text,
				Stage:           models.StageTemplate,
				Cacheable:       false,
				Confidence:      match.Confidence,
				CostUSD:         0,
				Latency:         time.Since(started),
				SnapshotVersion: snap.Version,
				Timestamp:       time.Now(),
			}
			p.record(ctx, req, resp, cls, nil, false)
			return resp
		}
	}

	// Stage 4: cache hierarchy.
	topProvider := ""
	if len(snap.ProviderRanking) > 0 {
		topProvider = snap.ProviderRanking[0]
	}
	fingerprint := p.hierarchy.Fingerprint(req.Message, req.Session.Locale, topProvider)

	lookup := p.hierarchy.Lookup(ctx, fingerprint)
	if lookup.Entry != nil {
		resp := &models.Response{
			RequestID:       requestID,
			Text:            lookup.Entry.Text,
			Stage:           models.StageCache,
			CacheTier:       lookup.Tier,
			Provider:        lookup.Entry.Provider,
			Cacheable:       true,
			Confidence:      0.9,
			CostUSD:         0,
			Latency:         time.Since(started),
			SnapshotVersion: snap.Version,
			Timestamp:       time.Now(),
		}
		p.record(ctx, req, resp, cls, lookup.TierHits, false)
		return resp
	}

	// Stage 5: providers. Detached from request cancellation: if the
	// session disconnects we let the call complete and keep the result
	// for the cache; only the response delivery is wasted.
	pctx := context.WithoutCancel(ctx)
	out := p.selector.Execute(pctx, req.Message, snap.ProviderRanking)

	if !out.Degraded {
		p.hierarchy.Store(pctx, &models.CacheEntry{
			Fingerprint: fingerprint,
			Text:        out.Text,
			Provider:    out.Provider,
			Bucket:      cls.Bucket,
			CostUSD:     out.CostUSD,
			CreatedAt:   time.Now(),
			TTL:         snap.TTLFor(cls.Bucket),
		})
	}

	confidence := 0.9
	if out.Degraded {
		confidence = 0.2
	}
	resp := &models.Response{
		RequestID:       requestID,
		Text:            out.Text,
		Stage:           models.StageProvider,
		Provider:        out.Provider,
		Cacheable:       !out.Degraded,
		Confidence:      confidence,
		CostUSD:         out.CostUSD,
		Latency:         time.Since(started),
		SnapshotVersion: snap.Version,
		Timestamp:       time.Now(),
	}
	p.record(ctx, req, resp, cls, lookup.TierHits, false)
	return resp
}

// Stats exposes tier counters for the health endpoint.
func (p *Pipeline) Stats() []models.TierStats {
	return p.hierarchy.Stats()
}

func (p *Pipeline) record(ctx context.Context, req *models.RouteRequest, resp *models.Response, cls classifier.Result, tierHits map[string]bool, nonCacheable bool) {
	decision := &models.RoutingDecision{
		RequestID:       resp.RequestID,
		SessionID:       req.Session.SessionID,
		Stage:           resp.Stage,
		CacheTier:       resp.CacheTier,
		Provider:        resp.Provider,
		Bucket:          cls.Bucket,
		ComplexityScore: cls.Score,
		CostUSD:         resp.CostUSD,
		LatencyMS:       resp.Latency.Milliseconds(),
		TierHits:        tierHits,
		NonCacheable:    nonCacheable,
		Degraded:        resp.Stage == models.StageProvider && resp.Provider == "",
		SnapshotVersion: resp.SnapshotVersion,
		CreatedAt:       time.Now(),
	}

	// The log write must survive request cancellation.
	if err := p.outcomes.Append(context.WithoutCancel(ctx), decision); err != nil {
		logx.Warn().Err(err).Str("request_id", resp.RequestID).Msg("outcome log append failed")
	}
}
