package models

import "time"

// Stage identifies the pipeline stage that terminated a request.
type Stage string

const (
	StageScanner  Stage = "scanner"
	StageTemplate Stage = "template"
	StageCache    Stage = "cache"
	StageProvider Stage = "provider"
)

// Bucket is the complexity classification driving routing depth.
type Bucket string

const (
	BucketTrivial  Bucket = "trivial"
	BucketModerate Bucket = "moderate"
	BucketComplex  Bucket = "complex"
)

// Verdict is the safety scanner's classification of a raw message.
type Verdict string

const (
	VerdictClear           Verdict = "clear"
	VerdictCrisisElevated  Verdict = "crisis-elevated"
	VerdictCrisisImmediate Verdict = "crisis-immediate"
)

// Cache tier names, in query order.
const (
	TierLocal      = "local"
	TierShared     = "shared"
	TierPersistent = "persistent"
)

// SessionContext is the minimal per-session data supplied by the
// collaborating user subsystem. The router never queries the user
// database itself.
type SessionContext struct {
	SessionID    string   `json:"session_id"`
	TurnCount    int      `json:"turn_count"`
	Locale       string   `json:"locale"`
	RecentTopics []string `json:"recent_topics,omitempty"`
	FeedbackID   string   `json:"feedback_id,omitempty"`
}

// RouteRequest is the inbound call contract.
type RouteRequest struct {
	Message string         `json:"message" binding:"required"`
	Session SessionContext `json:"session"`
}

// Response is what the caller always receives, well-formed even when
// every provider is exhausted.
type Response struct {
	RequestID       string        `json:"request_id"`
	Text            string        `json:"text"`
	Stage           Stage         `json:"stage"`
	CacheTier       string        `json:"cache_tier,omitempty"`
	Provider        string        `json:"provider,omitempty"`
	Cacheable       bool          `json:"cacheable"`
	Confidence      float64       `json:"confidence"`
	CostUSD         float64       `json:"cost_usd"`
	Latency         time.Duration `json:"latency"`
	SnapshotVersion int64         `json:"snapshot_version"`
	Timestamp       time.Time     `json:"timestamp"`
}

// RoutingDecision is the immutable outcome record appended to the
// outcome log once per request. The log is the single source of truth
// for the adaptation loop.
type RoutingDecision struct {
	RequestID       string          `json:"request_id"`
	SessionID       string          `json:"session_id"`
	Stage           Stage           `json:"stage"`
	CacheTier       string          `json:"cache_tier,omitempty"`
	Provider        string          `json:"provider,omitempty"`
	Bucket          Bucket          `json:"bucket,omitempty"`
	ComplexityScore float64         `json:"complexity_score"`
	CostUSD         float64         `json:"cost_usd"`
	LatencyMS       int64           `json:"latency_ms"`
	TierHits        map[string]bool `json:"tier_hits,omitempty"`
	NonCacheable    bool            `json:"non_cacheable"`
	Degraded        bool            `json:"degraded"`
	SnapshotVersion int64           `json:"snapshot_version"`
	FeedbackRating  *int            `json:"feedback_rating,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CacheEntry is the value stored per fingerprint in every tier.
type CacheEntry struct {
	Fingerprint string        `json:"fingerprint"`
	Text        string        `json:"text"`
	Provider    string        `json:"provider"`
	Bucket      Bucket        `json:"bucket"`
	CostUSD     float64       `json:"cost_usd"`
	CreatedAt   time.Time     `json:"created_at"`
	TTL         time.Duration `json:"ttl"`
	HitCount    int64         `json:"hit_count"`
}

// Expired reports whether the entry is past its TTL at time now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Completion is the uniform result every provider adapter returns.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Feedback is the signal the feedback UI/API posts, joined to the
// outcome log by request id.
type Feedback struct {
	RequestID string `json:"request_id" binding:"required"`
	Rating    int    `json:"rating" binding:"min=-1,max=1"`
}

// TemplateMatch is a pattern-table hit with its confidence.
type TemplateMatch struct {
	Pattern    string
	Text       string
	Confidence float64
}

// TierStats are per-tier hit/miss counters surfaced on the health
// endpoint.
type TierStats struct {
	Tier    string `json:"tier"`
	Entries int64  `json:"entries"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}
