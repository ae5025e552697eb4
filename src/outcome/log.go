// Package outcome persists the append-only RoutingDecision log the
// adaptation loop learns from. Records are never mutated after append;
// user feedback is the one column joined in later, keyed by request id.
package outcome

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mindroute-ai/mindroute/src/models"
)

// ErrUnknownRequest is returned when feedback references a request id
// the log has never seen.
var ErrUnknownRequest = errors.New("unknown request id")

const createDecisionsTable = `
CREATE TABLE IF NOT EXISTS routing_decisions (
	request_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	cache_tier TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL DEFAULT '',
	bucket TEXT NOT NULL DEFAULT '',
	complexity_score REAL NOT NULL,
	cost_usd REAL NOT NULL,
	latency_ms INTEGER NOT NULL,
	tier_hits TEXT NOT NULL DEFAULT '{}',
	non_cacheable INTEGER NOT NULL DEFAULT 0,
	degraded INTEGER NOT NULL DEFAULT 0,
	snapshot_version INTEGER NOT NULL,
	feedback_rating INTEGER,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON routing_decisions(created_at);
`

// Log is a SQLite-backed OutcomeStore.
type Log struct {
	db *sql.DB
}

func NewLog(db *sql.DB) (*Log, error) {
	if _, err := db.Exec(createDecisionsTable); err != nil {
		return nil, fmt.Errorf("migrate outcome log: %w", err)
	}
	return &Log{db: db}, nil
}

func (l *Log) Append(ctx context.Context, d *models.RoutingDecision) error {
	tierHits, err := json.Marshal(d.TierHits)
	if err != nil {
		return fmt.Errorf("encode tier hits: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO routing_decisions
		 (request_id, session_id, stage, cache_tier, provider, bucket, complexity_score,
		  cost_usd, latency_ms, tier_hits, non_cacheable, degraded, snapshot_version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RequestID, d.SessionID, string(d.Stage), d.CacheTier, d.Provider, string(d.Bucket),
		d.ComplexityScore, d.CostUSD, d.LatencyMS, string(tierHits),
		boolToInt(d.NonCacheable), boolToInt(d.Degraded), d.SnapshotVersion, d.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append routing decision: %w", err)
	}
	return nil
}

func (l *Log) RecentSince(ctx context.Context, since time.Time) ([]models.RoutingDecision, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT request_id, session_id, stage, cache_tier, provider, bucket, complexity_score,
		        cost_usd, latency_ms, tier_hits, non_cacheable, degraded, snapshot_version,
		        feedback_rating, created_at
		 FROM routing_decisions WHERE created_at >= ? ORDER BY created_at ASC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query routing decisions: %w", err)
	}
	defer rows.Close()

	var decisions []models.RoutingDecision
	for rows.Next() {
		var (
			d            models.RoutingDecision
			stage        string
			bucket       string
			tierHits     string
			nonCacheable int
			degraded     int
			rating       sql.NullInt64
		)
		if err := rows.Scan(&d.RequestID, &d.SessionID, &stage, &d.CacheTier, &d.Provider,
			&bucket, &d.ComplexityScore, &d.CostUSD, &d.LatencyMS, &tierHits,
			&nonCacheable, &degraded, &d.SnapshotVersion, &rating, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan routing decision: %w", err)
		}
		d.Stage = models.Stage(stage)
		d.Bucket = models.Bucket(bucket)
		d.NonCacheable = nonCacheable != 0
		d.Degraded = degraded != 0
		if rating.Valid {
			r := int(rating.Int64)
			d.FeedbackRating = &r
		}
		if tierHits != "" {
			_ = json.Unmarshal([]byte(tierHits), &d.TierHits)
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func (l *Log) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM routing_decisions WHERE created_at >= ?`, since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count routing decisions: %w", err)
	}
	return count, nil
}

// AttachFeedback joins a user rating onto an existing decision record.
func (l *Log) AttachFeedback(ctx context.Context, requestID string, rating int) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE routing_decisions SET feedback_rating = ? WHERE request_id = ?`,
		rating, requestID,
	)
	if err != nil {
		return fmt.Errorf("attach feedback: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach feedback: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("attach feedback %q: %w", requestID, ErrUnknownRequest)
	}
	return nil
}

// Close is a no-op; the shared database handle is owned by the caller.
func (l *Log) Close() error {
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
