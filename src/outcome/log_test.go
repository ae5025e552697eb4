package outcome

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/store"
)

func setupLog(t *testing.T) *Log {
	db, err := store.Open(filepath.Join(t.TempDir(), "outcomes.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log, err := NewLog(db)
	require.NoError(t, err)
	return log
}

func decisionFor(requestID string, stage models.Stage) *models.RoutingDecision {
	return &models.RoutingDecision{
		RequestID:       requestID,
		SessionID:       "session-1",
		Stage:           stage,
		Provider:        "openai-main",
		Bucket:          models.BucketModerate,
		ComplexityScore: 0.42,
		CostUSD:         0.003,
		LatencyMS:       120,
		TierHits:        map[string]bool{"local": false, "shared": true},
		SnapshotVersion: 3,
		CreatedAt:       time.Now(),
	}
}

func TestLog_AppendAndRecentSince(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, decisionFor("req-1", models.StageProvider)))
	require.NoError(t, log.Append(ctx, decisionFor("req-2", models.StageCache)))

	decisions, err := log.RecentSince(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	assert.Equal(t, "req-1", decisions[0].RequestID)
	assert.Equal(t, models.StageProvider, decisions[0].Stage)
	assert.Equal(t, models.BucketModerate, decisions[0].Bucket)
	assert.True(t, decisions[0].TierHits["shared"])
	assert.False(t, decisions[0].TierHits["local"])
	assert.Equal(t, int64(3), decisions[0].SnapshotVersion)
}

func TestLog_RecentSinceFiltersByTime(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()

	old := decisionFor("req-old", models.StageTemplate)
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, log.Append(ctx, old))
	require.NoError(t, log.Append(ctx, decisionFor("req-new", models.StageProvider)))

	decisions, err := log.RecentSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "req-new", decisions[0].RequestID)
}

func TestLog_CountSince(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, log.Append(ctx, decisionFor(id, models.StageCache)))
	}

	count, err := log.CountSince(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestLog_AttachFeedback(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, decisionFor("req-1", models.StageProvider)))
	require.NoError(t, log.AttachFeedback(ctx, "req-1", 1))

	decisions, err := log.RecentSince(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	require.NotNil(t, decisions[0].FeedbackRating)
	assert.Equal(t, 1, *decisions[0].FeedbackRating)
}

func TestLog_AttachFeedbackUnknownRequest(t *testing.T) {
	log := setupLog(t)

	err := log.AttachFeedback(context.Background(), "ghost", -1)
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestLog_DuplicateAppendRejected(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, decisionFor("req-1", models.StageProvider)))
	assert.Error(t, log.Append(ctx, decisionFor("req-1", models.StageProvider)),
		"records are immutable once appended")
}
