package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"promptopt/internal/block"
	"promptopt/internal/embedding"
)

func TestUtilityHigherForMatchingContentAndRecency(t *testing.T) {
	svc := embedding.NewHashingService(0, 0)
	scorer := New(svc, DefaultWeights)

	query, _ := svc.EmbedSingle(context.Background(), "deploy the service to production")

	recent := block.New(block.User, "deploy the service to production now", 10, false, 0.5, "user")
	recent.Timestamp = time.Now()
	recentEmb, _ := svc.EmbedSingle(context.Background(), recent.Content)

	stale := block.New(block.User, "a completely unrelated topic about gardening", 10, false, 0.5, "user")
	stale.Timestamp = time.Now().Add(-90 * 24 * time.Hour)
	staleEmb, _ := svc.EmbedSingle(context.Background(), stale.Content)

	now := time.Now()
	recentScore := scorer.Utility(recent, query, recentEmb, now)
	staleScore := scorer.Utility(stale, query, staleEmb, now)

	require.Greater(t, recentScore, staleScore)
	require.GreaterOrEqual(t, recentScore, 0.0)
	require.LessOrEqual(t, recentScore, 1.0)
}

func TestUtilityRewardsSourceTrust(t *testing.T) {
	svc := embedding.NewHashingService(0, 0)
	scorer := New(svc, DefaultWeights)
	emb, _ := svc.EmbedSingle(context.Background(), "plain text")

	systemBlock := block.New(block.System, "plain text", 5, true, 1.0, "system")
	inferredBlock := block.New(block.Doc, "plain text", 5, false, 0.5, "inferred")

	now := time.Now()
	systemScore := scorer.Utility(systemBlock, emb, emb, now)
	inferredScore := scorer.Utility(inferredBlock, emb, emb, now)
	require.Greater(t, systemScore, inferredScore)
}

func TestConstraintScoreSaturatesAtOne(t *testing.T) {
	content := "MUST MUST MUST MUST MUST MUST MUST MUST MUST MUST"
	require.Equal(t, 1.0, constraintScore(content))
}

func TestIdentifierScoreDetectsUUIDAndURL(t *testing.T) {
	content := "see 123e4567-e89b-12d3-a456-426614174000 and https://example.com/page"
	score := identifierScore(content)
	require.Greater(t, score, 0.0)
}

func TestEntityScoreCountsProperNounsNumbersAndDates(t *testing.T) {
	content := "Alice met Bob on 2024-01-15 with 42 apples"
	score := entityScore(content)
	require.Greater(t, score, 0.0)
	require.LessOrEqual(t, score, 1.0)
}
