package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbedSingleIsDeterministic(t *testing.T) {
	svc := NewHashingService(0, 0)
	a, err := svc.EmbedSingle(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := svc.EmbedSingle(context.Background(), "hello world")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, defaultDim)
}

func TestCosineSimilarityIdenticalIsOne(t *testing.T) {
	svc := NewHashingService(0, 0)
	v, err := svc.EmbedSingle(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	sim := svc.CosineSimilarity(v, v)
	require.InDelta(t, 1.0, sim, 0.001)
}

func TestCosineSimilarityDissimilarTextIsLower(t *testing.T) {
	svc := NewHashingService(0, 0)
	a, _ := svc.EmbedSingle(context.Background(), "apples bananas oranges")
	b, _ := svc.EmbedSingle(context.Background(), "quantum entanglement physics")
	same, _ := svc.EmbedSingle(context.Background(), "apples bananas oranges")
	require.Greater(t, svc.CosineSimilarity(a, same), svc.CosineSimilarity(a, b))
}

func TestEmbedBatchMatchesSingle(t *testing.T) {
	svc := NewHashingService(0, 0)
	texts := []string{"first text", "second text", "third text"}
	batch, err := svc.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, text := range texts {
		single, err := svc.EmbedSingle(context.Background(), text)
		require.NoError(t, err)
		require.Equal(t, single, batch[i])
	}
}

func TestEmbedEmptyTextYieldsZeroVector(t *testing.T) {
	svc := NewHashingService(0, 0)
	v, err := svc.EmbedSingle(context.Background(), "")
	require.NoError(t, err)
	for _, x := range v {
		require.Equal(t, float32(0), x)
	}
}
