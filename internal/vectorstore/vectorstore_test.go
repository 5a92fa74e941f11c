package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"promptopt/internal/block"
	"promptopt/internal/embedding"
)

func TestStoreBlockThenSimilaritySearchFindsIt(t *testing.T) {
	svc := embedding.NewHashingService(0, 0)
	store, err := New(svc, 8)
	require.NoError(t, err)

	b := block.New(block.Doc, "the quarterly revenue report shows steady growth", 10, false, 0.6, "doc")
	require.NoError(t, store.StoreBlock(context.Background(), "tenant-a", b))

	matches, err := store.SimilaritySearch(context.Background(), "tenant-a", "quarterly revenue report", 5, 0.0)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
}

func TestSimilaritySearchOnEmptyCollectionReturnsNoMatches(t *testing.T) {
	svc := embedding.NewHashingService(0, 0)
	store, err := New(svc, 8)
	require.NoError(t, err)

	matches, err := store.SimilaritySearch(context.Background(), "unseen-tenant", "anything", 5, 0.0)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestTenantsAreIsolated(t *testing.T) {
	svc := embedding.NewHashingService(0, 0)
	store, err := New(svc, 8)
	require.NoError(t, err)

	b := block.New(block.Doc, "tenant one's private document content", 10, false, 0.6, "doc")
	require.NoError(t, store.StoreBlock(context.Background(), "tenant-one", b))

	matches, err := store.SimilaritySearch(context.Background(), "tenant-two", "private document content", 5, 0.0)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestAcquireReusesCollectionAcrossCalls(t *testing.T) {
	svc := embedding.NewHashingService(0, 0)
	store, err := New(svc, 8)
	require.NoError(t, err)

	c1, err := store.Acquire("tenant-x")
	require.NoError(t, err)
	c2, err := store.Acquire("tenant-x")
	require.NoError(t, err)
	require.Same(t, c1, c2)
}
