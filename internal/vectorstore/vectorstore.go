// Package vectorstore persists blocks and their embeddings and serves
// similarity search, backed by the embedded chromem-go vector database —
// no separate server to operate or connect-pool against. Tenant isolation
// is a collection-name prefix; an LRU cap bounds how many tenant
// collections stay open at once, the embedded-DB analogue of a bounded
// connection pool.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/philippgille/chromem-go"

	"promptopt/internal/block"
	"promptopt/internal/embedding"
)

// Match pairs a retrieved block with its similarity to the query.
type Match struct {
	Block      *block.Block
	Similarity float64
}

// Store is a tenant-scoped facade over chromem-go collections.
type Store struct {
	db   *chromem.DB
	svc  embedding.Service
	mu   sync.Mutex
	open *lru.Cache[string, *chromem.Collection]
}

// New constructs a Store. maxOpenCollections bounds how many tenant
// collections chromem-go keeps resident; evicted entries are simply
// reopened (chromem-go collections are cheap, in-process structures, so
// eviction only costs a lookup, not a reconnect).
func New(svc embedding.Service, maxOpenCollections int) (*Store, error) {
	if maxOpenCollections <= 0 {
		maxOpenCollections = 64
	}
	cache, err := lru.New[string, *chromem.Collection](maxOpenCollections)
	if err != nil {
		return nil, err
	}
	return &Store{db: chromem.NewDB(), svc: svc, open: cache}, nil
}

func collectionName(tenantID string) string {
	if tenantID == "" {
		tenantID = "default"
	}
	return "tenant_" + tenantID
}

func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		v, err := s.svc.EmbedSingle(ctx, text)
		return []float32(v), err
	}
}

// Acquire returns the chromem-go collection for a tenant, creating it on
// first use. Mirrors a connection pool's Acquire/Release shape so swapping
// this package for a networked vector DB later only touches this file.
func (s *Store) Acquire(tenantID string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := collectionName(tenantID)
	if c, ok := s.open.Get(name); ok {
		return c, nil
	}

	c, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("vectorstore: acquire %s: %w", name, err)
	}
	s.open.Add(name, c)
	return c, nil
}

// Release is a no-op for the embedded backend; it exists so callers don't
// need to special-case this store versus a pooled networked one.
func (s *Store) Release(*chromem.Collection) {}

// StoreBlock upserts a block and its content embedding into a tenant's
// collection, content-addressed by the sha256 of the block's fingerprint,
// so storing the same content again replaces the earlier document.
func (s *Store) StoreBlock(ctx context.Context, tenantID string, b *block.Block) error {
	c, err := s.Acquire(tenantID)
	if err != nil {
		return err
	}
	defer s.Release(c)

	meta := map[string]string{
		"type":      string(b.Type),
		"must_keep": fmt.Sprintf("%t", b.MustKeep),
	}
	sum := sha256.Sum256([]byte(b.Fingerprint()))
	return c.AddDocument(ctx, chromem.Document{
		ID:       hex.EncodeToString(sum[:]),
		Content:  b.Content,
		Metadata: meta,
	})
}

// SimilaritySearch returns up to topK blocks above similarityThreshold,
// most similar first.
func (s *Store) SimilaritySearch(ctx context.Context, tenantID, queryText string, topK int, similarityThreshold float64) ([]Match, error) {
	c, err := s.Acquire(tenantID)
	if err != nil {
		return nil, err
	}
	defer s.Release(c)

	n := topK
	if count := c.Count(); count < n {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := c.Query(ctx, queryText, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		if float64(r.Similarity) < similarityThreshold {
			continue
		}
		b := block.New(block.Doc, r.Content, 0, false, 0.6, "vector_store")
		b.ID = r.ID
		matches = append(matches, Match{Block: b, Similarity: float64(r.Similarity)})
	}
	return matches, nil
}
