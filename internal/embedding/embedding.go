// Package embedding provides the pipeline's text-vector abstraction. The
// default implementation is a deterministic, dependency-free hashing
// embedder: no model download, no GPU, stable across restarts. A
// model-backed implementation is a drop-in behind the same Service
// interface.
package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"golang.org/x/sync/errgroup"
)

// Vector is an L2-normalized embedding.
type Vector []float32

// Service embeds text into vectors and compares them.
type Service interface {
	Embed(ctx context.Context, texts []string) ([]Vector, error)
	EmbedSingle(ctx context.Context, text string) (Vector, error)
	CosineSimilarity(a, b Vector) float64
	Dim() int
}

const defaultDim = 256

// HashingService is a deterministic bag-of-features hashing embedder: each
// token in the text is hashed into one of Dim buckets, signed by a second
// hash bit, then the whole vector is L2-normalized. This gives stable
// cosine similarity behavior for near-duplicate text without requiring any
// ML runtime.
type HashingService struct {
	dim        int
	workers    int
}

// NewHashingService constructs the default embedding service. workers
// bounds concurrent batch embedding goroutines; it defaults to 4 if <= 0.
func NewHashingService(dim, workers int) *HashingService {
	if dim <= 0 {
		dim = defaultDim
	}
	if workers <= 0 {
		workers = 4
	}
	return &HashingService{dim: dim, workers: workers}
}

func (s *HashingService) Dim() int { return s.dim }

func (s *HashingService) EmbedSingle(ctx context.Context, text string) (Vector, error) {
	return s.embedOne(text), nil
}

func (s *HashingService) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			out[i] = s.embedOne(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HashingService) embedOne(text string) Vector {
	v := make([]float64, s.dim)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(s.dim))
		sign := 1.0
		if (sum>>1)&1 == 1 {
			sign = -1.0
		}
		v[bucket] += sign
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	out := make(Vector, s.dim)
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

func tokenize(text string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		if isWordRune(r) {
			cur = append(cur, toLower(r))
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func (s *HashingService) CosineSimilarity(a, b Vector) float64 {
	var dot float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
