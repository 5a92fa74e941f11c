// Package scoring computes the multi-factor utility score used to rank
// blocks for semantic retrieval: similarity, recency, constraint density,
// identifier density, source trust, and entity density.
package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"

	"promptopt/internal/block"
	"promptopt/internal/embedding"
)

var constraintKeywordWeights = map[string]float64{
	"MUST":      1.0,
	"MUST NOT":  1.0,
	"ALWAYS":    0.9,
	"NEVER":     0.9,
	"REQUIRED":  0.8,
	"FORMAT":    0.7,
	"JSON":      0.6,
	"SCHEMA":    0.6,
	"DEADLINE":  0.8,
	"IMPORTANT": 0.7,
}

var sourceTrust = map[string]float64{
	"system":    1.0,
	"developer": 1.0,
	"docs":      0.9,
	"user":      0.8,
	"inferred":  0.5,
}

var identifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`),
	regexp.MustCompile(`(?i)\bid[_-]?\d+\b`),
	regexp.MustCompile(`(?i)\b[A-Z0-9]{20,}\b`),
	regexp.MustCompile(`https?://\S+`),
	regexp.MustCompile(`\b[A-Z]{2,}_[A-Z_]+\b`),
}

var properNounPattern = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
var numberPattern = regexp.MustCompile(`\b\d+\.?\d*\b`)
var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Weights is the 6-factor combination used by Utility.
type Weights struct {
	Similarity float64
	Recency    float64
	Constraint float64
	Identifier float64
	Trust      float64
	Entity     float64
}

// DefaultWeights matches the reference implementation: 40% similarity, 20%
// recency, 15% constraint density, 10% identifiers, 10% source trust, 5%
// entity density.
var DefaultWeights = Weights{
	Similarity: 0.40,
	Recency:    0.20,
	Constraint: 0.15,
	Identifier: 0.10,
	Trust:      0.10,
	Entity:     0.05,
}

// Scorer computes block utility against a query embedding.
type Scorer struct {
	svc     embedding.Service
	weights Weights
}

func New(svc embedding.Service, weights Weights) *Scorer {
	return &Scorer{svc: svc, weights: weights}
}

// Utility computes the weighted 0..1 utility score for b given its
// embedding and the query embedding, at currentTime.
func (s *Scorer) Utility(b *block.Block, query, blockEmb embedding.Vector, currentTime time.Time) float64 {
	similarity := s.svc.CosineSimilarity(query, blockEmb)

	recency := 0.5
	if !b.Timestamp.IsZero() {
		recency = recencyScore(b.Timestamp, currentTime)
	}

	constraint := constraintScore(b.Content)
	identifier := identifierScore(b.Content)

	source, _ := b.Metadata["source"].(string)
	if source == "" {
		source = "inferred"
	}
	trust, ok := sourceTrust[source]
	if !ok {
		trust = 0.5
	}

	entity := entityScore(b.Content)

	utility := s.weights.Similarity*similarity +
		s.weights.Recency*recency +
		s.weights.Constraint*constraint +
		s.weights.Identifier*identifier +
		s.weights.Trust*trust +
		s.weights.Entity*entity

	return clamp01(utility)
}

func recencyScore(ts, now time.Time) float64 {
	ageDays := now.Sub(ts).Hours() / 24
	return math.Exp(-ageDays / 30)
}

func constraintScore(content string) float64 {
	upper := strings.ToUpper(content)
	score := 0.0
	for kw, weight := range constraintKeywordWeights {
		score += float64(strings.Count(upper, kw)) * weight
	}
	return math.Min(score/5.0, 1.0)
}

func identifierScore(content string) float64 {
	matches := 0
	for _, p := range identifierPatterns {
		matches += len(p.FindAllString(content, -1))
	}
	return math.Min(float64(matches)/10.0, 1.0)
}

func entityScore(content string) float64 {
	total := len(properNounPattern.FindAllString(content, -1)) +
		len(numberPattern.FindAllString(content, -1)) +
		len(datePattern.FindAllString(content, -1))
	return math.Min(float64(total)/20.0, 1.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
