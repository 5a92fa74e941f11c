// Package compressor implements faithfulness-gated content compression: an
// extractive sentence-rank backend shrinks a block, then an entity-overlap
// check rejects the result if it would silently drop something load-bearing
// (a number, an acronym, a MUST/NEVER constraint).
package compressor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"promptopt/internal/block"
	"promptopt/internal/tokencount"
)

// Config controls compression behavior.
type Config struct {
	Ratio                 float64 // target fraction of original length/sentences to keep
	FaithfulnessThreshold float64
	AllowMustKeep         bool
	Model                 string
}

func (c Config) withDefaults() Config {
	if c.Ratio <= 0 {
		c.Ratio = 0.5
	}
	if c.FaithfulnessThreshold <= 0 {
		c.FaithfulnessThreshold = 0.85
	}
	if c.Model == "" {
		c.Model = "gpt-4"
	}
	return c
}

// LearnedCompressor is the interface a model-backed compression backend
// would implement; no implementation ships in this repository, selected
// once at pipeline construction like every other pluggable service.
type LearnedCompressor interface {
	Compress(content string, ratio float64) (string, error)
}

// Stats reports what happened to a single block.
type Stats struct {
	Skipped           bool
	SkipReason        string
	Rejected          bool
	Faithfulness      float64
	OriginalTokens    int
	CompressedTokens  int
	TokensSaved       int
	CompressionRatio  float64
	DebugDiff         string
}

// Compressor is the extractive, always-available compression backend.
type Compressor struct {
	cfg     Config
	learned LearnedCompressor
}

func New(cfg Config, learned LearnedCompressor) *Compressor {
	return &Compressor{cfg: cfg.withDefaults(), learned: learned}
}

const minCompressibleTokens = 100

// CompressBlock compresses a single block's content, returning the
// (possibly unchanged) block and stats describing what happened. System
// and constraint blocks are never touched; must_keep blocks are skipped
// unless AllowMustKeep; blocks already compressed or under 100 tokens are
// skipped; a compression that drops below the faithfulness threshold is
// rejected and the original block is returned with a debug diff attached.
func (c *Compressor) CompressBlock(b *block.Block) (*block.Block, Stats) {
	if b.Type == block.System || b.Type == block.Constraint {
		return b, Stats{Skipped: true, SkipReason: "protected_type"}
	}
	if b.MustKeep && !c.cfg.AllowMustKeep {
		return b, Stats{Skipped: true, SkipReason: "must_keep"}
	}
	if b.Compressed {
		return b, Stats{Skipped: true, SkipReason: "already_compressed"}
	}
	if b.Tokens < minCompressibleTokens {
		return b, Stats{Skipped: true, SkipReason: "too_short"}
	}

	original := b.Content
	originalTokens := b.Tokens

	var compressed string
	var err error
	if c.learned != nil {
		compressed, err = c.learned.Compress(original, c.cfg.Ratio)
	} else {
		compressed = extractiveCompress(original, c.cfg.Ratio, c.cfg.Model)
	}
	if err != nil {
		compressed = extractiveCompress(original, c.cfg.Ratio, c.cfg.Model)
	}

	compressedTokens := tokencount.Count(compressed, c.cfg.Model)
	faithfulness := FaithfulnessScore(original, compressed)

	if faithfulness < c.cfg.FaithfulnessThreshold {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(original, compressed, false)
		return b, Stats{
			Rejected:     true,
			Faithfulness: faithfulness,
			DebugDiff:    dmp.DiffPrettyText(diffs),
		}
	}

	nb := &block.Block{
		ID:         b.ID,
		Type:       b.Type,
		MustKeep:   b.MustKeep,
		Priority:   b.Priority,
		Timestamp:  b.Timestamp,
		Metadata:   map[string]any{},
		Compressed: true,
	}
	for k, v := range b.Metadata {
		nb.Metadata[k] = v
	}
	nb.Metadata["original_tokens"] = originalTokens
	nb.Metadata["faithfulness"] = faithfulness
	nb.SetContent(compressed, compressedTokens)

	ratio := 1.0
	if originalTokens > 0 {
		ratio = float64(compressedTokens) / float64(originalTokens)
	}
	nb.Metadata["compression_ratio"] = ratio

	return nb, Stats{
		OriginalTokens:   originalTokens,
		CompressedTokens: compressedTokens,
		TokensSaved:      originalTokens - compressedTokens,
		CompressionRatio: ratio,
		Faithfulness:     faithfulness,
	}
}

// CompressBlocks compresses every block in order, returning the resulting
// blocks and aggregate stats.
func CompressBlocks(c *Compressor, blocks []*block.Block) ([]*block.Block, int) {
	out := make([]*block.Block, len(blocks))
	totalSaved := 0
	for i, b := range blocks {
		nb, stats := c.CompressBlock(b)
		out[i] = nb
		totalSaved += stats.TokensSaved
	}
	return out, totalSaved
}

var sentenceSplit = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)

// extractiveCompress keeps the highest-scoring fraction of sentences
// (scored by a cheap length + keyword-density heuristic), preserving their
// original order, to reach roughly `ratio` of the original sentence count.
// Very large blocks skip ranking entirely and use head/tail truncation,
// since sentence ranking over huge blobs is not worth the latency and a
// head/tail cut already preserves trailing instructions.
func extractiveCompress(content string, ratio float64, model string) string {
	origTokens := tokencount.Count(content, model)
	if origTokens > 2000 {
		target := int(float64(origTokens) * clampRatio(ratio))
		if target < 64 {
			target = 64
		}
		if target > 1200 {
			target = 1200
		}
		return tokencount.HeadTailTruncate(content, target, model, 0.35)
	}

	sentences := sentenceSplit.Split(strings.TrimSpace(content), -1)
	var nonEmpty []string
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) <= 1 {
		return content
	}

	targetCount := int(float64(len(nonEmpty)) * clampRatio(ratio))
	if targetCount < 1 {
		targetCount = 1
	}
	if targetCount >= len(nonEmpty) {
		return content
	}

	type scored struct {
		idx   int
		text  string
		score float64
	}
	ranked := make([]scored, len(nonEmpty))
	for i, s := range nonEmpty {
		ranked[i] = scored{idx: i, text: s, score: sentenceScore(s)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	keepIdx := map[int]bool{}
	for _, r := range ranked[:targetCount] {
		keepIdx[r.idx] = true
	}

	var out []string
	for i, s := range nonEmpty {
		if keepIdx[i] {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return strings.Join(out, ". ")
}

func clampRatio(r float64) float64 {
	if r < 0.05 {
		return 0.05
	}
	if r > 1.0 {
		return 1.0
	}
	return r
}

var entityKeywordForScore = []string{"MUST", "NEVER", "ALWAYS", "REQUIRED", "FORMAT"}

func sentenceScore(s string) float64 {
	score := float64(len(s))
	upper := strings.ToUpper(s)
	for _, kw := range entityKeywordForScore {
		if strings.Contains(upper, kw) {
			score += 50
		}
	}
	return score
}
