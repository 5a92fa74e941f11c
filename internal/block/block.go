// Package block defines the Block intermediate representation that every
// pipeline stage reads and mutates: the unit of optimization between the
// raw request (messages, tools, RAG documents, tool outputs) and the
// optimized messages sent to a model.
package block

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies the semantic role a Block plays in a conversation.
type Type string

const (
	System     Type = "system"
	User       Type = "user"
	Assistant  Type = "assistant"
	Tool       Type = "tool"
	Doc        Type = "doc"
	Constraint Type = "constraint"
)

// Block is the atomic, typed, scored unit of text the pipeline selects,
// compresses, or drops.
type Block struct {
	ID    string
	Type  Type
	Content string

	// OriginalContent holds the pre-compression text whenever Content has
	// been replaced by a heuristic or the compressor; nil if untouched.
	OriginalContent *string

	Tokens    int
	MustKeep  bool
	Priority  float64
	Timestamp time.Time
	Metadata  map[string]any
	Compressed bool
}

// New creates a Block with a fresh id and the given fields, mirroring the
// reference implementation's Block.create factory.
func New(typ Type, content string, tokens int, mustKeep bool, priority float64, source string) *Block {
	return &Block{
		ID:        uuid.NewString(),
		Type:      typ,
		Content:   content,
		Tokens:    tokens,
		MustKeep:  mustKeep,
		Priority:  priority,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{"source": source},
	}
}

// Fingerprint returns the deduplication key: trimmed, lowercased content.
// Hashing (for grouping) happens one layer up, in the heuristics package.
func (b *Block) Fingerprint() string {
	return strings.ToLower(strings.TrimSpace(b.Content))
}

// SetContent replaces a block's content, stashing the previous content in
// OriginalContent the first time a replacement happens.
func (b *Block) SetContent(content string, tokens int) {
	if b.OriginalContent == nil {
		prev := b.Content
		b.OriginalContent = &prev
	}
	b.Content = content
	b.Tokens = tokens
}

// TotalTokens sums Tokens across blocks.
func TotalTokens(blocks []*Block) int {
	total := 0
	for _, b := range blocks {
		total += b.Tokens
	}
	return total
}

// CompressionRatio is (before-after)/before, rounded to 2 decimal places, 0
// when before is 0 — matches the reference implementation's
// format_compression_ratio.
func CompressionRatio(before, after int) float64 {
	if before == 0 {
		return 0.0
	}
	ratio := float64(before-after) / float64(before)
	return float64(int(ratio*100+0.5)) / 100
}
