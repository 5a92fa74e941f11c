package heuristics

import (
	"regexp"
	"strings"

	"promptopt/internal/block"
	"promptopt/internal/tokencount"
)

var constraintKeywords = []string{
	"MUST NOT", "MUST", "ALWAYS", "NEVER", "REQUIRED",
	"FORBIDDEN", "ONLY", "FORMAT", "JSON", "OUTPUT", "DEADLINE",
}

var constraintKeywordPatterns = func() []*regexp.Regexp {
	pats := make([]*regexp.Regexp, len(constraintKeywords))
	for i, kw := range constraintKeywords {
		pats[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return pats
}()

var sentenceSplit = regexp.MustCompile(`[.!?]\s+`)

const maxConstraintSentenceLen = 400
const maxConstraintBlockTokens = 200

// ExtractConstraints scans system/user blocks for sentences containing a
// constraint keyword and builds a single must-keep CONSTRAINT block from
// them. Returns nil if nothing qualifies or the extracted text itself
// exceeds 200 tokens (too big to be worth hoisting).
func ExtractConstraints(blocks []*block.Block, model string) *block.Block {
	seen := make(map[string]bool)
	var kept []string

	for _, b := range blocks {
		if b.Type != block.System && b.Type != block.User {
			continue
		}
		for _, sentence := range sentenceSplit.Split(b.Content, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" || len(sentence) > maxConstraintSentenceLen {
				continue
			}
			matched := false
			for _, p := range constraintKeywordPatterns {
				if p.MatchString(sentence) {
					matched = true
					break
				}
			}
			if !matched || seen[sentence] {
				continue
			}
			seen[sentence] = true
			kept = append(kept, sentence)
		}
	}

	if len(kept) == 0 {
		return nil
	}

	content := strings.Join(kept, "\n")
	tokens := tokencount.Count(content, model)
	if tokens > maxConstraintBlockTokens {
		return nil
	}

	b := block.New(block.Constraint, content, tokens, true, 1.0, "extracted_constraints")
	return b
}
