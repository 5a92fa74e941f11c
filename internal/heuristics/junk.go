package heuristics

import (
	"regexp"
	"strings"

	"promptopt/internal/block"
)

var junkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(Sure|Of course|I can help|Let me help).*$`),
	regexp.MustCompile(`(?i)^(Thank you|Thanks).*$`),
}

// RemoveJunk drops must-keep-exempt, low-signal acknowledgement blocks and
// blocks whose content is empty or whitespace-only. must_keep blocks always
// survive untouched.
func RemoveJunk(blocks []*block.Block) []*block.Block {
	kept := make([]*block.Block, 0, len(blocks))
	for _, b := range blocks {
		if b.MustKeep {
			kept = append(kept, b)
			continue
		}
		trimmed := strings.TrimSpace(b.Content)
		if trimmed == "" {
			continue
		}
		isJunk := false
		for _, p := range junkPatterns {
			if p.MatchString(b.Content) {
				isJunk = true
				break
			}
		}
		if isJunk {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}
