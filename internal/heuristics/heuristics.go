// Package heuristics implements the fast, model-free block-reduction pass
// that always runs before semantic retrieval or compression are considered:
// junk removal, deduplication, turn retention, constraint hoisting, tool
// schema minimization, log trimming, and tabular JSON compaction.
package heuristics

import "promptopt/internal/block"

// Apply runs every heuristics step in its fixed order. tokensBeforeHeuristics
// is the total token count of the canonicalized blocks before any heuristic
// ran; it gates whether the extracted-constraint block gets prepended, so
// heuristics as a whole never make a prompt larger than it started.
func Apply(blocks []*block.Block, cfg Config, tokensBeforeHeuristics int) []*block.Block {
	cfg = cfg.withDefaults()

	blocks = RemoveJunk(blocks)
	blocks = Deduplicate(blocks)
	blocks = KeepLastNTurns(blocks, cfg.KeepLastNTurns)

	if candidate := ExtractConstraints(blocks, cfg.Model); candidate != nil {
		if block.TotalTokens(blocks)+candidate.Tokens <= tokensBeforeHeuristics {
			blocks = append([]*block.Block{candidate}, blocks...)
		}
	}

	if !cfg.DisableToolMinimization {
		blocks = MinimizeToolSchemas(blocks, cfg.ToolAllowlist, cfg.Model)
	}

	blocks = TrimAssistantLogs(blocks, cfg.Model)
	blocks = CompressDocsToTOON(blocks, cfg.Model)

	return blocks
}
