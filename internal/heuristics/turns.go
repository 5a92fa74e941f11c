package heuristics

import "promptopt/internal/block"

// groupTurns partitions the sequence of user/assistant blocks into turns,
// where a turn boundary falls right before a user block that isn't the
// very first one accumulated so far. Every other block type (system, tool,
// doc, tool-output) is ignored entirely — it never joins a turn and is
// therefore untouched by turn retention.
func groupTurns(blocks []*block.Block) [][]*block.Block {
	var turns [][]*block.Block
	var current []*block.Block

	for _, b := range blocks {
		if b.Type != block.User && b.Type != block.Assistant {
			continue
		}
		current = append(current, b)
		if b.Type == block.User && len(current) > 1 {
			turns = append(turns, current[:len(current)-1])
			current = []*block.Block{b}
		}
	}
	if len(current) > 0 {
		turns = append(turns, current)
	}
	return turns
}

// KeepLastNTurns marks every block in the last n conversational turns as
// must_keep, raising its priority to at least 0.9. Blocks outside the
// retained window are left exactly as they were (still candidates for
// later budget/semantic selection, just no longer pinned).
func KeepLastNTurns(blocks []*block.Block, n int) []*block.Block {
	if n <= 0 {
		return blocks
	}
	turns := groupTurns(blocks)
	start := len(turns) - n
	if start < 0 {
		start = 0
	}
	for _, turn := range turns[start:] {
		for _, b := range turn {
			b.MustKeep = true
			if b.Priority < 0.9 {
				b.Priority = 0.9
			}
		}
	}
	return blocks
}
