// Package diversify implements Maximal Marginal Relevance selection so
// semantic retrieval doesn't return N near-duplicate blocks just because
// they all score well against the query.
package diversify

import (
	"promptopt/internal/block"
	"promptopt/internal/embedding"
)

// Candidate pairs a block with its utility score and embedding.
type Candidate struct {
	Block     *block.Block
	Utility   float64
	Embedding embedding.Vector
}

// MMR selects up to topK blocks from candidates using
// Maximal Marginal Relevance: mmr = lambda*relevance - (1-lambda)*redundancy,
// where redundancy is the max similarity to any already-selected block.
// If len(candidates) <= topK, every candidate is returned unchanged (no
// reordering, no diversification needed).
func MMR(svc embedding.Service, candidates []Candidate, query embedding.Vector, lambda float64, topK int) []*block.Block {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) <= topK {
		out := make([]*block.Block, len(candidates))
		for i, c := range candidates {
			out[i] = c.Block
		}
		return out
	}

	remaining := append([]Candidate(nil), candidates...)
	selected := make([]*block.Block, 0, topK)
	selectedEmb := make([]embedding.Vector, 0, topK)

	first := remaining[0]
	remaining = remaining[1:]
	selected = append(selected, first.Block)
	selectedEmb = append(selectedEmb, first.Embedding)

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		for i, c := range remaining {
			redundancy := 0.0
			for _, se := range selectedEmb {
				if sim := svc.CosineSimilarity(c.Embedding, se); sim > redundancy {
					redundancy = sim
				}
			}
			mmr := lambda*c.Utility - (1-lambda)*redundancy
			if bestIdx == -1 || mmr > bestScore {
				bestIdx = i
				bestScore = mmr
			}
		}

		chosen := remaining[bestIdx]
		selected = append(selected, chosen.Block)
		selectedEmb = append(selectedEmb, chosen.Embedding)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}
