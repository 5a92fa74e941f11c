// Package budget implements greedy knapsack token-budget allocation: all
// must_keep blocks are admitted unconditionally, then optional blocks are
// admitted by utility/token ratio within a per-type token budget.
package budget

import (
	"sort"

	"promptopt/internal/block"
)

// Config controls per-type token fractions for the optional-block budget.
type Config struct {
	// PerTypeFractions maps a block.Type string to the fraction (0..1) of
	// the optional budget reserved for that type. Reference default:
	// doc=0.4, assistant=0.3, tool=0.2, user=0.1.
	PerTypeFractions map[string]float64
}

// DefaultConfig matches the reference implementation's default fractions.
func DefaultConfig() Config {
	return Config{PerTypeFractions: map[string]float64{
		"doc":       0.4,
		"assistant": 0.3,
		"tool":      0.2,
		"user":      0.1,
	}}
}

// Allocator selects blocks within a token budget.
type Allocator struct {
	cfg Config
}

func NewAllocator(cfg Config) *Allocator {
	if cfg.PerTypeFractions == nil {
		cfg = DefaultConfig()
	}
	return &Allocator{cfg: cfg}
}

// Select partitions blocks into (selected, dropped). must_keep blocks are
// always selected; if their combined token count alone exceeds the budget
// (after the safety margin), they're still all included and nothing else
// is considered. Otherwise, optional blocks are admitted greedily by
// utility-per-token within a budget allocated per block type, never
// partially — a block is skipped unless its full token count fits the
// remaining budget for its type.
func (a *Allocator) Select(blocks []*block.Block, maxTokens, safetyMargin int) (selected, dropped []*block.Block) {
	var mustKeep, optional []*block.Block
	for _, b := range blocks {
		if b.MustKeep {
			mustKeep = append(mustKeep, b)
		} else {
			optional = append(optional, b)
		}
	}

	mustKeepTokens := block.TotalTokens(mustKeep)
	if mustKeepTokens > maxTokens-safetyMargin {
		return mustKeep, optional
	}

	available := maxTokens - safetyMargin - mustKeepTokens
	typeBudgets := calculateTypeBudgets(optional, available, a.cfg.PerTypeFractions)

	sorted := append([]*block.Block(nil), optional...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return utilityRatio(sorted[i]) > utilityRatio(sorted[j])
	})

	selected = append(selected, mustKeep...)
	for _, b := range sorted {
		typ := string(b.Type)
		budget := typeBudgets[typ]
		if budget >= b.Tokens {
			selected = append(selected, b)
			typeBudgets[typ] -= b.Tokens
			b.Metadata["selection_reason"] = "budget_selected"
		} else {
			dropped = append(dropped, b)
			b.Metadata["selection_reason"] = "budget_exceeded"
		}
	}

	return selected, dropped
}

func calculateTypeBudgets(blocks []*block.Block, totalBudget int, fractions map[string]float64) map[string]int {
	active := map[string]bool{}
	for _, b := range blocks {
		active[string(b.Type)] = true
	}

	adjusted := make(map[string]float64, len(fractions))
	for k, v := range fractions {
		adjusted[k] = v
	}

	missing := 0.0
	for typ, frac := range fractions {
		if !active[typ] {
			missing += frac
		}
	}
	if missing > 0 && len(active) > 0 {
		share := missing / float64(len(active))
		for typ := range active {
			if _, ok := adjusted[typ]; ok {
				adjusted[typ] += share
			}
		}
	}

	budgets := make(map[string]int, len(adjusted))
	for typ, frac := range adjusted {
		if active[typ] {
			budgets[typ] = int(float64(totalBudget) * frac)
		}
	}
	return budgets
}

func utilityRatio(b *block.Block) float64 {
	utility := b.Priority
	if u, ok := b.Metadata["utility_score"].(float64); ok {
		utility = u
	}
	if b.Tokens == 0 {
		return 0
	}
	return utility / float64(b.Tokens)
}
