// Package validate checks an optimized block set against hard invariants
// (non-empty, has a system/user anchor, fits the budget, keeps its
// must-keep blocks) and implements the escalating fallback strategy used
// when validation fails.
package validate

import (
	"fmt"

	"promptopt/internal/block"
	"promptopt/internal/heuristics"
	"promptopt/internal/tokencount"
)

// Config carries the budget parameters validation and fallback need.
type Config struct {
	MaxInputTokens   int
	SafetyMargin     int
	Model            string
	// FallbackStrategy selects the escalation path when the first
	// must-keep-plus-last-user fallback is still invalid. "truncate" (the
	// default) deterministically truncates the largest eligible block.
	// "aggressive_trim" instead keeps only the most recent turns.
	FallbackStrategy string
	KeepRecentTurns  int
}

func (c Config) effectiveSafetyMargin() int {
	cap := c.MaxInputTokens / 4
	if c.SafetyMargin > cap {
		return cap
	}
	return c.SafetyMargin
}

// Validate checks the four invariants the pipeline must hold before a
// result can be returned: non-empty, has a system/user block, fits within
// budget minus safety margin, and retains at least one must-keep block.
func Validate(blocks []*block.Block, cfg Config) (bool, []string) {
	var errs []string

	if len(blocks) == 0 {
		return false, []string{"no blocks remaining after optimization"}
	}

	hasAnchor := false
	hasMustKeep := false
	for _, b := range blocks {
		if b.Type == block.System || b.Type == block.User {
			hasAnchor = true
		}
		if b.MustKeep {
			hasMustKeep = true
		}
	}
	if !hasAnchor {
		errs = append(errs, "missing system or user message")
	}

	margin := cfg.effectiveSafetyMargin()
	total := block.TotalTokens(blocks)
	if total > cfg.MaxInputTokens-margin {
		errs = append(errs, fmt.Sprintf("over budget: %d > %d (max=%d, safety_margin=%d)",
			total, cfg.MaxInputTokens-margin, cfg.MaxInputTokens, margin))
	}

	if !hasMustKeep {
		errs = append(errs, "no must_keep blocks found (validation might be too aggressive)")
	}

	return len(errs) == 0, errs
}

// ApplyFallback escalates through increasingly aggressive strategies until
// the result validates or every strategy is exhausted: keep must-keep
// blocks (plus the last user block if none were kept); if still invalid,
// run the configured fallback strategy (truncate the largest eligible
// block, or keep only the most recent turns); if still invalid, fall back
// to must-keep blocks alone.
func ApplyFallback(blocks []*block.Block, cfg Config) ([]*block.Block, bool) {
	var fallback []*block.Block
	for _, b := range blocks {
		if b.MustKeep {
			fallback = append(fallback, b)
		}
	}

	hasUser := false
	for _, b := range fallback {
		if b.Type == block.User {
			hasUser = true
			break
		}
	}
	if !hasUser {
		var lastUser *block.Block
		for _, b := range blocks {
			if b.Type == block.User {
				lastUser = b
			}
		}
		if lastUser != nil {
			fallback = append(fallback, lastUser)
		}
	}

	if ok, _ := Validate(fallback, cfg); ok {
		return fallback, true
	}

	if cfg.FallbackStrategy == "aggressive_trim" {
		trimmed := aggressiveTrim(fallback, cfg)
		if ok, _ := Validate(trimmed, cfg); ok {
			return trimmed, true
		}
		fallback = trimmed
	} else {
		truncated := truncateLargest(fallback, blocks, cfg)
		if ok, _ := Validate(truncated, cfg); ok {
			return truncated, true
		}
		fallback = truncated
	}

	var mustKeepOnly []*block.Block
	for _, b := range blocks {
		if b.MustKeep {
			mustKeepOnly = append(mustKeepOnly, b)
		}
	}
	return mustKeepOnly, true
}

// truncateLargest deterministically shrinks the last user block (or, if
// none is present, the largest non-system/constraint block) via head/tail
// truncation until the set fits the remaining budget.
func truncateLargest(fallback, original []*block.Block, cfg Config) []*block.Block {
	margin := cfg.effectiveSafetyMargin()
	budget := cfg.MaxInputTokens - margin
	if budget < 1 {
		budget = 1
	}

	var candidates []*block.Block
	for _, b := range fallback {
		if b.Type != block.System && b.Type != block.Constraint {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return fallback
	}

	var target *block.Block
	for _, b := range candidates {
		if b.Type == block.User {
			target = b
		}
	}
	if target == nil {
		target = candidates[0]
		for _, b := range candidates {
			if b.Tokens > target.Tokens {
				target = b
			}
		}
	}

	otherTokens := 0
	for _, b := range fallback {
		if b.ID != target.ID {
			otherTokens += b.Tokens
		}
	}
	remaining := budget - otherTokens
	if remaining < 1 {
		remaining = 1
	}

	truncated := tokencount.HeadTailTruncate(target.Content, remaining, cfg.Model, 0.4)
	target.SetContent(truncated, tokencount.Count(truncated, cfg.Model))
	target.Metadata["truncated_to_budget"] = true

	return fallback
}

// aggressiveTrim keeps only the blocks belonging to the most recent
// KeepRecentTurns turns, an alternative fallback strategy grounded on
// keeping a conversation's recent history rather than truncating content.
func aggressiveTrim(blocks []*block.Block, cfg Config) []*block.Block {
	n := cfg.KeepRecentTurns
	if n <= 0 {
		n = 2
	}
	kept := heuristics.KeepLastNTurns(append([]*block.Block(nil), blocks...), n)

	var out []*block.Block
	for _, b := range kept {
		if b.MustKeep {
			out = append(out, b)
		}
	}
	return out
}
