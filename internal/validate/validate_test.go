package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"promptopt/internal/block"
)

func TestValidateEmptyFails(t *testing.T) {
	ok, errs := Validate(nil, Config{MaxInputTokens: 1000})
	require.False(t, ok)
	require.NotEmpty(t, errs)
}

func TestValidateMissingAnchorFails(t *testing.T) {
	blocks := []*block.Block{block.New(block.Tool, "tool output", 10, true, 0.8, "m")}
	ok, errs := Validate(blocks, Config{MaxInputTokens: 1000})
	require.False(t, ok)
	require.Contains(t, strings.Join(errs, "|"), "system or user")
}

func TestValidateOverBudgetFails(t *testing.T) {
	blocks := []*block.Block{block.New(block.User, "hi", 900, true, 0.9, "m")}
	ok, errs := Validate(blocks, Config{MaxInputTokens: 1000, SafetyMargin: 200})
	require.False(t, ok)
	require.Contains(t, strings.Join(errs, "|"), "over budget")
}

func TestValidatePassesForWellFormedSet(t *testing.T) {
	blocks := []*block.Block{
		block.New(block.System, "sys", 10, true, 1.0, "m"),
		block.New(block.User, "hi", 10, true, 0.9, "m"),
	}
	ok, errs := Validate(blocks, Config{MaxInputTokens: 1000, SafetyMargin: 50})
	require.True(t, ok)
	require.Empty(t, errs)
}

func TestApplyFallbackKeepsMustKeepAndLastUser(t *testing.T) {
	mustKeep := block.New(block.System, "sys", 10, true, 1.0, "m")
	lastUser := block.New(block.User, "question", 10, false, 0.5, "m")

	out, ok := ApplyFallback([]*block.Block{mustKeep, lastUser}, Config{MaxInputTokens: 1000, SafetyMargin: 50})
	require.True(t, ok)
	require.Len(t, out, 2)
}

func TestApplyFallbackTruncatesWhenStillOverBudget(t *testing.T) {
	mustKeep := block.New(block.System, "sys", 10, true, 1.0, "m")
	hugeUser := block.New(block.User, strings.Repeat("word ", 2000), 2000, true, 0.9, "m")

	out, ok := ApplyFallback([]*block.Block{mustKeep, hugeUser}, Config{
		MaxInputTokens: 500, SafetyMargin: 50, Model: "gpt-4",
	})
	require.True(t, ok)
	total := block.TotalTokens(out)
	require.LessOrEqual(t, total, 500)
}

func TestApplyFallbackAggressiveTrimStrategy(t *testing.T) {
	turn1User := block.New(block.User, "turn1", 5, false, 0.7, "m")
	turn1Assistant := block.New(block.Assistant, "turn1 reply", 5, false, 0.5, "m")
	turn2User := block.New(block.User, strings.Repeat("word ", 2000), 2000, true, 0.9, "m")

	out, ok := ApplyFallback([]*block.Block{turn1User, turn1Assistant, turn2User}, Config{
		MaxInputTokens:   500,
		SafetyMargin:     50,
		Model:            "gpt-4",
		FallbackStrategy: "aggressive_trim",
		KeepRecentTurns:  1,
	})
	require.True(t, ok)
	require.NotEmpty(t, out)
}

func TestEffectiveSafetyMarginCapsAtQuarterOfBudget(t *testing.T) {
	cfg := Config{MaxInputTokens: 1000, SafetyMargin: 900}
	require.Equal(t, 250, cfg.effectiveSafetyMargin())
}
