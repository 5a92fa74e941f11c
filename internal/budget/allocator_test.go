package budget

import (
	"testing"

	"github.com/stretchr/testify/require"

	"promptopt/internal/block"
)

func newOptional(typ block.Type, tokens int, utility float64) *block.Block {
	b := block.New(typ, "content", tokens, false, 0.5, "m")
	b.Metadata["utility_score"] = utility
	return b
}

func TestSelectAlwaysKeepsMustKeep(t *testing.T) {
	a := NewAllocator(DefaultConfig())
	mustKeep := block.New(block.System, "sys", 50, true, 1.0, "m")
	optional := newOptional(block.Doc, 30, 0.9)

	selected, dropped := a.Select([]*block.Block{mustKeep, optional}, 1000, 50)
	require.Contains(t, idsOf(selected), mustKeep.ID)
	require.Empty(t, dropped)
}

func TestSelectReturnsOnlyMustKeepWhenOverBudget(t *testing.T) {
	a := NewAllocator(DefaultConfig())
	mustKeep := block.New(block.System, "sys", 900, true, 1.0, "m")
	optional := newOptional(block.Doc, 30, 0.9)

	selected, dropped := a.Select([]*block.Block{mustKeep, optional}, 1000, 200)
	require.Len(t, selected, 1)
	require.Equal(t, mustKeep.ID, selected[0].ID)
	require.Len(t, dropped, 1)
}

func TestSelectPrefersHigherUtilityPerToken(t *testing.T) {
	a := NewAllocator(DefaultConfig())
	high := newOptional(block.Doc, 10, 1.0)
	low := newOptional(block.Doc, 10, 0.1)

	selected, _ := a.Select([]*block.Block{low, high}, 1000, 10)
	require.Equal(t, high.ID, selected[0].ID)
}

func TestSelectNeverPartiallyAdmits(t *testing.T) {
	a := NewAllocator(Config{PerTypeFractions: map[string]float64{"doc": 1.0}})
	tooLarge := newOptional(block.Doc, 10000, 1.0)

	selected, dropped := a.Select([]*block.Block{tooLarge}, 100, 0)
	require.Empty(t, selected)
	require.Len(t, dropped, 1)
	require.Equal(t, "budget_exceeded", dropped[0].Metadata["selection_reason"])
}

func TestCalculateTypeBudgetsRedistributesInactiveFractions(t *testing.T) {
	blocks := []*block.Block{newOptional(block.Doc, 1, 1.0)}
	budgets := calculateTypeBudgets(blocks, 1000, DefaultConfig().PerTypeFractions)
	require.Equal(t, 1000, budgets["doc"])
	require.NotContains(t, budgets, "tool")
}

func idsOf(blocks []*block.Block) []string {
	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
	}
	return ids
}
