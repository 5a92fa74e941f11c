package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountNonEmpty(t *testing.T) {
	n := Count("hello world, this is a short sentence.", "gpt-4")
	require.Greater(t, n, 0)
}

func TestTruncateToTokensShrinks(t *testing.T) {
	text := strings.Repeat("word ", 500)
	full := Count(text, "gpt-4")
	truncated := TruncateToTokens(text, 10, "gpt-4")
	got := Count(truncated, "gpt-4")
	require.LessOrEqual(t, got, 10)
	require.Less(t, got, full)
}

func TestTruncateToTokensNoopWhenShort(t *testing.T) {
	text := "short"
	require.Equal(t, text, TruncateToTokens(text, 1000, "gpt-4"))
}

func TestHeadTailTruncateKeepsMarker(t *testing.T) {
	text := strings.Repeat("line of content here. ", 400)
	out := HeadTailTruncate(text, 50, "gpt-4", 0.4)
	require.Contains(t, out, "[TRUNCATED]")
	require.LessOrEqual(t, Count(out, "gpt-4"), 60)
}

func TestHeadTailTruncateZeroBudget(t *testing.T) {
	require.Equal(t, "", HeadTailTruncate("anything", 0, "gpt-4", 0.5))
}
