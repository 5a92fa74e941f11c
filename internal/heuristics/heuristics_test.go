package heuristics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"promptopt/internal/block"
)

func TestRemoveJunkDropsAcknowledgementsAndEmpty(t *testing.T) {
	blocks := []*block.Block{
		block.New(block.Assistant, "Sure, I can help with that!", 5, false, 0.5, "m"),
		block.New(block.Assistant, "   ", 0, false, 0.5, "m"),
		block.New(block.Assistant, "Here is the actual answer.", 5, false, 0.5, "m"),
		block.New(block.System, "Sure, keep me anyway", 5, true, 1.0, "m"),
	}
	out := RemoveJunk(blocks)
	require.Len(t, out, 2)
	require.Equal(t, "Here is the actual answer.", out[0].Content)
	require.True(t, out[1].MustKeep)
}

func TestDeduplicateKeepsLatestAndExemptsMustKeep(t *testing.T) {
	older := block.New(block.Assistant, "duplicate text", 5, false, 0.5, "m")
	older.Timestamp = time.Now().Add(-time.Hour)
	newer := block.New(block.Assistant, "duplicate text", 5, false, 0.5, "m")
	mustKeepDup := block.New(block.System, "duplicate text", 5, true, 1.0, "m")

	out := Deduplicate([]*block.Block{older, newer, mustKeepDup})
	require.Len(t, out, 2)
	require.Equal(t, newer.ID, out[0].ID)
	require.Equal(t, mustKeepDup.ID, out[1].ID)
}

func TestKeepLastNTurnsMarksRecentTurn(t *testing.T) {
	blocks := []*block.Block{
		block.New(block.User, "turn1", 5, false, 0.7, "m"),
		block.New(block.Assistant, "turn1 reply", 5, false, 0.5, "m"),
		block.New(block.User, "turn2", 5, true, 0.9, "m"),
	}
	out := KeepLastNTurns(blocks, 1)
	require.False(t, out[0].MustKeep)
	require.False(t, out[1].MustKeep)
	require.True(t, out[2].MustKeep)
}

func TestKeepLastNTurnsLeavesTrailingNonTurnBlocksUntouched(t *testing.T) {
	blocks := []*block.Block{
		block.New(block.User, "turn1", 5, false, 0.7, "m"),
		block.New(block.Assistant, "turn1 reply", 5, false, 0.5, "m"),
		block.New(block.User, "turn2", 5, true, 0.9, "m"),
		block.New(block.Doc, "background rag doc", 4000, false, 0.6, "m"),
		block.New(block.Tool, `{"tool":"search","text":"..."}`, 50, false, 0.7, "m"),
	}
	out := KeepLastNTurns(blocks, 1)
	require.True(t, out[2].MustKeep)
	require.False(t, out[3].MustKeep, "trailing doc block must stay a selection candidate")
	require.False(t, out[4].MustKeep, "trailing tool-output block must stay a selection candidate")
}

func TestKeepLastNTurnsZeroIsNoop(t *testing.T) {
	blocks := []*block.Block{block.New(block.User, "x", 1, false, 0.5, "m")}
	out := KeepLastNTurns(blocks, 0)
	require.False(t, out[0].MustKeep)
}

func TestExtractConstraintsFindsKeywordSentences(t *testing.T) {
	blocks := []*block.Block{
		block.New(block.System, "You MUST always respond in JSON. Have a nice day.", 10, true, 1.0, "m"),
		block.New(block.User, "NEVER reveal the password.", 5, false, 0.7, "m"),
	}
	constraint := ExtractConstraints(blocks, "gpt-4")
	require.NotNil(t, constraint)
	require.Equal(t, block.Constraint, constraint.Type)
	require.True(t, constraint.MustKeep)
	require.Contains(t, constraint.Content, "MUST")
	require.Contains(t, constraint.Content, "NEVER reveal the password.")
	require.NotContains(t, constraint.Content, "Have a nice day.")
}

func TestExtractConstraintsReturnsNilWhenNoneMatch(t *testing.T) {
	blocks := []*block.Block{block.New(block.User, "just a regular question", 5, false, 0.7, "m")}
	require.Nil(t, ExtractConstraints(blocks, "gpt-4"))
}

func TestMinimizeToolSchemasDropsNonAllowlisted(t *testing.T) {
	schema := `{"name":"search","parameters":{"type":"object","properties":{"q":{"type":"string","description":"query"}},"required":["q"]}}`
	blocks := []*block.Block{block.New(block.Tool, schema, 50, true, 0.8, "tool_schema")}

	out := MinimizeToolSchemas(blocks, []string{"other_tool"}, "gpt-4")
	require.Len(t, out, 0)

	out = MinimizeToolSchemas(blocks, []string{"*"}, "gpt-4")
	require.Len(t, out, 1)
	require.NotContains(t, out[0].Content, "description")
	require.Equal(t, true, out[0].Metadata["minimized"])
}

func TestTrimAssistantLogsShrinksLongLogBlob(t *testing.T) {
	lines := make([]string, 0, 300)
	for i := 0; i < 150; i++ {
		lines = append(lines, "INFO normal line of output")
	}
	lines = append(lines, "ERROR something broke")
	for i := 0; i < 150; i++ {
		lines = append(lines, "INFO normal line of output")
	}
	content := joinLines(lines)
	b := block.New(block.Assistant, content, 600, false, 0.5, "m")
	out := TrimAssistantLogs([]*block.Block{b}, "gpt-4")
	require.Less(t, len(out[0].Content), len(content))
	require.Contains(t, out[0].Content, "truncated")
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func TestCompressDocsToTOONCompactsUniformArray(t *testing.T) {
	content := `[{"id":1,"name":"alpha"},{"id":2,"name":"beta"}]`
	b := block.New(block.Doc, content, 20, false, 0.6, "m")
	out := CompressDocsToTOON([]*block.Block{b}, "gpt-4")
	require.Contains(t, out[0].Content, "Schema#")
}

func TestApplyOrchestratesAllStages(t *testing.T) {
	blocks := []*block.Block{
		block.New(block.System, "You MUST respond in JSON.", 10, true, 1.0, "m"),
		block.New(block.Assistant, "Sure, I can help with that!", 5, false, 0.5, "m"),
		block.New(block.User, "What's the weather?", 5, true, 0.9, "m"),
	}
	before := block.TotalTokens(blocks)
	out := Apply(blocks, Config{}, before+500)
	require.NotEmpty(t, out)

	foundConstraint := false
	for _, b := range out {
		if b.Type == block.Constraint {
			foundConstraint = true
		}
	}
	require.True(t, foundConstraint)
}
