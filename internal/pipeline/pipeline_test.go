package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"promptopt/internal/canonicalize"
	"promptopt/internal/config"
)

func TestOptimizeSmallRequestPassesThroughUnchanged(t *testing.T) {
	pl := New()
	cfg := config.Defaults()

	result, err := pl.Optimize(context.Background(), Request{
		TenantID: "tenant-1",
		Messages: []canonicalize.Message{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "What is the capital of France?"},
		},
		Config: cfg,
	})
	require.NoError(t, err)
	require.False(t, result.CacheHit)
	require.Equal(t, "heuristic", result.Route)
	require.NotEmpty(t, result.Messages)
	require.False(t, result.FallbackUsed)
	require.NotEmpty(t, result.TraceID)
}

func TestOptimizeSecondIdenticalCallHitsCache(t *testing.T) {
	pl := New()
	cfg := config.Defaults()
	req := Request{
		TenantID: "tenant-1",
		Messages: []canonicalize.Message{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "Summarize the quarterly report."},
		},
		Config: cfg,
	}

	first, err := pl.Optimize(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := pl.Optimize(context.Background(), req)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.TokensAfter, second.TokensAfter)
}

func TestOptimizeCacheHitPreservesFallbackAndBlockInfo(t *testing.T) {
	pl := New()
	cfg := config.Defaults()
	cfg.MaxInputTokens = 50
	cfg.SafetyMarginTokens = 5
	req := Request{
		TenantID: "tenant-4",
		Messages: []canonicalize.Message{
			{Role: "user", Content: strings.Repeat("background that will not fit the tiny budget. ", 200)},
		},
		Config: cfg,
	}

	first, err := pl.Optimize(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := pl.Optimize(context.Background(), req)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.FallbackUsed, second.FallbackUsed)
	require.Equal(t, first.SelectedBlocks, second.SelectedBlocks)
	require.Equal(t, first.DroppedBlocks, second.DroppedBlocks)
}

func TestOptimizeOverBudgetTriggersSemanticAndCompression(t *testing.T) {
	pl := New()
	cfg := config.Defaults()
	cfg.MaxInputTokens = 200
	cfg.SafetyMarginTokens = 20

	var messages []canonicalize.Message
	messages = append(messages, canonicalize.Message{Role: "system", Content: "You are a helpful assistant. You MUST always answer in JSON."})
	for i := 0; i < 10; i++ {
		messages = append(messages,
			canonicalize.Message{Role: "user", Content: strings.Repeat("This is a long piece of filler conversation text. ", 20)},
			canonicalize.Message{Role: "assistant", Content: strings.Repeat("This is a long assistant reply with more filler text. ", 20)},
		)
	}
	messages = append(messages, canonicalize.Message{Role: "user", Content: "What should I do next?"})

	result, err := pl.Optimize(context.Background(), Request{
		TenantID: "tenant-2",
		Messages: messages,
		Config:   cfg,
	})
	require.NoError(t, err)
	require.Contains(t, result.Route, "heuristic")
	require.Contains(t, result.Route, "semantic")
	require.Contains(t, result.Route, "compression")
	require.NotEmpty(t, result.Messages)
}

func TestOptimizeEmptyMessagesFallsBack(t *testing.T) {
	pl := New()
	cfg := config.Defaults()
	result, err := pl.Optimize(context.Background(), Request{
		TenantID: "tenant-3",
		Messages: nil,
		Config:   cfg,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.True(t, result.FallbackUsed)
}
