package block

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSetsFields(t *testing.T) {
	b := New(User, "Hello World", 3, true, 0.9, "message")
	require.Equal(t, User, b.Type)
	require.Equal(t, "Hello World", b.Content)
	require.True(t, b.MustKeep)
	require.Equal(t, 0.9, b.Priority)
	require.NotEmpty(t, b.ID)
	require.Nil(t, b.OriginalContent)
}

func TestFingerprintNormalizes(t *testing.T) {
	a := New(User, "  Hello World  ", 3, false, 0.5, "m")
	b := New(User, "hello world", 3, false, 0.5, "m")
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestSetContentStashesOriginalOnce(t *testing.T) {
	b := New(Doc, "original text", 2, false, 0.5, "doc")
	b.SetContent("shortened", 1)
	require.NotNil(t, b.OriginalContent)
	require.Equal(t, "original text", *b.OriginalContent)

	b.SetContent("shortened again", 1)
	require.Equal(t, "original text", *b.OriginalContent)
}

func TestTotalTokens(t *testing.T) {
	blocks := []*Block{
		New(User, "a", 5, false, 0.5, "m"),
		New(Assistant, "b", 7, false, 0.5, "m"),
	}
	require.Equal(t, 12, TotalTokens(blocks))
}

func TestCompressionRatio(t *testing.T) {
	require.Equal(t, 0.5, CompressionRatio(100, 50))
	require.Equal(t, 0.0, CompressionRatio(0, 0))
}
