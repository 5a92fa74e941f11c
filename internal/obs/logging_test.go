package obs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewComponentLoggerDoesNotPanic(t *testing.T) {
	logger := NewComponentLogger("TestComponent")
	require.NotPanics(t, func() {
		logger.Debug("debug %d", 1)
		logger.Info("info %s", "ok")
		logger.Warn("warn %v", true)
		logger.Error("error: %w-ish %s", "oops")
	})
}

func TestNopLoggerDiscardsEverything(t *testing.T) {
	logger := NopLogger()
	require.NotPanics(t, func() {
		logger.Debug("x")
		logger.Info("x")
		logger.Warn("x")
		logger.Error("x")
	})
}

func TestIsNilDetectsNilInterface(t *testing.T) {
	var logger Logger
	require.True(t, IsNil(logger))
	require.False(t, IsNil(NopLogger()))
}
