package heuristics

import (
	"strings"

	"promptopt/internal/block"
	"promptopt/internal/tokencount"
)

var logErrorKeywords = []string{
	"ERROR", "CRITICAL", "Exception", "Traceback", "Failed", "failed", "FATAL", "panic", "Panic",
}

const logErrorWindow = 30
const logTailLines = 80
const logTruncatedMarker = "... [logs truncated] ..."

var logSignalKeywords = []string{"INFO", "DEBUG", "ERROR", "WARNING"}

// TrimLogs keeps lines near error-signal keywords plus the trailing window
// of a log blob, bridging any gap between kept ranges with a truncation
// marker. Content of at most logTailLines (80) lines is returned unchanged.
func TrimLogs(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= logTailLines {
		return content
	}

	keep := make([]bool, len(lines))
	for i, line := range lines {
		for _, kw := range logErrorKeywords {
			if strings.Contains(line, kw) {
				lo := i - logErrorWindow
				if lo < 0 {
					lo = 0
				}
				hi := i + logErrorWindow
				if hi >= len(lines) {
					hi = len(lines) - 1
				}
				for j := lo; j <= hi; j++ {
					keep[j] = true
				}
				break
			}
		}
	}
	for i := len(lines) - logTailLines; i < len(lines); i++ {
		keep[i] = true
	}

	var out []string
	lastIdx := -1
	for i, k := range keep {
		if !k {
			continue
		}
		if lastIdx != -1 && i > lastIdx+1 {
			out = append(out, logTruncatedMarker)
		}
		out = append(out, lines[i])
		lastIdx = i
	}
	return strings.Join(out, "\n")
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// TrimAssistantLogs applies TrimLogs to ASSISTANT blocks large enough and
// log-shaped enough to be worth it, keeping the trimmed content only if
// it's strictly shorter.
func TrimAssistantLogs(blocks []*block.Block, model string) []*block.Block {
	for _, b := range blocks {
		if b.Type != block.Assistant {
			continue
		}
		if b.Tokens <= 500 || !strings.Contains(b.Content, "\n") || !containsAny(b.Content, logSignalKeywords) {
			continue
		}
		trimmed := TrimLogs(b.Content)
		if len(trimmed) < len(b.Content) {
			b.SetContent(trimmed, tokencount.Count(trimmed, model))
		}
	}
	return blocks
}
