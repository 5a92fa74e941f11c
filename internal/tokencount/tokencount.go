// Package tokencount wraps tiktoken-go so every other package counts and
// truncates tokens the same way, with a deterministic character-based
// estimate as a last resort when the encoder can't be loaded.
package tokencount

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const truncationMarker = "\n... [TRUNCATED] ...\n"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// Count returns the number of tokens in text for the given model. Model is
// accepted for interface parity with the model-aware reference
// implementation but this build always uses the cl100k_base encoding; a
// length/4 estimate is used if the encoder is unavailable.
func Count(text, model string) int {
	e, err := encoding()
	if err != nil {
		return len(text) / 4
	}
	return len(e.Encode(text, nil, nil))
}

// TruncateToTokens keeps at most maxTokens tokens from the head of text.
func TruncateToTokens(text string, maxTokens int, model string) string {
	if maxTokens <= 0 {
		return ""
	}
	e, err := encoding()
	if err != nil {
		if len(text) <= maxTokens*4 {
			return text
		}
		return text[:maxTokens*4]
	}
	toks := e.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text
	}
	return e.Decode(toks[:maxTokens])
}

// HeadTailTruncate keeps a head fraction and a tail fraction of text within
// maxTokens, joined by a truncation marker, so instructions near the end of
// a long block survive truncation. headFrac is the fraction of the
// (marker-reserved) budget given to the head; the rest goes to the tail.
func HeadTailTruncate(text string, maxTokens int, model string, headFrac float64) string {
	if maxTokens <= 0 {
		return ""
	}
	markerTokens := Count(truncationMarker, model)
	if markerTokens < 8 {
		markerTokens = 8
	}
	budget := maxTokens - markerTokens
	if budget < 1 {
		budget = 1
	}
	headBudget := int(float64(budget) * headFrac)
	if headBudget < 1 {
		headBudget = 1
	}
	tailBudget := budget - headBudget
	if tailBudget < 1 {
		tailBudget = 1
	}

	head := TruncateToTokens(text, headBudget, model)

	e, err := encoding()
	var tail string
	if err != nil {
		if len(text) <= tailBudget*4 {
			tail = text
		} else {
			tail = text[len(text)-tailBudget*4:]
		}
	} else {
		toks := e.Encode(text, nil, nil)
		if len(toks) <= tailBudget {
			tail = text
		} else {
			tail = e.Decode(toks[len(toks)-tailBudget:])
		}
	}

	var b strings.Builder
	b.WriteString(head)
	b.WriteString(truncationMarker)
	b.WriteString(tail)
	return b.String()
}
