package heuristics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"promptopt/internal/block"
	"promptopt/internal/tokencount"
)

const toonMaxItems = 200

// compressJSONTOON rewrites a JSON array of uniform objects into a compact
// "Schema#{keys}[{row}|{row}...]" tabular form, with the first object's
// keys in sorted order. Returns content unchanged
// (ok=false) if the input isn't a non-empty array of objects, or if the
// tabular form isn't strictly shorter than the original.
func compressJSONTOON(content string) (string, bool) {
	var data []map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil || len(data) == 0 {
		return content, false
	}
	if len(data) > toonMaxItems {
		data = data[:toonMaxItems]
	}

	keys := make([]string, 0, len(data[0]))
	for k := range data[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]string, 0, len(data))
	for _, item := range data {
		vals := make([]string, len(keys))
		for i, k := range keys {
			if v, ok := item[k]; ok && v != nil {
				vals[i] = fmt.Sprintf("%v", v)
			}
		}
		rows = append(rows, "{"+strings.Join(vals, ",")+"}")
	}

	toon := fmt.Sprintf("Schema#{%s}[%s]", strings.Join(keys, ","), strings.Join(rows, "|"))
	if len(toon) >= len(content) {
		return content, false
	}
	return toon, true
}

// CompressDocsToTOON applies compressJSONTOON to every DOC block, replacing
// content only when the tabular form is strictly shorter.
func CompressDocsToTOON(blocks []*block.Block, model string) []*block.Block {
	for _, b := range blocks {
		if b.Type != block.Doc {
			continue
		}
		compressed, ok := compressJSONTOON(b.Content)
		if ok {
			b.SetContent(compressed, tokencount.Count(compressed, model))
		}
	}
	return blocks
}
