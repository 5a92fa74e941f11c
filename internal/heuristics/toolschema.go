package heuristics

import (
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"

	"promptopt/internal/block"
	"promptopt/internal/tokencount"
)

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func minimizeParameters(params map[string]any) map[string]any {
	out := map[string]any{}
	if t, ok := params["type"]; ok {
		out["type"] = t
	}
	if props, ok := params["properties"].(map[string]any); ok {
		minProps := map[string]any{}
		for name, raw := range props {
			spec, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			entry := map[string]any{}
			if t, ok := spec["type"]; ok {
				entry["type"] = t
			}
			if e, ok := spec["enum"]; ok {
				entry["enum"] = e
			}
			minProps[name] = entry
		}
		out["properties"] = minProps
	}
	if req, ok := params["required"]; ok {
		out["required"] = req
	}
	return out
}

// MinimizeToolSchemas rewrites TOOL blocks to keep only name/parameters
// (with descriptions stripped)/required, dropping any tool whose name isn't
// in allowlist unless allowlist contains "*". Malformed JSON is repaired
// with jsonrepair before being given up on; a block that still can't be
// parsed is left untouched.
func MinimizeToolSchemas(blocks []*block.Block, allowlist []string, model string) []*block.Block {
	wildcard := contains(allowlist, "*")
	out := make([]*block.Block, 0, len(blocks))

	for _, b := range blocks {
		if b.Type != block.Tool {
			out = append(out, b)
			continue
		}

		var schema map[string]any
		if err := json.Unmarshal([]byte(b.Content), &schema); err != nil {
			repaired, rerr := jsonrepair.JSONRepair(b.Content)
			if rerr != nil || json.Unmarshal([]byte(repaired), &schema) != nil {
				out = append(out, b)
				continue
			}
		}

		name, _ := schema["name"].(string)
		if !wildcard && !contains(allowlist, name) {
			continue
		}

		minimized := map[string]any{"name": name}
		if params, ok := schema["parameters"].(map[string]any); ok {
			minimized["parameters"] = minimizeParameters(params)
		}
		if req, ok := schema["required"]; ok {
			minimized["required"] = req
		}

		raw, err := json.Marshal(minimized)
		if err != nil {
			out = append(out, b)
			continue
		}

		nb := block.New(block.Tool, string(raw), tokencount.Count(string(raw), model), b.MustKeep, b.Priority, "tool_schema")
		for k, v := range b.Metadata {
			nb.Metadata[k] = v
		}
		nb.Metadata["minimized"] = true
		out = append(out, nb)
	}

	return out
}
