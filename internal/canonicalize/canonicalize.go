// Package canonicalize converts the heterogeneous request shapes (chat
// messages, tool schemas, RAG documents, tool outputs) into the Block IR
// the rest of the pipeline operates on, and converts optimized blocks back
// into messages at the end.
package canonicalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"promptopt/internal/block"
	"promptopt/internal/tokencount"
)

// Message is the minimal chat message shape accepted from a request.
type Message struct {
	Role    string
	Content string
}

// Doc is an accepted RAG document shape. Exactly one of Text, Content, or
// PageContent is expected to be populated; they are tried in that order,
// matching the three doc shapes this system accepts.
type Doc struct {
	ID          string
	Text        string
	Content     string
	PageContent string
	Source      string
	Metadata    map[string]any
}

// ToolOutput is a single tool execution result.
type ToolOutput struct {
	Tool string
	Text string
}

// Request bundles every canonicalize input.
type Request struct {
	Messages    []Message
	Tools       map[string]any
	RAGContext  []Doc
	ToolOutputs []ToolOutput
	Model       string
}

// MessagesToBlocks maps chat messages to blocks, applying this system's
// fixed must_keep/priority table: system messages are always kept at
// priority 1.0; the last user message is kept at priority 0.9 (earlier
// user messages float at 0.7); assistant messages sit at 0.5; unrecognized
// roles are treated as assistant-shaped at priority 0.3.
func MessagesToBlocks(messages []Message, model string) []*block.Block {
	blocks := make([]*block.Block, 0, len(messages))
	for i, msg := range messages {
		role := msg.Role
		if role == "" {
			role = "user"
		}

		var typ block.Type
		var mustKeep bool
		var priority float64

		switch role {
		case "system":
			typ, mustKeep, priority = block.System, true, 1.0
		case "user":
			typ = block.User
			mustKeep = i == len(messages)-1
			if mustKeep {
				priority = 0.9
			} else {
				priority = 0.7
			}
		case "assistant":
			typ, mustKeep, priority = block.Assistant, false, 0.5
		default:
			typ, mustKeep, priority = block.Assistant, false, 0.3
		}

		tokens := tokencount.Count(msg.Content, model)
		b := block.New(typ, msg.Content, tokens, mustKeep, priority, "message")
		b.Metadata["index"] = i
		blocks = append(blocks, b)
	}
	return blocks
}

// ToolsToBlocks serializes a tool schema map into a single must-keep TOOL
// block. Returns nil if tools is empty.
func ToolsToBlocks(tools map[string]any, model string) []*block.Block {
	if len(tools) == 0 {
		return nil
	}
	raw, err := json.Marshal(tools)
	content := string(raw)
	if err != nil {
		content = fmt.Sprintf("%v", tools)
	}
	tokens := tokencount.Count(content, model)
	b := block.New(block.Tool, content, tokens, true, 0.8, "tool_schema")
	return []*block.Block{b}
}

// RAGContextToBlocks maps retrieved documents to optional DOC blocks,
// accepting the three document shapes this system supports and skipping
// documents with no usable content.
func RAGContextToBlocks(docs []Doc, model string) []*block.Block {
	blocks := make([]*block.Block, 0, len(docs))
	for i, doc := range docs {
		content := doc.Text
		if content == "" {
			content = doc.Content
		}
		if content == "" {
			content = doc.PageContent
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		source := doc.Source
		if source == "" {
			if v, ok := doc.Metadata["source"]; ok {
				source, _ = v.(string)
			}
		}
		if source == "" {
			if v, ok := doc.Metadata["type"]; ok {
				source, _ = v.(string)
			}
		}
		if source == "" {
			source = "rag"
		}

		docID := doc.ID
		if docID == "" {
			if v, ok := doc.Metadata["id"]; ok {
				docID, _ = v.(string)
			}
		}
		if docID == "" {
			docID = fmt.Sprintf("doc-%d", i)
		}

		tokens := tokencount.Count(content, model)
		b := block.New(block.Doc, content, tokens, false, 0.6, source)
		b.Metadata["doc_id"] = docID
		blocks = append(blocks, b)
	}
	return blocks
}

// ToolOutputsToBlocks maps tool execution outputs to optional TOOL blocks.
func ToolOutputsToBlocks(outputs []ToolOutput, model string) []*block.Block {
	blocks := make([]*block.Block, 0, len(outputs))
	for i, out := range outputs {
		name := out.Tool
		if name == "" {
			name = fmt.Sprintf("tool-%d", i)
		}
		tokens := tokencount.Count(out.Text, model)
		b := block.New(block.Tool, out.Text, tokens, false, 0.7, "tool_output")
		b.Metadata["tool_name"] = name
		blocks = append(blocks, b)
	}
	return blocks
}

// Canonicalize converts a whole request into the unified Block IR, in
// messages, tools, RAG context, tool outputs order.
func Canonicalize(req Request) []*block.Block {
	var blocks []*block.Block
	blocks = append(blocks, MessagesToBlocks(req.Messages, req.Model)...)
	blocks = append(blocks, ToolsToBlocks(req.Tools, req.Model)...)
	blocks = append(blocks, RAGContextToBlocks(req.RAGContext, req.Model)...)
	blocks = append(blocks, ToolOutputsToBlocks(req.ToolOutputs, req.Model)...)
	return blocks
}

// BlocksToMessages converts system/user/assistant blocks back to messages,
// dropping tool/doc/constraint blocks (which never round-trip into chat
// messages directly).
func BlocksToMessages(blocks []*block.Block) []Message {
	messages := make([]Message, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case block.System, block.User, block.Assistant:
			messages = append(messages, Message{Role: string(b.Type), Content: b.Content})
		}
	}
	return messages
}
