package httpapi

// Message is a single chat message in a request body.
type Message struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// Doc is a RAG context document; exactly one of Text/Content/PageContent
// is expected.
type Doc struct {
	ID          string         `json:"id"`
	Text        string         `json:"text"`
	Content     string         `json:"content"`
	PageContent string         `json:"page_content"`
	Source      string         `json:"source"`
	Metadata    map[string]any `json:"metadata"`
}

// ToolOutput is a single tool execution result.
type ToolOutput struct {
	Tool string `json:"tool"`
	Text string `json:"text"`
}

// OptimizeRequest is the /v1/optimize request body.
type OptimizeRequest struct {
	Messages           []Message         `json:"messages" binding:"required,min=1"`
	Model              string            `json:"model"`
	MaxTokens          *int              `json:"max_tokens"`
	TenantID           string            `json:"tenant_id"`
	ProjectID          string            `json:"project_id"`
	Tools              map[string]any    `json:"tools"`
	RAGContext         []Doc             `json:"rag_context"`
	ToolOutputs        []ToolOutput      `json:"tool_outputs"`
	UserPrefsOverrides map[string]any    `json:"user_prefs_overrides"`
}

// ChatRequest extends OptimizeRequest with provider-forwarding fields.
type ChatRequest struct {
	OptimizeRequest
	Provider           string   `json:"provider"`
	Temperature        *float64 `json:"temperature"`
	MaxCompletionTokens *int    `json:"max_completion_tokens"`
}

// BlockInfo mirrors pipeline.BlockInfo for JSON responses.
type BlockInfo struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Tokens int    `json:"tokens"`
	Reason string `json:"reason"`
}

// OptimizationStats reports what the optimizer did.
type OptimizationStats struct {
	TokensBefore     int     `json:"tokens_before"`
	TokensAfter      int     `json:"tokens_after"`
	TokensSaved      int     `json:"tokens_saved"`
	CompressionRatio float64 `json:"compression_ratio"`
	CacheHit         bool    `json:"cache_hit"`
	Route            string  `json:"route"`
	FallbackUsed     bool    `json:"fallback_used"`
	LatencyMS        int64   `json:"latency_ms"`
}

// DebugInfo carries the trace id and the selected/dropped block lists,
// present on every response so callers can correlate with dashboard/trace
// tooling. It does not include the resolved config or per-stage timings.
type DebugInfo struct {
	TraceID        string         `json:"trace_id"`
	SelectedBlocks []BlockInfo    `json:"selected_blocks"`
	DroppedBlocks  []BlockInfo    `json:"dropped_blocks"`
	DashboardUsed  bool           `json:"dashboard_used"`
}

// OptimizeResponse is the /v1/optimize response body.
type OptimizeResponse struct {
	Messages []Message         `json:"messages"`
	Stats    OptimizationStats `json:"stats"`
	Debug    DebugInfo         `json:"debug"`
}

// ProviderUsage has the shape of an LLM provider's usage block.
type ProviderUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatChoice is a single completion choice in a chat response.
type ChatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatResponse is the /v1/chat response body: one choice that echoes the
// last optimized user message, plus the optimizer's own stats. No provider
// is called, so Usage stays zero.
type ChatResponse struct {
	Choices  []ChatChoice  `json:"choices"`
	Usage    ProviderUsage `json:"usage"`
	Optimizer struct {
		Stats        OptimizationStats `json:"stats"`
		TraceID      string            `json:"trace_id"`
		FeaturesUsed []string          `json:"features_used"`
	} `json:"optimizer"`
}

// HealthResponse is the /v1/health response body.
type HealthResponse struct {
	Status    string `json:"status"`
	Dashboard string `json:"dashboard"`
}
