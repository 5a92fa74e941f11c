// Package httpapi exposes the pipeline over HTTP: /v1/optimize returns an
// optimized message list, /v1/chat runs the same optimization and returns a
// chat-shaped response without calling any LLM provider, /v1/health and
// /v1/metrics serve operational status.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"promptopt/internal/canonicalize"
	"promptopt/internal/config"
	"promptopt/internal/dashboardclient"
	"promptopt/internal/obs"
	"promptopt/internal/pipeline"
)

// Server wires the pipeline, dashboard client, and auth verifier into a
// gin engine.
type Server struct {
	pipeline   *pipeline.Pipeline
	dashboard  *dashboardclient.Client
	verifier   *APIKeyVerifier
	metrics    *obs.Metrics
	logger     obs.Logger
	defaults   config.Runtime
	engine     *gin.Engine
}

// NewServer constructs the gin engine and registers every route.
func NewServer(pl *pipeline.Pipeline, dash *dashboardclient.Client, verifier *APIKeyVerifier, metrics *obs.Metrics, logger obs.Logger) *Server {
	if obs.IsNil(logger) {
		logger = obs.NewComponentLogger("HTTPAPI")
	}
	s := &Server{
		pipeline:  pl,
		dashboard: dash,
		verifier:  verifier,
		metrics:   metrics,
		logger:    logger,
		defaults:  config.Defaults(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/", s.handleRoot)
	r.GET("/v1/health", s.handleHealth)
	r.GET("/v1/metrics", s.handleMetrics)

	authorized := r.Group("/v1")
	authorized.Use(s.authMiddleware())
	authorized.POST("/optimize", s.handleOptimize)
	authorized.POST("/chat", s.handleChat)

	s.engine = r
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.verifier == nil {
			c.Next()
			return
		}
		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.GetHeader("Authorization")
		}
		if !s.verifier.Verify(c.Request.Context(), key) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "promptopt",
		"endpoints": []gin.H{
			{"method": "POST", "path": "/v1/optimize", "description": "Optimize a prompt's blocks"},
			{"method": "POST", "path": "/v1/chat", "description": "Optimize then forward to a provider"},
			{"method": "GET", "path": "/v1/health", "description": "Health check"},
			{"method": "GET", "path": "/v1/metrics", "description": "Prometheus metrics"},
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	dashboardStatus := "disabled"
	if s.dashboard != nil && s.dashboard.Enabled() {
		dashboardStatus = "configured"
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Dashboard: dashboardStatus})
}

func (s *Server) handleMetrics(c *gin.Context) {
	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}

func (s *Server) resolveConfig(ctx context.Context, req OptimizeRequest) config.Runtime {
	cfg := s.defaults

	if s.dashboard != nil && s.dashboard.Enabled() && req.TenantID != "" && req.ProjectID != "" {
		if raw, err := s.dashboard.FetchUserConfig(ctx, req.TenantID, req.ProjectID); err == nil && raw != nil {
			cfg = config.Merge(cfg, mapRawDashboardConfig(raw))
		}
	}

	if req.Model != "" {
		cfg.Model = req.Model
	}
	if req.MaxTokens != nil {
		cfg.MaxInputTokens = *req.MaxTokens
	}
	return cfg
}

func mapRawDashboardConfig(raw map[string]any) config.Overrides {
	dc := config.DashboardConfig{}
	if v, ok := raw["maxHistoryMessages"].(float64); ok {
		n := int(v)
		dc.MaxHistoryMessages = &n
	}
	if v, ok := raw["maxTokensPerCall"].(float64); ok {
		n := int(v)
		dc.MaxTokensPerCall = &n
	}
	if v, ok := raw["maxInputTokens"].(float64); ok {
		n := int(v)
		dc.MaxInputTokens = &n
	}
	if v, ok := raw["includeSystemMessages"].(bool); ok {
		dc.IncludeSystemMsgs = &v
	}
	if v, ok := raw["aggressiveness"].(string); ok {
		dc.Aggressiveness = &v
	}
	if v, ok := raw["preserveCodeBlocks"].(bool); ok {
		dc.PreserveCodeBlocks = &v
	}
	if v, ok := raw["preserveFormatting"].(bool); ok {
		dc.PreserveFormatting = &v
	}
	if v, ok := raw["targetCostReduction"].(float64); ok {
		dc.TargetCostReduction = &v
	}
	return config.MapDashboardConfig(dc)
}

func toCanonicalizeMessages(messages []Message) []canonicalize.Message {
	out := make([]canonicalize.Message, len(messages))
	for i, m := range messages {
		out[i] = canonicalize.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func toCanonicalizeDocs(docs []Doc) []canonicalize.Doc {
	out := make([]canonicalize.Doc, len(docs))
	for i, d := range docs {
		out[i] = canonicalize.Doc{
			ID: d.ID, Text: d.Text, Content: d.Content, PageContent: d.PageContent,
			Source: d.Source, Metadata: d.Metadata,
		}
	}
	return out
}

func toCanonicalizeToolOutputs(outputs []ToolOutput) []canonicalize.ToolOutput {
	out := make([]canonicalize.ToolOutput, len(outputs))
	for i, o := range outputs {
		out[i] = canonicalize.ToolOutput{Tool: o.Tool, Text: o.Text}
	}
	return out
}

func toBlockInfos(infos []pipeline.BlockInfo) []BlockInfo {
	out := make([]BlockInfo, len(infos))
	for i, b := range infos {
		out[i] = BlockInfo{ID: b.ID, Type: b.Type, Tokens: b.Tokens, Reason: b.Reason}
	}
	return out
}

func (s *Server) runOptimize(c *gin.Context, req OptimizeRequest) (*pipeline.Result, error) {
	cfg := s.resolveConfig(c.Request.Context(), req)
	return s.pipeline.Optimize(c.Request.Context(), pipeline.Request{
		TenantID:    req.TenantID,
		Messages:    toCanonicalizeMessages(req.Messages),
		Tools:       req.Tools,
		RAGContext:  toCanonicalizeDocs(req.RAGContext),
		ToolOutputs: toCanonicalizeToolOutputs(req.ToolOutputs),
		Config:      cfg,
	})
}

func (s *Server) handleOptimize(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.runOptimize(c, req)
	if err != nil {
		s.metrics.RecordFailure("optimize")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, OptimizeResponse{
		Messages: fromCanonicalizeMessages(result.Messages),
		Stats: OptimizationStats{
			TokensBefore: result.TokensBefore, TokensAfter: result.TokensAfter,
			TokensSaved: result.TokensSaved, CompressionRatio: result.CompressionRatio,
			CacheHit: result.CacheHit, Route: result.Route, FallbackUsed: result.FallbackUsed,
			LatencyMS: result.LatencyMS,
		},
		Debug: DebugInfo{
			TraceID:        result.TraceID,
			SelectedBlocks: toBlockInfos(result.SelectedBlocks),
			DroppedBlocks:  toBlockInfos(result.DroppedBlocks),
			DashboardUsed:  s.dashboard != nil && s.dashboard.Enabled(),
		},
	})

	if s.dashboard != nil && s.dashboard.Enabled() {
		go s.emitEvent(req, result, "optimize")
	}
}

func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.runOptimize(c, req.OptimizeRequest)
	if err != nil {
		s.metrics.RecordFailure("chat")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Provider forwarding is the caller's concern in this deployment; this
	// endpoint returns the optimized messages as the assistant would see
	// them alongside the optimizer's own stats, without making an upstream
	// call itself.
	resp := ChatResponse{}
	resp.Optimizer.Stats = OptimizationStats{
		TokensBefore: result.TokensBefore, TokensAfter: result.TokensAfter,
		TokensSaved: result.TokensSaved, CompressionRatio: result.CompressionRatio,
		CacheHit: result.CacheHit, Route: result.Route, FallbackUsed: result.FallbackUsed,
		LatencyMS: result.LatencyMS,
	}
	resp.Optimizer.TraceID = result.TraceID
	resp.Optimizer.FeaturesUsed = featuresFromRoute(result.Route)
	resp.Choices = []ChatChoice{{
		Index:        0,
		Message:      lastAssistantOrEcho(result.Messages),
		FinishReason: "optimizer_only",
	}}

	c.JSON(http.StatusOK, resp)

	if s.dashboard != nil && s.dashboard.Enabled() {
		go s.emitEvent(req.OptimizeRequest, result, "chat")
	}
}

func (s *Server) emitEvent(req OptimizeRequest, result *pipeline.Result, endpoint string) {
	s.dashboard.EmitEvent(context.Background(), dashboardclient.OptimizationEvent{
		EventType:        "optimization",
		TenantID:         req.TenantID,
		ProjectID:        req.ProjectID,
		Model:            req.Model,
		Endpoint:         endpoint,
		TokensBefore:     result.TokensBefore,
		TokensAfter:      result.TokensAfter,
		TokensSaved:      result.TokensSaved,
		CompressionRatio: result.CompressionRatio,
		LatencyMS:        result.LatencyMS,
		Success:          true,
	})
	s.metrics.RecordDashboardEvent(true)
}

func fromCanonicalizeMessages(messages []canonicalize.Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func featuresFromRoute(route string) []string {
	var out []string
	for _, r := range []string{"heuristic", "semantic", "compression"} {
		if contains(route, r) {
			out = append(out, r)
		}
	}
	return out
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func lastAssistantOrEcho(messages []canonicalize.Message) Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return Message{Role: "assistant", Content: messages[i].Content}
		}
	}
	if len(messages) == 0 {
		return Message{Role: "assistant", Content: ""}
	}
	last := messages[len(messages)-1]
	return Message{Role: "assistant", Content: last.Content}
}
