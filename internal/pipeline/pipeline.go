// Package pipeline wires every stage — canonicalize, heuristics, semantic
// retrieval, compression, validate, fallback — into the single Optimize
// call the HTTP layer drives. The embedding service and the vector store
// are constructed once, in New; if the vector store cannot be built, the
// pipeline runs without it. The utility scorer and the compressor are
// constructed once, on first use.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"promptopt/internal/block"
	"promptopt/internal/budget"
	"promptopt/internal/canonicalize"
	"promptopt/internal/compressor"
	"promptopt/internal/config"
	"promptopt/internal/diversify"
	"promptopt/internal/embedding"
	"promptopt/internal/heuristics"
	"promptopt/internal/obs"
	"promptopt/internal/resultcache"
	"promptopt/internal/scoring"
	"promptopt/internal/validate"
	"promptopt/internal/vectorstore"
)

// Request is a single optimize/chat call's input.
type Request struct {
	TenantID    string
	Messages    []canonicalize.Message
	Tools       map[string]any
	RAGContext  []canonicalize.Doc
	ToolOutputs []canonicalize.ToolOutput
	Config      config.Runtime
}

// BlockInfo summarizes one block's disposition for the debug response.
type BlockInfo struct {
	ID     string
	Type   string
	Tokens int
	Reason string
}

// Result is a completed optimize call's outcome.
type Result struct {
	Messages         []canonicalize.Message
	TokensBefore     int
	TokensAfter      int
	TokensSaved      int
	CompressionRatio float64
	CacheHit         bool
	Route            string
	FallbackUsed     bool
	LatencyMS        int64
	TraceID          string
	SelectedBlocks   []BlockInfo
	DroppedBlocks    []BlockInfo
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEmbeddingService overrides the default hashing embedder.
func WithEmbeddingService(svc embedding.Service) Option {
	return func(p *Pipeline) {
		if svc != nil {
			p.embeddingSvc = svc
		}
	}
}

// WithVectorStore overrides the default chromem-go-backed store.
func WithVectorStore(vs *vectorstore.Store) Option {
	return func(p *Pipeline) {
		if vs != nil {
			p.vecStore = vs
		}
	}
}

// WithLearnedCompressor installs a model-backed compression backend in
// place of the default extractive one.
func WithLearnedCompressor(lc compressor.LearnedCompressor) Option {
	return func(p *Pipeline) {
		p.learnedCompressor = lc
	}
}

// WithCache overrides the default in-process result cache.
func WithCache(c *resultcache.Cache) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.cache = c
		}
	}
}

// WithLogger injects a custom logger (used by tests).
func WithLogger(logger obs.Logger) Option {
	return func(p *Pipeline) {
		if !obs.IsNil(logger) {
			p.logger = logger
		}
	}
}

// WithMetrics overrides the default metrics recorder.
func WithMetrics(m *obs.Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithBudgetConfig overrides the default per-type token fractions.
func WithBudgetConfig(cfg budget.Config) Option {
	return func(p *Pipeline) {
		p.allocator = budget.NewAllocator(cfg)
	}
}

// Pipeline is the stateful request-scoped orchestrator; a single instance
// is constructed once at startup and reused across requests.
type Pipeline struct {
	logger    obs.Logger
	metrics   *obs.Metrics
	cache     *resultcache.Cache
	allocator *budget.Allocator

	embeddingSvc      embedding.Service
	vecStore          *vectorstore.Store
	learnedCompressor compressor.LearnedCompressor

	scorerOnce sync.Once
	scorer     *scoring.Scorer

	compressorOnce sync.Once
	compress       *compressor.Compressor
}

// New constructs a Pipeline. Every lazy service falls back to its
// dependency-free default (hashing embeddings, extractive compression) if
// not overridden by an Option.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:    obs.NewComponentLogger("Pipeline"),
		metrics:   obs.NewMetrics(),
		cache:     resultcache.New(10000, 600*time.Second),
		allocator: budget.NewAllocator(budget.DefaultConfig()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.embeddingSvc == nil {
		p.embeddingSvc = embedding.NewHashingService(0, 0)
	}
	if p.vecStore == nil {
		if vs, err := vectorstore.New(p.embeddingSvc, 64); err == nil {
			p.vecStore = vs
		} else {
			p.logger.Warn("vector store construction failed, semantic retrieval will skip history lookup: %v", err)
		}
	}
	return p
}

func (p *Pipeline) scorerService() *scoring.Scorer {
	p.scorerOnce.Do(func() {
		p.scorer = scoring.New(p.embeddingSvc, scoring.DefaultWeights)
	})
	return p.scorer
}

func (p *Pipeline) compressorService(cfg config.Runtime) *compressor.Compressor {
	p.compressorOnce.Do(func() {
		p.compress = compressor.New(compressor.Config{
			Ratio:                 cfg.Compression.TargetRatio,
			FaithfulnessThreshold: cfg.Compression.FaithfulnessThreshold,
			Model:                 cfg.Model,
		}, p.learnedCompressor)
	})
	return p.compress
}

// Optimize runs the full pipeline for req, returning the optimized
// message list and the stats needed to populate an API response.
func (p *Pipeline) Optimize(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	traceID := uuid.NewString()
	cfg := req.Config

	fp := resultcache.Fingerprint{
		Messages:    req.Messages,
		Tools:       req.Tools,
		RAGContext:  req.RAGContext,
		ToolOutputs: req.ToolOutputs,
		Model:       cfg.Model,
		Config:      cfg,
	}
	cacheKey := resultcache.Key(fp)

	if entry, ok := p.cache.Get(cacheKey); ok {
		p.metrics.RecordOptimization(obs.OptimizationStats{
			TokensBefore: entry.TokensBefore,
			TokensAfter:  entry.TokensAfter,
			TokensSaved:  entry.TokensBefore - entry.TokensAfter,
			LatencySec:   time.Since(start).Seconds(),
			Route:        "cache_hit",
			CacheHit:     true,
		}, "optimize")
		return &Result{
			Messages:         toMessages(entry.Messages),
			TokensBefore:     entry.TokensBefore,
			TokensAfter:      entry.TokensAfter,
			TokensSaved:      entry.TokensBefore - entry.TokensAfter,
			CompressionRatio: block.CompressionRatio(entry.TokensBefore, entry.TokensAfter),
			CacheHit:         true,
			Route:            entry.Route,
			FallbackUsed:     entry.FallbackUsed,
			TraceID:          traceID,
			LatencyMS:        time.Since(start).Milliseconds(),
			SelectedBlocks:   fromCacheBlockInfos(entry.SelectedBlocks),
			DroppedBlocks:    fromCacheBlockInfos(entry.DroppedBlocks),
		}, nil
	}

	ctx, span := obs.StartStageSpan(ctx, "canonicalize", traceID)
	messages := req.Messages
	if !cfg.IncludeSystemMessages {
		messages = dropSystemMessages(messages)
	}
	blocks := canonicalize.Canonicalize(canonicalize.Request{
		Messages:    messages,
		Tools:       req.Tools,
		RAGContext:  req.RAGContext,
		ToolOutputs: req.ToolOutputs,
		Model:       cfg.Model,
	})
	originalBlocks := make(map[string]*block.Block, len(blocks))
	for _, b := range blocks {
		originalBlocks[b.ID] = b
	}
	tokensBefore := block.TotalTokens(blocks)
	obs.EndSpan(span, nil)

	ctx, span = obs.StartStageSpan(ctx, "heuristics", traceID)
	blocks = heuristics.Apply(blocks, heuristics.Config{
		KeepLastNTurns: cfg.KeepLastNTurns,
		ToolAllowlist:  cfg.ToolAllowlist,
		Model:          cfg.Model,
	}, tokensBefore)
	tokensAfterHeuristics := block.TotalTokens(blocks)
	obs.EndSpan(span, nil)

	route := []string{"heuristic"}

	if cfg.Semantic.Enabled && tokensAfterHeuristics > cfg.MaxInputTokens {
		ctx, span = obs.StartStageSpan(ctx, "semantic", traceID)
		blocks = p.applySemantic(ctx, req.TenantID, blocks, cfg)
		route = append(route, "semantic")
		obs.EndSpan(span, nil)
	}

	if cfg.Compression.Enabled && block.TotalTokens(blocks) > cfg.MaxInputTokens {
		_, span = obs.StartStageSpan(ctx, "compression", traceID)
		comp := p.compressorService(cfg)
		blocks, _ = compressor.CompressBlocks(comp, blocks)
		route = append(route, "compression")
		obs.EndSpan(span, nil)
	}

	validateCfg := validate.Config{
		MaxInputTokens:   cfg.MaxInputTokens,
		SafetyMargin:     cfg.SafetyMarginTokens,
		Model:            cfg.Model,
		FallbackStrategy: cfg.FallbackStrategy,
		KeepRecentTurns:  cfg.KeepLastNTurns,
	}
	fallbackUsed := false
	if ok, reasons := validate.Validate(blocks, validateCfg); !ok {
		p.logger.Warn("validation failed, applying fallback: %v", reasons)
		blocks, _ = validate.ApplyFallback(blocks, validateCfg)
		fallbackUsed = true
	}

	finalMessages := canonicalize.BlocksToMessages(blocks)
	tokensAfter := block.TotalTokens(blocks)

	if tokensAfter < tokensBefore && minSavingsGateTrips(tokensBefore, tokensAfter, cfg) {
		p.logger.Debug("min-savings gate tripped (saved=%d ratio=%.3f), reverting to original messages", tokensBefore-tokensAfter, savingsRatio(tokensBefore, tokensAfter))
		finalMessages = req.Messages
		tokensAfter = tokensBefore
		route = append(route, "original")
		fallbackUsed = true
	}

	result := &Result{
		Messages:         finalMessages,
		TokensBefore:     tokensBefore,
		TokensAfter:      tokensAfter,
		TokensSaved:      tokensBefore - tokensAfter,
		CompressionRatio: block.CompressionRatio(tokensBefore, tokensAfter),
		Route:            strings.Join(route, "+"),
		FallbackUsed:     fallbackUsed,
		TraceID:          traceID,
		LatencyMS:        time.Since(start).Milliseconds(),
	}
	result.SelectedBlocks, result.DroppedBlocks = bookkeeping(originalBlocks, blocks)

	p.cache.Set(cacheKey, resultcache.Entry{
		Messages:       toMapMessages(finalMessages),
		TokensBefore:   tokensBefore,
		TokensAfter:    tokensAfter,
		Route:          result.Route,
		FallbackUsed:   result.FallbackUsed,
		SelectedBlocks: toCacheBlockInfos(result.SelectedBlocks),
		DroppedBlocks:  toCacheBlockInfos(result.DroppedBlocks),
	})

	p.metrics.RecordOptimization(obs.OptimizationStats{
		TokensBefore: tokensBefore,
		TokensAfter:  tokensAfter,
		TokensSaved:  tokensBefore - tokensAfter,
		LatencySec:   time.Since(start).Seconds(),
		Route:        result.Route,
		CacheHit:     false,
	}, "optimize")

	return result, nil
}

// applySemantic scores optional blocks (plus any relevant history pulled
// from the tenant's vector store) against a query built from the last
// user turns, diversifies the top candidates with MMR, then reallocates
// the token budget over must_keep blocks plus the diverse set.
func (p *Pipeline) applySemantic(ctx context.Context, tenantID string, blocks []*block.Block, cfg config.Runtime) []*block.Block {
	query := lastUserQuery(blocks, 3)

	var mustKeep, optional []*block.Block
	for _, b := range blocks {
		if b.MustKeep {
			mustKeep = append(mustKeep, b)
		} else {
			optional = append(optional, b)
		}
	}
	if len(optional) == 0 {
		return blocks
	}

	svc := p.embeddingSvc
	queryEmb, err := svc.EmbedSingle(ctx, query)
	if err != nil {
		p.logger.Warn("query embedding failed, skipping semantic retrieval: %v", err)
		return blocks
	}

	if p.vecStore != nil {
		if matches, err := p.vecStore.SimilaritySearch(ctx, tenantID, query, cfg.Semantic.TopK, cfg.Semantic.SimilarityThreshold); err != nil {
			p.logger.Warn("vector store similarity search failed: %v", err)
		} else {
			optional = append(optional, matchesToBlocks(matches)...)
		}
	}

	texts := make([]string, len(optional))
	for i, b := range optional {
		texts[i] = b.Content
	}
	embeddings, err := svc.Embed(ctx, texts)
	if err != nil {
		p.logger.Warn("block embedding failed, skipping semantic retrieval: %v", err)
		return blocks
	}

	scorer := p.scorerService()
	now := time.Now()
	candidates := make([]diversify.Candidate, len(optional))
	for i, b := range optional {
		utility := scorer.Utility(b, queryEmb, embeddings[i], now)
		b.Metadata["utility_score"] = utility
		candidates[i] = diversify.Candidate{Block: b, Utility: utility, Embedding: embeddings[i]}
	}

	diverseBlocks := diversify.MMR(svc, candidates, queryEmb, cfg.Semantic.MMRLambda, cfg.Semantic.TopK)

	combined := append([]*block.Block(nil), mustKeep...)
	combined = append(combined, diverseBlocks...)

	selected, _ := p.allocator.Select(combined, cfg.MaxInputTokens, cfg.SafetyMarginTokens)

	if p.vecStore != nil {
		for _, b := range mustKeep {
			if err := p.vecStore.StoreBlock(ctx, tenantID, b); err != nil {
				p.logger.Debug("vector store block upsert failed: %v", err)
			}
		}
	}

	return selected
}

func matchesToBlocks(matches []vectorstore.Match) []*block.Block {
	out := make([]*block.Block, len(matches))
	for i, m := range matches {
		out[i] = m.Block
	}
	return out
}

func lastUserQuery(blocks []*block.Block, n int) string {
	var userTexts []string
	for _, b := range blocks {
		if b.Type == block.User {
			userTexts = append(userTexts, b.Content)
		}
	}
	if len(userTexts) > n {
		userTexts = userTexts[len(userTexts)-n:]
	}
	return strings.Join(userTexts, "\n")
}

// minSavingsGateTrips reports whether an optimization saved too little to be
// worth returning: either the absolute tokens saved or the savings ratio
// falls below the resolved config's floor. A zero-valued floor (the default)
// never trips, since any non-negative savings clears it.
func minSavingsGateTrips(before, after int, cfg config.Runtime) bool {
	saved := before - after
	if saved < cfg.MinTokensSaved {
		return true
	}
	return savingsRatio(before, after) < cfg.MinSavingsRatio
}

func savingsRatio(before, after int) float64 {
	if before <= 0 {
		return 0
	}
	return float64(before-after) / float64(before)
}

func dropSystemMessages(messages []canonicalize.Message) []canonicalize.Message {
	out := make([]canonicalize.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != "system" {
			out = append(out, m)
		}
	}
	return out
}

func bookkeeping(original map[string]*block.Block, final []*block.Block) (selected, dropped []BlockInfo) {
	keep := make(map[string]bool, len(final))
	for _, b := range final {
		keep[b.ID] = true
		selected = append(selected, BlockInfo{ID: b.ID, Type: string(b.Type), Tokens: b.Tokens, Reason: "selected"})
	}
	for id, b := range original {
		if keep[id] {
			continue
		}
		reason := "removed_by_heuristics"
		if r, ok := b.Metadata["selection_reason"].(string); ok {
			reason = r
		}
		dropped = append(dropped, BlockInfo{ID: id, Type: string(b.Type), Tokens: b.Tokens, Reason: reason})
	}
	return selected, dropped
}

func toCacheBlockInfos(infos []BlockInfo) []resultcache.BlockInfo {
	out := make([]resultcache.BlockInfo, len(infos))
	for i, b := range infos {
		out[i] = resultcache.BlockInfo{ID: b.ID, Type: b.Type, Tokens: b.Tokens, Reason: b.Reason}
	}
	return out
}

func fromCacheBlockInfos(infos []resultcache.BlockInfo) []BlockInfo {
	if len(infos) == 0 {
		return nil
	}
	out := make([]BlockInfo, len(infos))
	for i, b := range infos {
		out[i] = BlockInfo{ID: b.ID, Type: b.Type, Tokens: b.Tokens, Reason: b.Reason}
	}
	return out
}

func toMessages(raw []map[string]string) []canonicalize.Message {
	out := make([]canonicalize.Message, len(raw))
	for i, m := range raw {
		out[i] = canonicalize.Message{Role: m["role"], Content: m["content"]}
	}
	return out
}

func toMapMessages(messages []canonicalize.Message) []map[string]string {
	out := make([]map[string]string, len(messages))
	for i, m := range messages {
		out[i] = map[string]string{"role": m.Role, "content": m.Content}
	}
	return out
}
