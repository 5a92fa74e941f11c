// Package config implements the three-level configuration precedence this
// system runs on: process defaults, a tenant/dashboard override fetched
// per-request, and a request-level override, merged in that order. A nil
// pointer field at any level means "don't override" — it never resets a
// lower level back to zero.
package config

// SemanticConfig controls the semantic-retrieval stage.
type SemanticConfig struct {
	Enabled              bool
	TopK                 int
	SimilarityThreshold  float64
	MMRLambda            float64
}

// CompressionConfig controls the compression stage.
type CompressionConfig struct {
	Enabled               bool
	TargetRatio           float64
	FaithfulnessThreshold float64
	PreserveCodeBlocks    bool
	PreserveFormatting    bool
}

// BudgetConfig controls per-type token fractions.
type BudgetConfig struct {
	PerTypeFractions map[string]float64
}

// Runtime is the fully-resolved configuration a single optimize call runs
// with, after defaults, dashboard, and request overrides are merged.
type Runtime struct {
	Model                 string
	MaxInputTokens         int
	KeepLastNTurns         int
	IncludeSystemMessages  bool
	SafetyMarginTokens     int
	MinTokensSaved         int
	MinSavingsRatio        float64
	ToolAllowlist          []string
	FallbackStrategy       string
	CacheTTLSeconds        int
	TargetCostReduction    float64

	Semantic    SemanticConfig
	Compression CompressionConfig
	Budget      BudgetConfig
}

// Defaults matches the reference implementation's process-level defaults.
func Defaults() Runtime {
	return Runtime{
		Model:                 "gpt-4",
		MaxInputTokens:        8000,
		KeepLastNTurns:        2,
		IncludeSystemMessages: true,
		SafetyMarginTokens:    300,
		MinTokensSaved:        0,
		MinSavingsRatio:       0.0,
		ToolAllowlist:         []string{"*"},
		FallbackStrategy:      "truncate",
		CacheTTLSeconds:       600,
		Semantic: SemanticConfig{
			Enabled:             true,
			TopK:                20,
			SimilarityThreshold: 0.0,
			MMRLambda:           0.7,
		},
		Compression: CompressionConfig{
			Enabled:               true,
			TargetRatio:           0.5,
			FaithfulnessThreshold: 0.85,
		},
		Budget: BudgetConfig{
			PerTypeFractions: map[string]float64{
				"doc":       0.4,
				"assistant": 0.3,
				"tool":      0.2,
				"user":      0.1,
			},
		},
	}
}

// Overrides carries optional fields at dashboard or request precedence.
// A nil field leaves the corresponding Runtime field untouched.
type Overrides struct {
	Model                  *string
	MaxInputTokens         *int
	KeepLastNTurns         *int
	IncludeSystemMessages  *bool
	SafetyMarginTokens     *int
	MinTokensSaved         *int
	MinSavingsRatio        *float64
	ToolAllowlist          []string
	FallbackStrategy       *string

	SemanticEnabled     *bool
	CompressionEnabled  *bool
	CompressionRatio    *float64
	PreserveCodeBlocks  *bool
	PreserveFormatting  *bool
	TargetCostReduction *float64
}

// Merge applies overrides onto base, returning a new Runtime. Call twice
// in sequence — once with dashboard overrides, once with request
// overrides — to realize the full three-level precedence.
func Merge(base Runtime, o Overrides) Runtime {
	r := base
	if o.Model != nil {
		r.Model = *o.Model
	}
	if o.MaxInputTokens != nil {
		r.MaxInputTokens = *o.MaxInputTokens
	}
	if o.KeepLastNTurns != nil {
		r.KeepLastNTurns = *o.KeepLastNTurns
	}
	if o.IncludeSystemMessages != nil {
		r.IncludeSystemMessages = *o.IncludeSystemMessages
	}
	if o.SafetyMarginTokens != nil {
		r.SafetyMarginTokens = *o.SafetyMarginTokens
	}
	if o.MinTokensSaved != nil {
		r.MinTokensSaved = *o.MinTokensSaved
	}
	if o.MinSavingsRatio != nil {
		r.MinSavingsRatio = *o.MinSavingsRatio
	}
	if o.ToolAllowlist != nil {
		r.ToolAllowlist = o.ToolAllowlist
	}
	if o.FallbackStrategy != nil {
		r.FallbackStrategy = *o.FallbackStrategy
	}
	if o.SemanticEnabled != nil {
		r.Semantic.Enabled = *o.SemanticEnabled
	}
	if o.CompressionEnabled != nil {
		r.Compression.Enabled = *o.CompressionEnabled
	}
	if o.CompressionRatio != nil {
		r.Compression.TargetRatio = *o.CompressionRatio
	}
	if o.PreserveCodeBlocks != nil {
		r.Compression.PreserveCodeBlocks = *o.PreserveCodeBlocks
	}
	if o.PreserveFormatting != nil {
		r.Compression.PreserveFormatting = *o.PreserveFormatting
	}
	if o.TargetCostReduction != nil {
		r.TargetCostReduction = *o.TargetCostReduction
	}
	return r
}

// aggressivenessToRatio maps the dashboard's coarse aggressiveness knob to
// a concrete compression target ratio.
var aggressivenessToRatio = map[string]float64{
	"low":    0.3,
	"medium": 0.5,
	"high":   0.7,
}

// DashboardConfig is the subset of a dashboard project's settings this
// system understands, keyed the way the dashboard API returns them.
type DashboardConfig struct {
	MaxHistoryMessages  *int
	MaxTokensPerCall    *int
	MaxInputTokens      *int
	IncludeSystemMsgs   *bool
	Aggressiveness      *string
	PreserveCodeBlocks  *bool
	PreserveFormatting  *bool
	TargetCostReduction *float64
}

// MapDashboardConfig translates a dashboard project's raw settings into
// Overrides, following the reference implementation's field mapping:
// maxHistoryMessages -> KeepLastNTurns, maxTokensPerCall/maxInputTokens ->
// MaxInputTokens (maxTokensPerCall wins if both present), aggressiveness ->
// CompressionRatio via the low/medium/high table.
func MapDashboardConfig(dc DashboardConfig) Overrides {
	var o Overrides
	if dc.MaxHistoryMessages != nil {
		o.KeepLastNTurns = dc.MaxHistoryMessages
	}
	if dc.MaxInputTokens != nil {
		o.MaxInputTokens = dc.MaxInputTokens
	}
	if dc.MaxTokensPerCall != nil {
		o.MaxInputTokens = dc.MaxTokensPerCall
	}
	if dc.IncludeSystemMsgs != nil {
		o.IncludeSystemMessages = dc.IncludeSystemMsgs
	}
	if dc.Aggressiveness != nil {
		if ratio, ok := aggressivenessToRatio[*dc.Aggressiveness]; ok {
			o.CompressionRatio = &ratio
		}
	}
	if dc.PreserveCodeBlocks != nil {
		o.PreserveCodeBlocks = dc.PreserveCodeBlocks
	}
	if dc.PreserveFormatting != nil {
		o.PreserveFormatting = dc.PreserveFormatting
	}
	if dc.TargetCostReduction != nil {
		o.TargetCostReduction = dc.TargetCostReduction
	}
	return o
}
