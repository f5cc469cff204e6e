package service

import (
	"strings"

	"go.uber.org/zap"
)

// ContextStatus bands cumulative prompt-token usage against a model's
// context window, generalizing ContextGuard's 2-tier warn/hard ratio into
// the spec's 4-tier normal/info/warning/critical scale.
type ContextStatus string

const (
	StatusNormal   ContextStatus = "normal"
	StatusInfo     ContextStatus = "info"
	StatusWarning  ContextStatus = "warning"
	StatusCritical ContextStatus = "critical"
)

// promptTokenAliases and completionTokenAliases are the provider field
// names the tracker recognizes in a raw usage block, tried in order.
var promptTokenAliases = []string{"prompt_tokens", "input_tokens", "promptTokens", "inputTokens"}
var completionTokenAliases = []string{"completion_tokens", "output_tokens", "completionTokens", "outputTokens"}

// defaultContextWindow is used for any model id absent from the window
// table — conservative so status bands trip sooner rather than later.
const defaultContextWindow = 128_000

// modelContextWindows is a static table of known model context windows in
// tokens, looked up by model id.
var modelContextWindows = map[string]int{
	"gpt-4o":            128_000,
	"gpt-4o-mini":        128_000,
	"gpt-4-turbo":        128_000,
	"claude-3-5-sonnet":  200_000,
	"claude-3-opus":      200_000,
	"claude-3-haiku":     200_000,
	"gemini-1.5-pro":     1_000_000,
	"gemini-1.5-flash":   1_000_000,
}

// TokenTrackerThresholds are the configured ratio cutoffs, validated to lie
// in [0.5, 0.95] by config.Validate.
type TokenTrackerThresholds struct {
	Info     float64
	Warning  float64
	Critical float64
}

// TokenTracker extracts usage from model responses and bands cumulative
// prompt-token consumption into a ContextStatus, generalized from
// ContextGuard's estimate-based Check into reading the model's own
// reported usage.
type TokenTracker struct {
	thresholds TokenTrackerThresholds
	logger     *zap.Logger
}

// NewTokenTracker binds threshold configuration to a tracker.
func NewTokenTracker(thresholds TokenTrackerThresholds, logger *zap.Logger) *TokenTracker {
	return &TokenTracker{thresholds: thresholds, logger: logger}
}

// ExtractUsage reads prompt/completion token counts out of a response's raw
// usage block, trying each known provider alias in turn. Falls back to
// TokensUsed as the completion count when no block is present, matching
// providers that only report a single combined figure.
func ExtractUsage(resp *LLMResponse) (promptTokens, completionTokens int64) {
	if resp == nil {
		return 0, 0
	}
	if resp.RawUsage != nil {
		promptTokens = lookupTokenAlias(resp.RawUsage, promptTokenAliases)
		completionTokens = lookupTokenAlias(resp.RawUsage, completionTokenAliases)
		if promptTokens > 0 || completionTokens > 0 {
			return promptTokens, completionTokens
		}
	}
	return 0, int64(resp.TokensUsed)
}

func lookupTokenAlias(usage map[string]interface{}, aliases []string) int64 {
	for _, key := range aliases {
		v, ok := usage[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int64:
			return n
		case int:
			return int64(n)
		case float64:
			return int64(n)
		}
	}
	return 0
}

// ContextWindow looks up the context window for modelID, falling back to a
// conservative default for unknown models. A "<provider>/<model>" id is
// looked up by its model part.
func ContextWindow(modelID string) int {
	if idx := strings.LastIndex(modelID, "/"); idx >= 0 {
		modelID = modelID[idx+1:]
	}
	if window, ok := modelContextWindows[modelID]; ok {
		return window
	}
	return defaultContextWindow
}

// StatusReport is the tracker's banding result for one planner step.
type StatusReport struct {
	CumulativePromptTokens int64
	ContextWindow          int
	Ratio                  float64
	Status                 ContextStatus
}

// Band computes the ContextStatus for cumulativePromptTokens against
// modelID's context window.
func (t *TokenTracker) Band(cumulativePromptTokens int64, modelID string) StatusReport {
	window := ContextWindow(modelID)
	ratio := float64(cumulativePromptTokens) / float64(window)

	status := StatusNormal
	switch {
	case ratio >= t.thresholds.Critical:
		status = StatusCritical
	case ratio >= t.thresholds.Warning:
		status = StatusWarning
	case ratio >= t.thresholds.Info:
		status = StatusInfo
	}

	report := StatusReport{
		CumulativePromptTokens: cumulativePromptTokens,
		ContextWindow:          window,
		Ratio:                  ratio,
		Status:                 status,
	}

	if t.logger != nil && status != StatusNormal {
		t.logger.Info("context window status",
			zap.String("status", string(status)),
			zap.Int64("cumulative_prompt_tokens", cumulativePromptTokens),
			zap.Int("context_window", window),
			zap.Float64("ratio", ratio),
		)
	}

	return report
}

// NeedsCompaction reports whether status warrants triggering the context
// compressor (warning or critical).
func (r StatusReport) NeedsCompaction() bool {
	return r.Status == StatusWarning || r.Status == StatusCritical
}
