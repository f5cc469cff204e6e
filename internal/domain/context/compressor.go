package context

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
)

// Strategy selects how the middle/old partitions get summarized.
type Strategy string

const (
	StrategyCompact   Strategy = "compact"
	StrategySummarize Strategy = "summarize"
	StrategyAuto      Strategy = "auto"
)

// ModelClient is the narrow summarization backend the Compressor needs —
// any chat model able to turn a prompt into text qualifies, so the domain
// layer stays decoupled from graph.ChatModel's richer tool-calling contract.
type ModelClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CompressorConfig mirrors config.CompactionConfig; duplicated here (rather
// than imported) to keep the domain layer free of an infrastructure
// dependency — the application layer copies the values across at wiring
// time.
type CompressorConfig struct {
	KeepRecentMessages    int
	CompactMiddleMessages int
	MaxOutputTokens       int
	EmergencyTruncateKeep int
	SummarizeRatioCutoff  float64
	CompactStreakCutoff   int
}

// Partition is the message split computed prior to compression (spec.md
// §4.5): anchors are every System message, recent is the tail of
// non-system messages kept verbatim, middle is summarized at normal
// aggressiveness, old more aggressively.
type Partition struct {
	Anchors []*entity.Message
	Recent  []*entity.Message
	Middle  []*entity.Message
	Old     []*entity.Message
}

// Partition splits messages into anchors/recent/middle/old per the
// compressor's configured window sizes.
func (c *Compressor) Partition(messages []*entity.Message) Partition {
	var anchors, nonSystem []*entity.Message
	for _, m := range messages {
		if m.IsSystem() {
			anchors = append(anchors, m)
		} else {
			nonSystem = append(nonSystem, m)
		}
	}

	recentCount := c.config.KeepRecentMessages
	if recentCount > len(nonSystem) {
		recentCount = len(nonSystem)
	}
	recentStart := len(nonSystem) - recentCount
	recent := nonSystem[recentStart:]
	beforeRecent := nonSystem[:recentStart]

	middleCount := c.config.CompactMiddleMessages
	if middleCount > len(beforeRecent) {
		middleCount = len(beforeRecent)
	}
	middleStart := len(beforeRecent) - middleCount
	middle := beforeRecent[middleStart:]
	old := beforeRecent[:middleStart]

	return Partition{Anchors: anchors, Recent: recent, Middle: middle, Old: old}
}

// CompressionResult is what the compressor returns to the planner.
type CompressionResult struct {
	Messages []*entity.Message
	Ratio    float64
	Strategy Strategy
	Fallback bool // true if emergency truncation was used
}

// Compressor reduces a message history to fit the context window,
// generalized from the teacher's AgentLoop.compactMessages (compact/
// summarize prompts) and domain/context's Pruner/LLMSummarizer (tokenizer,
// adaptive-prune idiom) into the spec's anchors/recent/middle/old
// partition with compact/summarize/auto strategy selection.
type Compressor struct {
	config        CompressorConfig
	client        ModelClient
	compactStreak int
	logger        *zap.Logger
}

// NewCompressor binds a ModelClient (summarization backend) and a
// CompressorConfig to a Compressor. client may be nil — Compress then
// always falls back to emergency truncation.
func NewCompressor(config CompressorConfig, client ModelClient, logger *zap.Logger) *Compressor {
	return &Compressor{
		config: config,
		client: client,
		logger: logger,
	}
}

// ResolveStrategy implements the auto rule: switch to summarize if the
// last compression ratio was poor (> SummarizeRatioCutoff) or the compact
// streak has reached CompactStreakCutoff since the last summarize.
func (c *Compressor) ResolveStrategy(requested Strategy, lastRatio float64) Strategy {
	if requested != StrategyAuto {
		return requested
	}
	if lastRatio > c.config.SummarizeRatioCutoff || c.compactStreak >= c.config.CompactStreakCutoff {
		return StrategySummarize
	}
	return StrategyCompact
}

// Compress partitions messages, summarizes middle+old per strategy, and
// returns [anchors..., summary_message, recent...]. On summarization
// failure or an empty summary, falls back to emergency truncation —
// keeping all anchors and the most recent EmergencyTruncateKeep messages —
// which is never itself skipped.
func (c *Compressor) Compress(ctx context.Context, messages []*entity.Message, requested Strategy, lastRatio float64) CompressionResult {
	partition := c.Partition(messages)
	toSummarize := append(append([]*entity.Message{}, partition.Old...), partition.Middle...)

	if len(toSummarize) == 0 {
		return CompressionResult{Messages: messages, Ratio: 0, Strategy: requested}
	}

	strategy := c.ResolveStrategy(requested, lastRatio)
	summary, err := c.summarize(ctx, toSummarize, strategy)
	if err != nil || summary == "" {
		if c.logger != nil {
			c.logger.Warn("compression summarization failed, using emergency truncation", zap.Error(err))
		}
		return c.emergencyTruncate(messages, partition.Anchors)
	}

	if strategy == StrategyCompact {
		c.compactStreak++
	} else {
		c.compactStreak = 0
	}

	summaryMsg, _ := entity.NewMessage("compressed-"+string(strategy), entity.RoleSystem, summary)
	result := make([]*entity.Message, 0, len(partition.Anchors)+1+len(partition.Recent))
	result = append(result, partition.Anchors...)
	result = append(result, summaryMsg)
	result = append(result, partition.Recent...)

	ratio := float64(len(result)) / float64(maxInt(len(messages), 1))

	return CompressionResult{Messages: result, Ratio: ratio, Strategy: strategy}
}

// emergencyTruncate keeps every anchor and the most recent
// EmergencyTruncateKeep messages verbatim, dropping everything else. This
// is the guaranteed fallback: it never fails, so compression always leaves
// the caller with a bounded message list.
func (c *Compressor) emergencyTruncate(messages []*entity.Message, anchors []*entity.Message) CompressionResult {
	keep := c.config.EmergencyTruncateKeep
	if keep <= 0 {
		keep = 150
	}

	var nonSystem []*entity.Message
	for _, m := range messages {
		if !m.IsSystem() {
			nonSystem = append(nonSystem, m)
		}
	}
	if keep > len(nonSystem) {
		keep = len(nonSystem)
	}
	tail := nonSystem[len(nonSystem)-keep:]

	result := make([]*entity.Message, 0, len(anchors)+len(tail))
	result = append(result, anchors...)
	result = append(result, tail...)

	return CompressionResult{Messages: result, Ratio: 1.0, Fallback: true}
}

func (c *Compressor) summarize(ctx context.Context, messages []*entity.Message, strategy Strategy) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("no summarization client configured")
	}

	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString("[")
		sb.WriteString(string(m.Role()))
		sb.WriteString("]: ")
		sb.WriteString(m.Content())
		sb.WriteString("\n")
	}

	prompt := compactPrompt
	if strategy == StrategySummarize {
		prompt = summarizePrompt
	}
	fullPrompt := fmt.Sprintf(prompt, sb.String())

	summary, err := c.client.Generate(ctx, fullPrompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

const compactPrompt = `Produce a structured summary of the conversation below, around 1000 characters, preserving file paths, tool-call shapes, errors encountered, and decisions made. Drop verbatim code bodies; keep only paths and change summaries.

%s

Summary:`

const summarizePrompt = `Produce a terse abstract of the conversation below, at most 200 characters.

%s

Abstract:`

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
