package context

import (
	"context"
	"testing"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
)

type fakeModelClient struct {
	response string
	err      error
}

func (f *fakeModelClient) Generate(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func testConfig() CompressorConfig {
	return CompressorConfig{
		KeepRecentMessages:    2,
		CompactMiddleMessages: 3,
		MaxOutputTokens:       1440,
		EmergencyTruncateKeep: 3,
		SummarizeRatioCutoff:  0.40,
		CompactStreakCutoff:   3,
	}
}

func buildMessages(n int) []*entity.Message {
	msgs := make([]*entity.Message, 0, n)
	for i := 0; i < n; i++ {
		m, _ := entity.NewMessage("m"+string(rune('a'+i)), entity.RoleHuman, "content")
		msgs = append(msgs, m)
	}
	return msgs
}

func TestCompressor_PartitionSplitsCorrectly(t *testing.T) {
	c := NewCompressor(testConfig(), nil, nil)

	sys, _ := entity.NewMessage("sys", entity.RoleSystem, "system prompt")
	msgs := append([]*entity.Message{sys}, buildMessages(10)...)

	p := c.Partition(msgs)
	if len(p.Anchors) != 1 {
		t.Fatalf("expected 1 anchor, got %d", len(p.Anchors))
	}
	if len(p.Recent) != 2 {
		t.Fatalf("expected 2 recent messages, got %d", len(p.Recent))
	}
	if len(p.Middle) != 3 {
		t.Fatalf("expected 3 middle messages, got %d", len(p.Middle))
	}
	if len(p.Old) != 5 {
		t.Fatalf("expected 5 old messages, got %d", len(p.Old))
	}
}

func TestCompressor_CompressProducesAnchorSummaryRecent(t *testing.T) {
	client := &fakeModelClient{response: "a tidy summary"}
	c := NewCompressor(testConfig(), client, nil)

	sys, _ := entity.NewMessage("sys", entity.RoleSystem, "system prompt")
	msgs := append([]*entity.Message{sys}, buildMessages(10)...)

	result := c.Compress(context.Background(), msgs, StrategyCompact, 0)
	if result.Fallback {
		t.Fatalf("expected a successful compression, not a fallback")
	}
	// anchors(1) + summary(1) + recent(2)
	if len(result.Messages) != 4 {
		t.Fatalf("expected 4 messages after compression, got %d", len(result.Messages))
	}
	if !result.Messages[0].IsSystem() {
		t.Fatalf("expected first message to be the system anchor")
	}
	if result.Messages[1].Content() != "a tidy summary" {
		t.Fatalf("expected the second message to be the summary, got %q", result.Messages[1].Content())
	}
}

func TestCompressor_EmergencyTruncateOnFailure(t *testing.T) {
	client := &fakeModelClient{err: context.DeadlineExceeded}
	c := NewCompressor(testConfig(), client, nil)

	sys, _ := entity.NewMessage("sys", entity.RoleSystem, "system prompt")
	msgs := append([]*entity.Message{sys}, buildMessages(10)...)

	result := c.Compress(context.Background(), msgs, StrategyCompact, 0)
	if !result.Fallback {
		t.Fatalf("expected fallback to emergency truncation")
	}
	// anchors(1) + EmergencyTruncateKeep(3)
	if len(result.Messages) != 4 {
		t.Fatalf("expected 4 messages after emergency truncation, got %d", len(result.Messages))
	}
}

func TestCompressor_AutoSwitchesToSummarizeOnPoorRatio(t *testing.T) {
	c := NewCompressor(testConfig(), nil, nil)
	got := c.ResolveStrategy(StrategyAuto, 0.55)
	if got != StrategySummarize {
		t.Fatalf("expected summarize on poor ratio, got %s", got)
	}
	got = c.ResolveStrategy(StrategyAuto, 0.1)
	if got != StrategyCompact {
		t.Fatalf("expected compact on good ratio, got %s", got)
	}
}

func TestCompressor_AutoSwitchesToSummarizeAfterCompactStreak(t *testing.T) {
	client := &fakeModelClient{response: "summary"}
	c := NewCompressor(testConfig(), client, nil)

	sys, _ := entity.NewMessage("sys", entity.RoleSystem, "s")
	msgs := append([]*entity.Message{sys}, buildMessages(10)...)

	for i := 0; i < 3; i++ {
		c.Compress(context.Background(), msgs, StrategyAuto, 0)
	}
	if c.ResolveStrategy(StrategyAuto, 0) != StrategySummarize {
		t.Fatalf("expected summarize after %d compact streak", c.config.CompactStreakCutoff)
	}
}

func TestCompressor_NoOpWhenNothingToSummarize(t *testing.T) {
	c := NewCompressor(testConfig(), nil, nil)
	msgs := buildMessages(2)

	result := c.Compress(context.Background(), msgs, StrategyCompact, 0)
	if result.Fallback {
		t.Fatalf("expected no-op, not a fallback, when under the recent window")
	}
	if len(result.Messages) != 2 {
		t.Fatalf("expected unchanged message list, got %d", len(result.Messages))
	}
}
