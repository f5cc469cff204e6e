package service

import (
	"testing"

	"go.uber.org/zap"
)

func TestExtractUsage_PromptAndCompletionAliases(t *testing.T) {
	resp := &LLMResponse{
		RawUsage: map[string]interface{}{
			"input_tokens":     float64(120),
			"output_tokens":    float64(45),
		},
	}
	prompt, completion := ExtractUsage(resp)
	if prompt != 120 || completion != 45 {
		t.Fatalf("expected (120, 45), got (%d, %d)", prompt, completion)
	}
}

func TestExtractUsage_FallsBackToTokensUsed(t *testing.T) {
	resp := &LLMResponse{TokensUsed: 300}
	prompt, completion := ExtractUsage(resp)
	if prompt != 0 || completion != 300 {
		t.Fatalf("expected (0, 300), got (%d, %d)", prompt, completion)
	}
}

func TestContextWindow_KnownAndUnknownModel(t *testing.T) {
	if w := ContextWindow("claude-3-5-sonnet"); w != 200_000 {
		t.Fatalf("expected known window 200000, got %d", w)
	}
	if w := ContextWindow("some-future-model"); w != defaultContextWindow {
		t.Fatalf("expected default window for unknown model, got %d", w)
	}
}

func TestTokenTracker_Banding(t *testing.T) {
	tracker := NewTokenTracker(TokenTrackerThresholds{Info: 0.75, Warning: 0.85, Critical: 0.95}, zap.NewNop())

	cases := []struct {
		tokens int64
		want   ContextStatus
	}{
		{tokens: 10_000, want: StatusNormal},
		{tokens: 97_000, want: StatusInfo},
		{tokens: 110_000, want: StatusWarning},
		{tokens: 125_000, want: StatusCritical},
	}

	for _, c := range cases {
		report := tracker.Band(c.tokens, "gpt-4o")
		if report.Status != c.want {
			t.Errorf("tokens=%d: expected %s, got %s (ratio=%.3f)", c.tokens, c.want, report.Status, report.Ratio)
		}
	}
}

func TestStatusReport_NeedsCompaction(t *testing.T) {
	warning := StatusReport{Status: StatusWarning}
	critical := StatusReport{Status: StatusCritical}
	normal := StatusReport{Status: StatusNormal}

	if !warning.NeedsCompaction() || !critical.NeedsCompaction() {
		t.Fatalf("expected warning and critical to need compaction")
	}
	if normal.NeedsCompaction() {
		t.Fatalf("expected normal status not to need compaction")
	}
}
