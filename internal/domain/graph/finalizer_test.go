package graph

import (
	stdctx "context"
	"testing"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
)

func TestFinalizer_Run_NonEmptyAssistantContentNeedsNoWork(t *testing.T) {
	finalizer := NewFinalizer(FinalizerConfig{}, &fakeChatModel{}, nil)
	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "the final answer", nil),
	}
	state := newState(t, messages, 2, 10)

	patch, err := finalizer.Run(stdctx.Background(), state)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(patch.AppendMessages) != 0 {
		t.Errorf("expected no extra message when content is already non-empty, got %d", len(patch.AppendMessages))
	}
}

func TestFinalizer_Run_EmptyContentRequestsSummary(t *testing.T) {
	summaryMsg, err := entity.NewAssistantMessage("s0", "here is the summary", nil)
	if err != nil {
		t.Fatal(err)
	}
	chat := &fakeChatModel{resp: &ChatResponse{Message: summaryMsg}}
	finalizer := NewFinalizer(FinalizerConfig{}, chat, nil)

	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "x"}}),
		mustToolMessage(t, "t0", "c1", "tool output"),
	}
	state := newState(t, messages, 2, 10)

	patch, err := finalizer.Run(stdctx.Background(), state)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(patch.AppendMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(patch.AppendMessages))
	}
	if patch.AppendMessages[0].Content() != "here is the summary" {
		t.Errorf("Content() = %q, want summary text", patch.AppendMessages[0].Content())
	}
}

func TestFinalizer_Run_SummaryFailureFallsBackToLastAssistantText(t *testing.T) {
	chat := &fakeChatModel{err: stdctxErr{}}
	finalizer := NewFinalizer(FinalizerConfig{}, chat, nil)

	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "earlier narration", []entity.ToolCallRequest{{CallID: "c1", Name: "x"}}),
		mustToolMessage(t, "t0", "c1", "tool output"),
		mustAssistantWithCalls(t, "a1", "", []entity.ToolCallRequest{{CallID: "c2", Name: "y"}}),
		mustToolMessage(t, "t1", "c2", "more output"),
	}
	state := newState(t, messages, 3, 10)

	patch, err := finalizer.Run(stdctx.Background(), state)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(patch.AppendMessages) != 1 {
		t.Fatalf("expected 1 fallback message, got %d", len(patch.AppendMessages))
	}
	if patch.AppendMessages[0].Content() != "earlier narration" {
		t.Errorf("Content() = %q, want fallback to earlier narration", patch.AppendMessages[0].Content())
	}
}

type stdctxErr struct{}

func (stdctxErr) Error() string { return "summary request failed" }
