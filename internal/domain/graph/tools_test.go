package graph

import (
	stdctx "context"
	"errors"
	"testing"
	"time"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/hitl"
	domaintool "github.com/ngoclaw/agentcore/internal/domain/tool"
)

type fakeRules struct{ set hitl.RuleSet }

func (f fakeRules) Rules() hitl.RuleSet { return f.set }

type fakeTool struct {
	name    string
	result  *domaintool.Result
	err     error
	delay   time.Duration
}

func (t *fakeTool) Name() string                          { return t.name }
func (t *fakeTool) Description() string                   { return "test tool" }
func (t *fakeTool) Kind() domaintool.Kind                  { return domaintool.KindRead }
func (t *fakeTool) Schema() map[string]interface{}         { return map[string]interface{}{} }
func (t *fakeTool) Execute(ctx stdctx.Context, args map[string]interface{}) (*domaintool.Result, error) {
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if t.err != nil {
		return nil, t.err
	}
	return t.result, nil
}

func newTestRegistry(tools ...struct {
	tool domaintool.Tool
	meta domaintool.Metadata
}) domaintool.Registry {
	reg := domaintool.NewInMemoryRegistry()
	for _, e := range tools {
		_ = reg.Register(e.tool, e.meta)
	}
	return reg
}

func TestToolsNode_Run_NoPendingCallsIsNoop(t *testing.T) {
	node := NewToolsNode(domaintool.NewInMemoryRegistry(), hitl.NewGate(fakeRules{}), ToolsConfig{}, nil)
	state := newState(t, []*entity.Message{mustMessage(t, "h0", entity.RoleHuman, "hi")}, 0, 10)

	patch, interrupt, err := node.Run(stdctx.Background(), state)
	if err != nil || interrupt != nil {
		t.Fatalf("unexpected interrupt/err: %+v %v", interrupt, err)
	}
	if len(patch.AppendMessages) != 0 {
		t.Errorf("expected no messages appended, got %d", len(patch.AppendMessages))
	}
}

func TestToolsNode_Run_SequentialProducesOneMessagePerCall(t *testing.T) {
	registry := newTestRegistry(struct {
		tool domaintool.Tool
		meta domaintool.Metadata
	}{&fakeTool{name: "read_file", result: &domaintool.Result{Success: true, Output: "contents"}}, domaintool.Metadata{Enabled: true}})

	node := NewToolsNode(registry, hitl.NewGate(fakeRules{}), ToolsConfig{}, nil)
	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{
			{CallID: "c1", Name: "read_file", Arguments: map[string]interface{}{}},
		}),
	}
	state := newState(t, messages, 1, 10)

	patch, interrupt, err := node.Run(stdctx.Background(), state)
	if err != nil || interrupt != nil {
		t.Fatalf("unexpected interrupt/err: %+v %v", interrupt, err)
	}
	if len(patch.AppendMessages) != 1 {
		t.Fatalf("expected 1 tool message, got %d", len(patch.AppendMessages))
	}
	if patch.AppendMessages[0].CallID() != "c1" || patch.AppendMessages[0].Content() != "contents" {
		t.Errorf("unexpected message: callID=%s content=%s", patch.AppendMessages[0].CallID(), patch.AppendMessages[0].Content())
	}
}

func TestToolsNode_Run_UnknownToolProducesFailureMessage(t *testing.T) {
	node := NewToolsNode(domaintool.NewInMemoryRegistry(), hitl.NewGate(fakeRules{}), ToolsConfig{}, nil)
	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "ghost_tool"}}),
	}
	state := newState(t, messages, 1, 10)

	patch, interrupt, err := node.Run(stdctx.Background(), state)
	if err != nil || interrupt != nil {
		t.Fatalf("unexpected interrupt/err: %+v %v", interrupt, err)
	}
	if len(patch.AppendMessages) != 1 {
		t.Fatalf("expected exactly 1 message even for an unknown tool, got %d", len(patch.AppendMessages))
	}
}

func TestToolsNode_Run_ExecutorErrorProducesFailureMessage(t *testing.T) {
	registry := newTestRegistry(struct {
		tool domaintool.Tool
		meta domaintool.Metadata
	}{&fakeTool{name: "bad_tool", err: errors.New("boom")}, domaintool.Metadata{Enabled: true}})

	node := NewToolsNode(registry, hitl.NewGate(fakeRules{}), ToolsConfig{}, nil)
	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "bad_tool"}}),
	}
	state := newState(t, messages, 1, 10)

	patch, interrupt, err := node.Run(stdctx.Background(), state)
	if err != nil || interrupt != nil {
		t.Fatalf("unexpected interrupt/err: %+v %v", interrupt, err)
	}
	if len(patch.AppendMessages) != 1 {
		t.Fatalf("expected 1 failure message, got %d", len(patch.AppendMessages))
	}
}

func TestToolsNode_Run_RequireApprovalSuspendsBeforeExecution(t *testing.T) {
	registry := newTestRegistry(struct {
		tool domaintool.Tool
		meta domaintool.Metadata
	}{&fakeTool{name: "shell_exec", result: &domaintool.Result{Success: true, Output: "ran"}}, domaintool.Metadata{Enabled: true}})

	rules := fakeRules{set: hitl.RuleSet{Rules: []hitl.Rule{
		{ToolPattern: "shell_exec", Decision: string(hitl.DecisionRequireApproval), RiskLevel: "high"},
	}}}
	node := NewToolsNode(registry, hitl.NewGate(rules), ToolsConfig{}, nil)
	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "shell_exec"}}),
	}
	state := newState(t, messages, 1, 10)

	patch, interrupt, err := node.Run(stdctx.Background(), state)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if interrupt == nil {
		t.Fatal("expected an interrupt for a require_approval rule")
	}
	if interrupt.CallID != "c1" {
		t.Errorf("Interrupt.CallID = %q, want c1", interrupt.CallID)
	}
	if interrupt.Kind != "approval" {
		t.Errorf("Interrupt.Kind = %q, want approval", interrupt.Kind)
	}
	if len(patch.AppendMessages) != 0 {
		t.Errorf("expected no messages appended before approval, got %d", len(patch.AppendMessages))
	}
}

func TestToolsNode_Run_AlwaysDenyProducesDenialWithoutExecuting(t *testing.T) {
	registry := newTestRegistry(struct {
		tool domaintool.Tool
		meta domaintool.Metadata
	}{&fakeTool{name: "rm_rf", result: &domaintool.Result{Success: true, Output: "should not run"}}, domaintool.Metadata{Enabled: true}})

	rules := fakeRules{set: hitl.RuleSet{Rules: []hitl.Rule{
		{ToolPattern: "rm_rf", Decision: string(hitl.DecisionAlwaysDeny)},
	}}}
	node := NewToolsNode(registry, hitl.NewGate(rules), ToolsConfig{}, nil)
	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "rm_rf"}}),
	}
	state := newState(t, messages, 1, 10)

	patch, interrupt, err := node.Run(stdctx.Background(), state)
	if err != nil || interrupt != nil {
		t.Fatalf("unexpected interrupt/err: %+v %v", interrupt, err)
	}
	if len(patch.AppendMessages) != 1 {
		t.Fatalf("expected a denial message, got %d", len(patch.AppendMessages))
	}
	if patch.AppendMessages[0].Content() == "should not run" {
		t.Error("denied tool must not have executed")
	}
}

func TestToolsNode_ResumeCall_DeniedProducesToolMessage(t *testing.T) {
	node := NewToolsNode(domaintool.NewInMemoryRegistry(), hitl.NewGate(fakeRules{}), ToolsConfig{}, nil)
	call := entity.ToolCallRequest{CallID: "c1", Name: "shell_exec"}

	msg, err := node.ResumeCall(stdctx.Background(), call, hitl.Resolution{Approved: false, Reason: "too risky"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if msg.CallID() != "c1" {
		t.Errorf("CallID = %s, want c1", msg.CallID())
	}
}

func TestToolsNode_ResumeCall_ApprovedExecutes(t *testing.T) {
	registry := newTestRegistry(struct {
		tool domaintool.Tool
		meta domaintool.Metadata
	}{&fakeTool{name: "shell_exec", result: &domaintool.Result{Success: true, Output: "ran after approval"}}, domaintool.Metadata{Enabled: true}})
	node := NewToolsNode(registry, hitl.NewGate(fakeRules{}), ToolsConfig{}, nil)
	call := entity.ToolCallRequest{CallID: "c1", Name: "shell_exec"}

	msg, err := node.ResumeCall(stdctx.Background(), call, hitl.Resolution{Approved: true})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if msg.Content() != "ran after approval" {
		t.Errorf("Content() = %q, want %q", msg.Content(), "ran after approval")
	}
}

func TestToolsNode_Run_ConcurrencySafeBatchRunsAll(t *testing.T) {
	registry := newTestRegistry(
		struct {
			tool domaintool.Tool
			meta domaintool.Metadata
		}{&fakeTool{name: "tool_a", result: &domaintool.Result{Success: true, Output: "a"}, delay: 5 * time.Millisecond}, domaintool.Metadata{Enabled: true, ConcurrencySafe: true}},
		struct {
			tool domaintool.Tool
			meta domaintool.Metadata
		}{&fakeTool{name: "tool_b", result: &domaintool.Result{Success: true, Output: "b"}, delay: 5 * time.Millisecond}, domaintool.Metadata{Enabled: true, ConcurrencySafe: true}},
	)
	node := NewToolsNode(registry, hitl.NewGate(fakeRules{}), ToolsConfig{MaxParallel: 2}, nil)
	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{
			{CallID: "c1", Name: "tool_a"},
			{CallID: "c2", Name: "tool_b"},
		}),
	}
	state := newState(t, messages, 1, 10)

	patch, interrupt, err := node.Run(stdctx.Background(), state)
	if err != nil || interrupt != nil {
		t.Fatalf("unexpected interrupt/err: %+v %v", interrupt, err)
	}
	if len(patch.AppendMessages) != 2 {
		t.Fatalf("expected 2 tool messages, got %d", len(patch.AppendMessages))
	}
}
