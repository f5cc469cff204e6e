package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/hitl"
)

type fakeRunner struct {
	runResult    *entity.SessionState
	runInterrupt *hitl.Interrupt
	resumeResult *entity.SessionState
	calls        int
}

func (f *fakeRunner) Run(ctx context.Context, state *entity.SessionState) (*entity.SessionState, *hitl.Interrupt, error) {
	f.calls++
	if f.calls == 1 {
		return f.runResult, f.runInterrupt, nil
	}
	return f.runResult, nil, nil
}

func (f *fakeRunner) Resume(ctx context.Context, threadID string, resolution hitl.Resolution) (*entity.SessionState, *hitl.Interrupt, error) {
	return f.resumeResult, nil, nil
}

func stateWithFinalMessage(content string) *entity.SessionState {
	s, _ := entity.NewSubagentState("subagent-aaaaaaaa", "do work", "/tmp/ws", 10)
	msg, _ := entity.NewMessage("final", entity.RoleAssistant, content)
	return s.Apply(entity.StatePatch{AppendMessages: []*entity.Message{msg}})
}

func TestDelegationTool_DeniesNestedDelegation(t *testing.T) {
	sub, _ := entity.NewSubagentState("subagent-bbbbbbbb", "nested", "/tmp", 5)
	ctx := WithParentState(context.Background(), sub)

	tool := NewDelegationTool(&fakeRunner{}, 15, nil)
	result, err := tool.Execute(ctx, map[string]interface{}{"task": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected nested delegation to be denied")
	}
}

func TestDelegationTool_HappyPathReturnsJSON(t *testing.T) {
	parent, _ := entity.NewSessionState("thread-1", "/tmp/ws", 100)
	ctx := WithParentState(context.Background(), parent)

	final := stateWithFinalMessage("This is a sufficiently long final answer describing what was done in detail, well past the retry threshold length of two hundred characters so no retry summary turn should be triggered by the delegation tool's finalize step.")
	runner := &fakeRunner{runResult: final}
	tool := NewDelegationTool(runner, 15, nil)

	result, err := tool.Execute(ctx, map[string]interface{}{"task": "do the thing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	var payload struct {
		OK        bool   `json:"ok"`
		Result    string `json:"result"`
		ContextID string `json:"context_id"`
	}
	if err := json.Unmarshal([]byte(result.Output), &payload); err != nil {
		t.Fatalf("expected valid JSON output: %v", err)
	}
	if !payload.OK || !strings.HasPrefix(payload.ContextID, "subagent-") {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if runner.calls != 1 {
		t.Fatalf("expected exactly 1 run call for a long final message, got %d", runner.calls)
	}
}

func TestDelegationTool_TerseAnswerTriggersRetry(t *testing.T) {
	parent, _ := entity.NewSessionState("thread-1", "/tmp/ws", 100)
	ctx := WithParentState(context.Background(), parent)

	terse := stateWithFinalMessage("done")
	runner := &fakeRunner{runResult: terse}
	tool := NewDelegationTool(runner, 15, nil)

	_, err := tool.Execute(ctx, map[string]interface{}{"task": "do the thing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.calls != 2 {
		t.Fatalf("expected a retry run call for a terse final message, got %d calls", runner.calls)
	}
}

func TestDelegationTool_InterruptPropagatesPrefixed(t *testing.T) {
	parent, _ := entity.NewSessionState("thread-1", "/tmp/ws", 100)
	ctx := WithParentState(context.Background(), parent)

	runner := &fakeRunner{runInterrupt: &hitl.Interrupt{ToolName: "write_file", Reason: "needs approval"}}
	tool := NewDelegationTool(runner, 15, nil)

	_, err := tool.Execute(ctx, map[string]interface{}{"task": "do the thing"})
	if err == nil {
		t.Fatalf("expected a DelegationInterrupt error")
	}
	di, ok := err.(*DelegationInterrupt)
	if !ok {
		t.Fatalf("expected *DelegationInterrupt, got %T", err)
	}
	if !strings.Contains(di.Interrupt.Reason, di.ContextID) {
		t.Fatalf("expected prefixed reason to include context id, got %q", di.Interrupt.Reason)
	}
}
