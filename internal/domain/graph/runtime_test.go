package graph

import (
	stdctx "context"
	"sync"
	"testing"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/hitl"
	domaintool "github.com/ngoclaw/agentcore/internal/domain/tool"
)

type memCheckpointer struct {
	mu    sync.Mutex
	saved map[string]*entity.SessionState
}

func newMemCheckpointer() *memCheckpointer {
	return &memCheckpointer{saved: make(map[string]*entity.SessionState)}
}

func (c *memCheckpointer) Put(ctx stdctx.Context, threadID, node string, state *entity.SessionState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved[threadID] = state
	return nil
}

func (c *memCheckpointer) Get(ctx stdctx.Context, threadID string) (*entity.SessionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved[threadID], nil
}

func (c *memCheckpointer) Delete(ctx stdctx.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.saved, threadID)
	return nil
}

func TestRuntime_Run_DrivesToFinalizer(t *testing.T) {
	assistantMsg, err := entity.NewAssistantMessage("a0", "final content", nil)
	if err != nil {
		t.Fatal(err)
	}
	chat := &fakeChatModel{resp: &ChatResponse{Message: assistantMsg}}
	planner := newTestPlanner(t, chat)
	tools := NewToolsNode(domaintool.NewInMemoryRegistry(), hitl.NewGate(fakeRules{}), ToolsConfig{}, nil)
	finalizer := NewFinalizer(FinalizerConfig{}, chat, nil)
	checkpoints := newMemCheckpointer()
	runtime := NewRuntime(planner, tools, finalizer, checkpoints, nil)

	state := newState(t, []*entity.Message{mustMessage(t, "h0", entity.RoleHuman, "hi")}, 0, 10)
	final, interrupt, err := runtime.Run(stdctx.Background(), state)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if interrupt != nil {
		t.Fatalf("unexpected interrupt: %+v", interrupt)
	}
	last := final.LastMessage()
	if last == nil || last.Content() != "final content" {
		t.Errorf("expected final message content %q, got %+v", "final content", last)
	}
	if saved, _ := checkpoints.Get(stdctx.Background(), state.ThreadID); saved == nil {
		t.Error("expected the runtime to checkpoint the final state")
	}
}

func TestRuntime_Run_SuspendsOnApprovalAndResumeCompletes(t *testing.T) {
	plannerCalls := 0
	toolCallMsg, err := entity.NewAssistantMessage("a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "shell_exec"}})
	if err != nil {
		t.Fatal(err)
	}
	finalMsg, err := entity.NewAssistantMessage("a1", "done after approval", nil)
	if err != nil {
		t.Fatal(err)
	}

	chat := &twoStepChatModel{
		onCall: func(n int) *ChatResponse {
			plannerCalls++
			if n == 1 {
				return &ChatResponse{Message: toolCallMsg}
			}
			return &ChatResponse{Message: finalMsg}
		},
	}

	tools := domaintool.NewInMemoryRegistry()
	_ = tools.Register(&fakeTool{name: "shell_exec", result: &domaintool.Result{Success: true, Output: "ran"}}, domaintool.Metadata{Enabled: true})

	rules := fakeRules{set: hitl.RuleSet{Rules: []hitl.Rule{
		{ToolPattern: "shell_exec", Decision: string(hitl.DecisionRequireApproval), RiskLevel: "high"},
	}}}

	planner := newTestPlannerWithChat(t, chat)
	toolsNode := NewToolsNode(tools, hitl.NewGate(rules), ToolsConfig{}, nil)
	finalizer := NewFinalizer(FinalizerConfig{}, chat, nil)
	checkpoints := newMemCheckpointer()
	runtime := NewRuntime(planner, toolsNode, finalizer, checkpoints, nil)

	state := newState(t, []*entity.Message{mustMessage(t, "h0", entity.RoleHuman, "run a command")}, 0, 10)
	_, interrupt, err := runtime.Run(stdctx.Background(), state)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if interrupt == nil {
		t.Fatal("expected the run to suspend on the require_approval rule")
	}

	final, interrupt2, err := runtime.Resume(stdctx.Background(), state.ThreadID, hitl.Resolution{Approved: true})
	if err != nil {
		t.Fatalf("unexpected err on resume: %v", err)
	}
	if interrupt2 != nil {
		t.Fatalf("unexpected second interrupt: %+v", interrupt2)
	}
	last := final.LastMessage()
	if last == nil || last.Content() != "done after approval" {
		t.Errorf("expected final content %q, got %+v", "done after approval", last)
	}
}

type twoStepChatModel struct {
	n      int
	onCall func(n int) *ChatResponse
}

func (c *twoStepChatModel) Invoke(ctx stdctx.Context, req ChatRequest) (*ChatResponse, error) {
	c.n++
	return c.onCall(c.n), nil
}

func newTestPlannerWithChat(t *testing.T, chat ChatModel) *Planner {
	t.Helper()
	return newTestPlanner(t, chat)
}
