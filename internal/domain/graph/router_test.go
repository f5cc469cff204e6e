package graph

import (
	"testing"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
)

func newState(t *testing.T, messages []*entity.Message, loops, maxLoops int) *entity.SessionState {
	t.Helper()
	state, err := entity.NewSessionState("thread-1", "/tmp/ws", maxLoops)
	if err != nil {
		t.Fatalf("NewSessionState: %v", err)
	}
	state.Messages = messages
	state.Loops = loops
	return state
}

func TestNext_EmptyHistoryGoesToPlanner(t *testing.T) {
	state := newState(t, nil, 0, 10)
	if got := Next(state); got != NodePlanner {
		t.Errorf("Next() = %q, want %q", got, NodePlanner)
	}
}

func TestNext_HumanMessageGoesToPlanner(t *testing.T) {
	state := newState(t, []*entity.Message{mustMessage(t, "h0", entity.RoleHuman, "hi")}, 0, 10)
	if got := Next(state); got != NodePlanner {
		t.Errorf("Next() = %q, want %q", got, NodePlanner)
	}
}

func TestNext_AssistantWithPendingCallsGoesToTools(t *testing.T) {
	messages := []*entity.Message{
		mustMessage(t, "h0", entity.RoleHuman, "hi"),
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "x"}}),
	}
	state := newState(t, messages, 1, 10)
	if got := Next(state); got != NodeTools {
		t.Errorf("Next() = %q, want %q", got, NodeTools)
	}
}

func TestNext_AssistantWithoutCallsGoesToFinalizer(t *testing.T) {
	messages := []*entity.Message{
		mustMessage(t, "h0", entity.RoleHuman, "hi"),
		mustAssistantWithCalls(t, "a0", "final answer", nil),
	}
	state := newState(t, messages, 1, 10)
	if got := Next(state); got != NodeFinalizer {
		t.Errorf("Next() = %q, want %q", got, NodeFinalizer)
	}
}

func TestNext_ToolMessageMidBatchStaysInTools(t *testing.T) {
	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{
			{CallID: "c1", Name: "x"}, {CallID: "c2", Name: "y"},
		}),
		mustToolMessage(t, "t0", "c1", "ok"),
	}
	state := newState(t, messages, 1, 10)
	if got := Next(state); got != NodeTools {
		t.Errorf("Next() = %q, want %q (one call still unanswered)", got, NodeTools)
	}
}

func TestNext_ToolMessageBatchCompleteGoesToPlanner(t *testing.T) {
	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "x"}}),
		mustToolMessage(t, "t0", "c1", "ok"),
	}
	state := newState(t, messages, 1, 10)
	if got := Next(state); got != NodePlanner {
		t.Errorf("Next() = %q, want %q (batch complete, loop back)", got, NodePlanner)
	}
}

func TestNext_LoopBudgetForcesFinalizer(t *testing.T) {
	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "x"}}),
	}
	state := newState(t, messages, 10, 10)
	if got := Next(state); got != NodeFinalizer {
		t.Errorf("Next() = %q, want %q when loops == max_loops", got, NodeFinalizer)
	}
}
