package graph

import (
	"testing"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
)

func mustMessage(t *testing.T, id string, role entity.Role, content string) *entity.Message {
	t.Helper()
	m, err := entity.NewMessage(id, role, content)
	if err != nil {
		t.Fatalf("NewMessage(%s): %v", id, err)
	}
	return m
}

func mustAssistantWithCalls(t *testing.T, id, content string, calls []entity.ToolCallRequest) *entity.Message {
	t.Helper()
	m, err := entity.NewAssistantMessage(id, content, calls)
	if err != nil {
		t.Fatalf("NewAssistantMessage(%s): %v", id, err)
	}
	return m
}

func mustToolMessage(t *testing.T, id, callID, content string) *entity.Message {
	t.Helper()
	m, err := entity.NewToolMessage(id, callID, content)
	if err != nil {
		t.Fatalf("NewToolMessage(%s): %v", id, err)
	}
	return m
}

func TestSanitizeHistory_DropsOrphanedTrailingToolCalls(t *testing.T) {
	messages := []*entity.Message{
		mustMessage(t, "h0", entity.RoleHuman, "do something"),
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "shell_exec"}}),
	}
	out := sanitizeHistory(messages)
	if out[1].HasPendingToolCalls() {
		t.Error("expected trailing unanswered tool-call batch to be stripped")
	}
	if messages[1].HasPendingToolCalls() != true {
		t.Error("sanitizeHistory must not mutate the original messages")
	}
}

func TestSanitizeHistory_KeepsFullyAnsweredBatch(t *testing.T) {
	messages := []*entity.Message{
		mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "shell_exec"}}),
		mustToolMessage(t, "t0", "c1", "ok"),
	}
	out := sanitizeHistory(messages)
	if !out[0].HasPendingToolCalls() {
		t.Error("expected fully-answered batch to survive untouched")
	}
}

func TestTruncateHistory_RetainsSystemAndRecoversToolBatch(t *testing.T) {
	sys := mustMessage(t, "s0", entity.RoleSystem, "system prompt")
	old := mustAssistantWithCalls(t, "a0", "", []entity.ToolCallRequest{{CallID: "c1", Name: "x"}})
	oldAnswer := mustToolMessage(t, "t0", "c1", "result")

	var filler []*entity.Message
	for i := 0; i < 3; i++ {
		filler = append(filler, mustMessage(t, "f"+string(rune('a'+i)), entity.RoleHuman, "noise"))
	}

	messages := append([]*entity.Message{sys, old, oldAnswer}, filler...)
	out := truncateHistory(messages, 4)

	foundSystem, foundOld, foundAnswer := false, false, false
	for _, m := range out {
		switch m.ID() {
		case "s0":
			foundSystem = true
		case "a0":
			foundOld = true
		case "t0":
			foundAnswer = true
		}
	}
	if !foundSystem {
		t.Error("expected system message to be retained")
	}
	if !foundAnswer {
		t.Error("expected recent tool message to be within the window")
	}
	if !foundOld {
		t.Error("expected the assistant batch answered by a kept tool message to be recovered")
	}
}

func TestTruncateHistory_NoopUnderLimit(t *testing.T) {
	messages := []*entity.Message{mustMessage(t, "h0", entity.RoleHuman, "hi")}
	out := truncateHistory(messages, 40)
	if len(out) != 1 {
		t.Errorf("expected no truncation, got %d messages", len(out))
	}
}
