package graph

import (
	stdctx "context"
	"testing"

	domaincontext "github.com/ngoclaw/agentcore/internal/domain/context"
	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/mention"
	"github.com/ngoclaw/agentcore/internal/domain/service"
	domaintool "github.com/ngoclaw/agentcore/internal/domain/tool"
	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

type fakeChatModel struct {
	resp *ChatResponse
	err  error
	reqs []ChatRequest
}

func (f *fakeChatModel) Invoke(ctx stdctx.Context, req ChatRequest) (*ChatResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeModelClient struct{}

func (f *fakeModelClient) Generate(ctx stdctx.Context, prompt string) (string, error) {
	return "summary", nil
}

func newTestPlanner(t *testing.T, chatModel ChatModel) *Planner {
	t.Helper()
	tools := domaintool.NewInMemoryRegistry()
	classifier := mention.NewClassifier("agent", nil, tools)
	tracker := service.NewTokenTracker(service.TokenTrackerThresholds{Info: 0.5, Warning: 0.75, Critical: 0.9}, nil)
	compressor := domaincontext.NewCompressor(domaincontext.CompressorConfig{
		KeepRecentMessages: 10, CompactMiddleMessages: 10, MaxOutputTokens: 500,
		EmergencyTruncateKeep: 4, SummarizeRatioCutoff: 0.5, CompactStreakCutoff: 3,
	}, &fakeModelClient{}, nil)
	slots := valueobject.NewModelSlotTable(valueobject.DefaultModelConfig())

	return NewPlanner(PlannerConfig{MaxMessageHistory: 40, PersistentTools: []string{"now"}, Temperature: 0.7, MaxTokens: 4096},
		tools, nil, classifier, tracker, compressor, nil, slots, chatModel, nil)
}

func TestPlanner_Run_HappyPathAppendsAssistantMessage(t *testing.T) {
	assistantMsg, err := entity.NewAssistantMessage("a1", "hello there", nil)
	if err != nil {
		t.Fatal(err)
	}
	chat := &fakeChatModel{resp: &ChatResponse{Message: assistantMsg, Usage: Usage{PromptTokens: 100, CompletionTokens: 20}}}
	planner := newTestPlanner(t, chat)

	state := newState(t, []*entity.Message{mustMessage(t, "h0", entity.RoleHuman, "hi")}, 0, 10)
	patch, err := planner.Run(stdctx.Background(), state)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !patch.IncrementLoops {
		t.Error("expected IncrementLoops on a normal turn")
	}
	if patch.AddPromptTokens != 100 || patch.AddCompletionTokens != 20 {
		t.Errorf("unexpected usage in patch: %+v", patch)
	}
	if len(patch.AppendMessages) != 1 || patch.AppendMessages[0].Content() != "hello there" {
		t.Errorf("expected the chat model's message to be appended, got %+v", patch.AppendMessages)
	}
	if len(chat.reqs) != 1 {
		t.Fatalf("expected exactly 1 chat invocation, got %d", len(chat.reqs))
	}
}

func TestPlanner_Run_CriticalStatusCompressesWithoutCallingModel(t *testing.T) {
	chat := &fakeChatModel{resp: &ChatResponse{Message: nil}}
	planner := newTestPlanner(t, chat)

	state := newState(t, []*entity.Message{mustMessage(t, "h0", entity.RoleHuman, "hi")}, 0, 10)
	state.CumulativePromptTokens = 999_000 // far above the default 128k window's critical ratio

	patch, err := planner.Run(stdctx.Background(), state)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(chat.reqs) != 0 {
		t.Error("expected the planner to skip the chat model call on a compression-only turn")
	}
	if patch.SetAutoCompressed == nil || !*patch.SetAutoCompressed {
		t.Error("expected SetAutoCompressed to be true")
	}
	if patch.IncrementLoops {
		t.Error("a compression-only pass should not consume loop budget")
	}
}

func TestPlanner_Run_AlreadyCompressedThisRequestProceedsToModel(t *testing.T) {
	assistantMsg, err := entity.NewAssistantMessage("a1", "ok", nil)
	if err != nil {
		t.Fatal(err)
	}
	chat := &fakeChatModel{resp: &ChatResponse{Message: assistantMsg}}
	planner := newTestPlanner(t, chat)

	state := newState(t, []*entity.Message{mustMessage(t, "h0", entity.RoleHuman, "hi")}, 0, 10)
	state.CumulativePromptTokens = 999_000
	state.AutoCompressedThisRequest = true

	_, err = planner.Run(stdctx.Background(), state)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(chat.reqs) != 1 {
		t.Error("expected the planner to proceed to the model once already compressed this request")
	}
}

func TestPlanner_VisibilitySet_DropsDelegateTaskForSubagent(t *testing.T) {
	tools := domaintool.NewInMemoryRegistry()
	classifier := mention.NewClassifier("agent", nil, tools)
	planner := NewPlanner(PlannerConfig{PersistentTools: []string{"now", "delegate_task"}}, tools, nil, classifier,
		service.NewTokenTracker(service.TokenTrackerThresholds{Info: 0.5, Warning: 0.75, Critical: 0.9}, nil),
		domaincontext.NewCompressor(domaincontext.CompressorConfig{KeepRecentMessages: 5, CompactMiddleMessages: 5, MaxOutputTokens: 100, EmergencyTruncateKeep: 2, SummarizeRatioCutoff: 0.5, CompactStreakCutoff: 3}, &fakeModelClient{}, nil),
		nil, valueobject.NewModelSlotTable(valueobject.DefaultModelConfig()), &fakeChatModel{resp: &ChatResponse{}}, nil)

	state, err := entity.NewSubagentState("subagent-123", "do a thing", "/tmp", 5)
	if err != nil {
		t.Fatal(err)
	}

	visibility := planner.visibilitySet(state, mention.Classification{})
	for _, name := range visibility {
		if name == "delegate_task" {
			t.Error("subagent visibility set must never include delegate_task")
		}
	}
}
