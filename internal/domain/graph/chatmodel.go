package graph

import (
	stdctx "context"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
	domaintool "github.com/ngoclaw/agentcore/internal/domain/tool"
)

// ChatRequest is what the planner sends to the chat-model abstraction
// (spec.md §6): a system prompt, the sanitized/truncated history, and the
// tool-binding visibility set resolved for this turn.
type ChatRequest struct {
	SystemPrompt string
	Messages     []*entity.Message
	Tools        []domaintool.Definition
	ModelID      string
	Temperature  float64
	MaxTokens    int
}

// Usage is the provider-reported token accounting for one chat-model call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// ChatResponse is the chat model's reply: one Assistant message (content,
// and zero or more tool-call requests) plus usage.
type ChatResponse struct {
	Message   *entity.Message
	Usage     Usage
	ModelUsed string
	RawUsage  map[string]interface{}
}

// ChatModel is the abstract LLM provider the planner invokes, generalized
// from the teacher's LLMClient (internal/domain/service/agent_loop.go) onto
// entity.Message instead of the teacher's provider-shaped LLMMessage.
type ChatModel interface {
	Invoke(ctx stdctx.Context, req ChatRequest) (*ChatResponse, error)
}
