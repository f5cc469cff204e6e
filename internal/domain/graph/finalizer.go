package graph

import (
	stdctx "context"
	"strings"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/service"
	"go.uber.org/zap"
)

// FinalizerConfig holds the tunables for the finalizer's summary-retry
// fallback (spec.md §4.10).
type FinalizerConfig struct {
	SummaryPrompt string
}

// Finalizer implements spec.md §4.10: turns the last assistant turn into the
// run's terminal content, requesting one extra summary turn when that
// content came back empty, and otherwise falling back to the most recent
// non-empty assistant text seen anywhere in the run — decomposed from the
// "no tool calls — final response" branch of the teacher's agent_loop.go
// runLoop().
type Finalizer struct {
	cfg       FinalizerConfig
	chatModel ChatModel
	logger    *zap.Logger
}

// NewFinalizer wires the Finalizer's dependencies.
func NewFinalizer(cfg FinalizerConfig, chatModel ChatModel, logger *zap.Logger) *Finalizer {
	if cfg.SummaryPrompt == "" {
		cfg.SummaryPrompt = "Summarize what you just did and the final result, concisely. Do not restate the plan — state only the outcome."
	}
	return &Finalizer{cfg: cfg, chatModel: chatModel, logger: logger}
}

// Run produces the patch that appends the run's final assistant message, if
// one is still needed. A turn that already ends on non-empty assistant
// content needs no extra work — the caller invokes Finalizer only once the
// Router has decided no more tool calls are pending.
func (f *Finalizer) Run(ctx stdctx.Context, state *entity.SessionState) (entity.StatePatch, error) {
	last := state.LastMessage()
	if last != nil && last.Role() == entity.RoleAssistant {
		content := strings.TrimSpace(service.StripReasoningTags(last.Content()))
		if content != "" {
			return entity.StatePatch{}, nil
		}
	}

	finalContent := f.requestSummary(ctx, state)
	if finalContent == "" {
		finalContent = f.lastAssistantText(state.Messages)
	}
	if finalContent == "" {
		return entity.StatePatch{}, nil
	}

	msg, err := entity.NewAssistantMessage("finalizer-"+state.ContextID+"-"+state.ThreadID, finalContent, nil)
	if err != nil {
		return entity.StatePatch{}, err
	}
	return entity.StatePatch{AppendMessages: []*entity.Message{msg}}, nil
}

// requestSummary asks the model for a clean wrap-up turn with tools
// disabled, forcing a text-only response (spec.md §4.10 fallback 1).
func (f *Finalizer) requestSummary(ctx stdctx.Context, state *entity.SessionState) string {
	if f.chatModel == nil {
		return ""
	}

	view := append([]*entity.Message(nil), state.Messages...)
	if last := state.LastMessage(); last == nil || last.Role() != entity.RoleAssistant {
		if ack, err := entity.NewAssistantMessage("finalizer-ack", "Done executing the requested tool calls.", nil); err == nil {
			view = append(view, ack)
		}
	}
	if prompt, err := entity.NewMessage("finalizer-prompt", entity.RoleHuman, f.cfg.SummaryPrompt); err == nil {
		view = append(view, prompt)
	}

	resp, err := f.chatModel.Invoke(ctx, ChatRequest{
		Messages: view,
		Tools:    nil,
	})
	if err != nil || resp == nil || resp.Message == nil {
		if err != nil && f.logger != nil {
			f.logger.Warn("finalizer summary request failed", zap.Error(err))
		}
		return ""
	}
	return strings.TrimSpace(service.StripReasoningTags(resp.Message.Content()))
}

// lastAssistantText is the last-resort fallback (spec.md §4.10 fallback 2):
// the most recent non-empty assistant text anywhere in the run, even if it
// was narration alongside a tool call rather than a final answer.
func (f *Finalizer) lastAssistantText(messages []*entity.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role() != entity.RoleAssistant {
			continue
		}
		text := strings.TrimSpace(service.StripReasoningTags(messages[i].Content()))
		if text != "" {
			return text
		}
	}
	return ""
}
