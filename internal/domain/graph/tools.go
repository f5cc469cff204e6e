package graph

import (
	stdctx "context"
	"fmt"
	"sync"
	"time"

	"github.com/ngoclaw/agentcore/internal/domain/agent"
	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/hitl"
	domaintool "github.com/ngoclaw/agentcore/internal/domain/tool"
	"go.uber.org/zap"
)

// ToolsConfig holds the tunables spec.md §5/§6 name for the tools phase.
type ToolsConfig struct {
	ToolTimeout time.Duration
	MaxParallel int
}

// ToolsNode implements spec.md §4.9: runs the pending tool-call batch
// through the HITL gate and the registry's execution set, decomposed from
// the tool-exec block of the teacher's agent_loop.go runLoop() (the
// WaitGroup+semaphore concurrency idiom, per-tool timeout, and structured
// failure annotation all carry over).
type ToolsNode struct {
	registry domaintool.Registry
	gate     *hitl.Gate
	cfg      ToolsConfig
	logger   *zap.Logger
}

// NewToolsNode wires the Tools Node's dependencies.
func NewToolsNode(registry domaintool.Registry, gate *hitl.Gate, cfg ToolsConfig, logger *zap.Logger) *ToolsNode {
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 30 * time.Second
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	return &ToolsNode{registry: registry, gate: gate, cfg: cfg, logger: logger}
}

// Run executes as much of the pending tool-call batch as the HITL gate
// allows. A non-nil Interrupt means the node suspended before executing the
// named call; the patch returned alongside it still carries any Tool
// messages produced by earlier calls in the batch (ordering rule, spec.md §5).
func (n *ToolsNode) Run(ctx stdctx.Context, state *entity.SessionState) (entity.StatePatch, *hitl.Interrupt, error) {
	pending := pendingToolCalls(state.Messages)
	if len(pending) == 0 {
		return entity.StatePatch{}, nil, nil
	}
	ctx = agent.WithParentState(ctx, state)

	if n.allConcurrencySafe(pending) && len(pending) > 1 {
		messages, interrupt, err := n.runConcurrent(ctx, pending)
		return entity.StatePatch{AppendMessages: messages}, interrupt, err
	}
	return n.runSequential(ctx, pending)
}

// ResumeCall answers the single call a prior Run suspended on, using the
// host's resolution, then lets the caller re-invoke Run for the remainder
// of the batch (if any calls after it are still unanswered).
func (n *ToolsNode) ResumeCall(ctx stdctx.Context, call entity.ToolCallRequest, resolution hitl.Resolution) (*entity.Message, error) {
	if !resolution.Approved {
		reason := resolution.Reason
		if reason == "" {
			reason = "denied by reviewer"
		}
		return entity.NewToolMessage(toolMessageID(call), call.CallID,
			fmt.Sprintf("[TOOL_DENIED] %s — %s", call.Name, reason))
	}
	return n.executeOne(ctx, call, hitl.DecisionAutoAllow)
}

func (n *ToolsNode) allConcurrencySafe(calls []entity.ToolCallRequest) bool {
	for _, call := range calls {
		meta, ok := n.registry.Metadata(call.Name)
		if !ok || !meta.ConcurrencySafe {
			return false
		}
	}
	return true
}

func (n *ToolsNode) runSequential(ctx stdctx.Context, calls []entity.ToolCallRequest) (entity.StatePatch, *hitl.Interrupt, error) {
	var messages []*entity.Message
	for _, call := range calls {
		decision, rule := n.gate.Evaluate(call.Name, call.Arguments)
		if decision == hitl.DecisionRequireApproval {
			interrupt := hitl.BuildInterrupt(call.Name, call.Arguments, rule)
			interrupt.CallID = call.CallID
			return entity.StatePatch{AppendMessages: messages}, &interrupt, nil
		}
		msg, err := n.executeOne(ctx, call, decision)
		if err != nil {
			return entity.StatePatch{AppendMessages: messages}, nil, err
		}
		messages = append(messages, msg)
	}
	return entity.StatePatch{AppendMessages: messages}, nil, nil
}

// runConcurrent handles a batch the registry metadata marked entirely
// concurrency-safe. The gate is still evaluated for the whole batch up
// front — an approval requirement on any call suspends before any of them
// execute (spec.md §4.6 ordering rule).
func (n *ToolsNode) runConcurrent(ctx stdctx.Context, calls []entity.ToolCallRequest) ([]*entity.Message, *hitl.Interrupt, error) {
	decisions := make([]hitl.Decision, len(calls))
	for i, call := range calls {
		decision, rule := n.gate.Evaluate(call.Name, call.Arguments)
		if decision == hitl.DecisionRequireApproval {
			interrupt := hitl.BuildInterrupt(call.Name, call.Arguments, rule)
			interrupt.CallID = call.CallID
			return nil, &interrupt, nil
		}
		decisions[i] = decision
	}

	results := make([]*entity.Message, len(calls))
	errs := make([]error, len(calls))
	sem := make(chan struct{}, n.cfg.MaxParallel)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c entity.ToolCallRequest, d hitl.Decision) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}
			msg, err := n.executeOne(ctx, c, d)
			results[idx] = msg
			errs[idx] = err
		}(i, call, decisions[i])
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}
	return results, nil, nil
}

func (n *ToolsNode) executeOne(ctx stdctx.Context, call entity.ToolCallRequest, decision hitl.Decision) (*entity.Message, error) {
	if decision == hitl.DecisionAlwaysDeny {
		return entity.NewToolMessage(toolMessageID(call), call.CallID,
			fmt.Sprintf("[TOOL_DENIED] %s is blocked by policy.", call.Name))
	}

	t, ok := n.registry.Get(call.Name)
	if !ok {
		t, ok = n.registry.LoadOnDemand(call.Name)
	}
	if !ok {
		return entity.NewToolMessage(toolMessageID(call), call.CallID,
			fmt.Sprintf("[TOOL_FAILED] %s\n[ERROR] unknown tool", call.Name))
	}

	toolCtx := ctx
	if n.cfg.ToolTimeout > 0 {
		var cancel stdctx.CancelFunc
		toolCtx, cancel = stdctx.WithTimeout(ctx, n.cfg.ToolTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := t.Execute(toolCtx, call.Arguments)
	duration := time.Since(start)

	if err != nil {
		if n.logger != nil {
			n.logger.Error("tool execution failed", zap.String("tool", call.Name), zap.Duration("duration", duration), zap.Error(err))
		}
		return entity.NewToolMessage(toolMessageID(call), call.CallID,
			fmt.Sprintf("[TOOL_FAILED] %s\n[ERROR] %v", call.Name, err))
	}
	if !result.Success {
		errText := result.Error
		if errText == "" {
			errText = result.Output
		}
		return entity.NewToolMessage(toolMessageID(call), call.CallID,
			fmt.Sprintf("[TOOL_FAILED] %s\n[OUTPUT]\n%s", call.Name, errText))
	}
	return entity.NewToolMessage(toolMessageID(call), call.CallID, result.Output)
}

func toolMessageID(call entity.ToolCallRequest) string {
	return "tool-" + call.CallID
}

// pendingToolCalls finds the most recent Assistant tool-call batch and
// returns the requests among it that still lack a matching Tool message,
// in emission order (spec.md §5 ordering guarantee).
func pendingToolCalls(messages []*entity.Message) []entity.ToolCallRequest {
	batchIdx := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role() == entity.RoleAssistant && messages[i].HasPendingToolCalls() {
			batchIdx = i
			break
		}
		if messages[i].Role() == entity.RoleAssistant {
			return nil
		}
	}
	if batchIdx == -1 {
		return nil
	}

	answered := make(map[string]bool)
	for _, m := range messages[batchIdx+1:] {
		if m.Role() == entity.RoleTool {
			answered[m.CallID()] = true
		}
	}

	var pending []entity.ToolCallRequest
	for _, tc := range messages[batchIdx].ToolCalls() {
		if !answered[tc.CallID] {
			pending = append(pending, tc)
		}
	}
	return pending
}
