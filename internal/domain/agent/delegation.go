package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/hitl"
	domaintool "github.com/ngoclaw/agentcore/internal/domain/tool"
)

// summaryRetryThreshold is the length below which the delegation tool asks
// the sub-agent for a richer structured summary instead of returning a
// terse final message as-is (spec.md §4.7 step 5).
const summaryRetryThreshold = 200

// GraphRunner drives one session's Planner→Tools→Finalizer graph to
// completion or interruption. The delegation tool uses the same runner the
// top-level session uses — a sub-agent is just another thread.
type GraphRunner interface {
	// Run drives state through the graph until it finalizes or an
	// interrupt is raised; the runner is responsible for checkpointing
	// state at thread_id = state.ThreadID as it goes.
	Run(ctx context.Context, state *entity.SessionState) (finalState *entity.SessionState, interrupt *hitl.Interrupt, err error)
	// Resume continues a previously interrupted thread with the host's
	// resolution.
	Resume(ctx context.Context, threadID string, resolution hitl.Resolution) (finalState *entity.SessionState, interrupt *hitl.Interrupt, err error)
}

// parentStateKey is the context key the tools node uses to thread the
// calling session's state down to delegate_task, so the tool can enforce
// CanDelegate() and inherit workspace_path without that state living in
// the tool's JSON argument schema.
type parentStateKey struct{}

// WithParentState attaches the calling session's state to ctx.
func WithParentState(ctx context.Context, state *entity.SessionState) context.Context {
	return context.WithValue(ctx, parentStateKey{}, state)
}

// ParentStateFromContext retrieves the state attached by WithParentState.
func ParentStateFromContext(ctx context.Context) (*entity.SessionState, bool) {
	state, ok := ctx.Value(parentStateKey{}).(*entity.SessionState)
	return state, ok
}

// DelegationInterrupt is returned by DelegationTool.Execute when the
// spawned sub-agent itself raises a HITL interrupt; Interrupt's reason is
// prefixed with the sub-agent's context id. The graph tools node handles it
// like any other tool error: the parent's delegate_task call is answered
// with a failed Tool message, and the sub-agent's interrupt is not passed
// up to the host.
type DelegationInterrupt struct {
	ContextID string
	Interrupt hitl.Interrupt
}

func (e *DelegationInterrupt) Error() string {
	return fmt.Sprintf("subagent %s interrupted: %s", e.ContextID, e.Interrupt.Reason)
}

// delegationResult is the JSON payload returned to the parent.
type delegationResult struct {
	OK        bool   `json:"ok"`
	Result    string `json:"result"`
	ContextID string `json:"context_id"`
	Loops     int    `json:"loops"`
}

// DelegationTool implements the delegate_task built-in tool (spec.md
// §4.7), generalized from the teacher's SubAgentTool (AgentLoop re-entry)
// and Spawner (depth/permission bookkeeping) onto the session-state graph
// runner.
type DelegationTool struct {
	runner          GraphRunner
	defaultMaxLoops int
	logger          *zap.Logger
}

// NewDelegationTool binds a GraphRunner to the tool.
func NewDelegationTool(runner GraphRunner, defaultMaxLoops int, logger *zap.Logger) *DelegationTool {
	if defaultMaxLoops <= 0 {
		defaultMaxLoops = 15
	}
	return &DelegationTool{runner: runner, defaultMaxLoops: defaultMaxLoops, logger: logger}
}

func (t *DelegationTool) Name() string           { return "delegate_task" }
func (t *DelegationTool) Kind() domaintool.Kind  { return domaintool.KindExecute }

func (t *DelegationTool) Description() string {
	return "Delegate a sub-task to a fresh, isolated agent instance with its own message " +
		"history, loop budget, and thread identity. The parent receives only the sub-agent's " +
		"final message. Use for self-contained sub-tasks that benefit from a clean context."
}

func (t *DelegationTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "A clear, self-contained description of the sub-task",
			},
			"max_loops": map[string]interface{}{
				"type":        "integer",
				"description": fmt.Sprintf("Loop budget for the sub-agent (default %d)", t.defaultMaxLoops),
			},
		},
		"required": []string{"task"},
	}
}

func (t *DelegationTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	parent, ok := ParentStateFromContext(ctx)
	if !ok || !parent.CanDelegate() {
		return &domaintool.Result{Success: false, Error: "nested delegation is not permitted from a sub-agent"}, nil
	}

	task, ok := args["task"].(string)
	if !ok || task == "" {
		return &domaintool.Result{Success: false, Error: "task is required"}, nil
	}

	maxLoops := t.defaultMaxLoops
	if ml, ok := args["max_loops"].(float64); ok && ml > 0 {
		maxLoops = int(ml)
	}

	contextID := entity.SubagentContextPrefix + uuid.New().String()[:8]

	subState, err := entity.NewSubagentState(contextID, task, parent.WorkspacePath, maxLoops)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	if t.logger != nil {
		t.logger.Info("delegating sub-task", zap.String("context_id", contextID), zap.Int("max_loops", maxLoops))
	}

	finalState, interrupt, err := t.runner.Run(ctx, subState)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	if interrupt != nil {
		prefixed := *interrupt
		prefixed.Reason = "[" + contextID + "] " + interrupt.Reason
		return nil, &DelegationInterrupt{ContextID: contextID, Interrupt: prefixed}
	}

	return t.finalize(ctx, contextID, finalState)
}

// Resume continues an interrupted sub-agent thread with a resolution. The
// graph tools node never calls it: a delegate_task call that ended in a
// DelegationInterrupt has already been answered as failed.
func (t *DelegationTool) Resume(ctx context.Context, contextID string, resolution hitl.Resolution) (*domaintool.Result, error) {
	finalState, interrupt, err := t.runner.Resume(ctx, contextID, resolution)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	if interrupt != nil {
		prefixed := *interrupt
		prefixed.Reason = "[" + contextID + "] " + interrupt.Reason
		return nil, &DelegationInterrupt{ContextID: contextID, Interrupt: prefixed}
	}
	return t.finalize(ctx, contextID, finalState)
}

// finalize inspects the sub-agent's last message; if it's too terse, asks
// for one structured-summary retry turn before returning to the parent.
func (t *DelegationTool) finalize(ctx context.Context, contextID string, state *entity.SessionState) (*domaintool.Result, error) {
	last := state.LastMessage()
	if last != nil && len(last.Content()) < summaryRetryThreshold {
		summaryPrompt, err := entity.NewMessage("summary-request", entity.RoleHuman,
			"Your previous answer was brief. Provide a structured summary: what was done, "+
				"what was discovered, the results, and any relevant file paths.")
		if err == nil {
			retryState := state.Apply(entity.StatePatch{AppendMessages: []*entity.Message{summaryPrompt}})
			if retryFinal, retryInterrupt, retryErr := t.runner.Run(ctx, retryState); retryErr == nil && retryInterrupt == nil {
				state = retryFinal
			}
		}
	}

	result := delegationResult{OK: true, ContextID: contextID, Loops: state.Loops}
	if m := state.LastMessage(); m != nil {
		result.Result = m.Content()
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	return &domaintool.Result{Output: string(payload), Success: true, Metadata: map[string]interface{}{
		"context_id": contextID,
		"loops":      state.Loops,
	}}, nil
}
