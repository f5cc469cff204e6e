package graph

import "github.com/ngoclaw/agentcore/internal/domain/entity"

// NodeName identifies one of the three graph phases the Router can send
// control to.
type NodeName string

const (
	NodePlanner   NodeName = "planner"
	NodeTools     NodeName = "tools"
	NodeFinalizer NodeName = "finalizer"
)

// Next implements the pure routing function of spec.md §4.11: tool-call
// batches route to the tools node, a completed batch under budget loops back
// to the planner, and everything else finalizes. The loop-budget invariant
// in spec.md §3 ("if loops == max_loops, the router forces the finalizer
// regardless of pending calls") is checked first.
func Next(state *entity.SessionState) NodeName {
	if state.MaxLoops > 0 && state.Loops >= state.MaxLoops {
		return NodeFinalizer
	}

	last := state.LastMessage()
	if last == nil {
		return NodePlanner
	}

	switch last.Role() {
	case entity.RoleHuman, entity.RoleSystem:
		return NodePlanner
	case entity.RoleAssistant:
		if len(lastBatchPending(state.Messages)) > 0 {
			return NodeTools
		}
		return NodeFinalizer
	case entity.RoleTool:
		if len(lastBatchPending(state.Messages)) > 0 {
			return NodeTools
		}
		return NodePlanner
	default:
		return NodeFinalizer
	}
}

// lastBatchPending finds the most recent Assistant message that requested
// tool calls and reports which of its call-ids still lack a matching Tool
// message anywhere after it — regardless of whether that Assistant message
// is itself the last entry or tool results have already started arriving.
func lastBatchPending(messages []*entity.Message) []string {
	batchIdx := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role() == entity.RoleAssistant && messages[i].HasPendingToolCalls() {
			batchIdx = i
			break
		}
		if messages[i].Role() == entity.RoleAssistant {
			// A content-only assistant message with no tool calls bounds the
			// search — anything before it belongs to an already-finalized turn.
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

	var pending []string
	for _, tc := range messages[batchIdx].ToolCalls() {
		if !answered[tc.CallID] {
			pending = append(pending, tc.CallID)
		}
	}
	return pending
}
