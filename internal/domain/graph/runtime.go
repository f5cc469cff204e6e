package graph

import (
	stdctx "context"
	"fmt"
	"sync"
	"time"

	"github.com/ngoclaw/agentcore/internal/domain/agent"
	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/hitl"
	"github.com/ngoclaw/agentcore/internal/domain/repository"
	"github.com/ngoclaw/agentcore/internal/domain/service"
	"go.uber.org/zap"
)

// suspendedCall remembers exactly which tool call an Interrupt paused on, so
// a later Resume can route the host's Resolution to the right place instead
// of re-evaluating the whole batch from scratch.
type suspendedCall struct {
	threadID string
	call     entity.ToolCallRequest
}

// Runtime drives one thread's Planner → Tools → Finalizer graph under the
// Router's decisions, checkpointing at every node boundary named in spec.md
// §5. It satisfies agent.GraphRunner structurally, by method shape alone,
// which is how the delegation tool drives its sub-agent runs.
type Runtime struct {
	planner     *Planner
	tools       *ToolsNode
	finalizer   *Finalizer
	checkpoints repository.Checkpointer
	logger      *zap.Logger

	mu          sync.Mutex
	suspensions map[string]suspendedCall // callID -> suspension record

	events chan<- entity.AgentEvent
}

// NewRuntime wires the three nodes and the checkpointer into a driver.
func NewRuntime(planner *Planner, tools *ToolsNode, finalizer *Finalizer, checkpoints repository.Checkpointer, logger *zap.Logger) *Runtime {
	return &Runtime{
		planner:     planner,
		tools:       tools,
		finalizer:   finalizer,
		checkpoints: checkpoints,
		logger:      logger,
		suspensions: make(map[string]suspendedCall),
	}
}

// SetEvents attaches an event sink the Runtime notifies (non-blocking, best
// effort — a full channel drops the event rather than stalling the graph)
// as it moves between nodes, letting a host like cmd/agentcore render
// step-by-step progress without the teacher's streaming-callback plumbing.
func (r *Runtime) SetEvents(ch chan<- entity.AgentEvent) {
	r.events = ch
}

func (r *Runtime) emit(ev entity.AgentEvent) {
	if r.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case r.events <- ev:
	default:
	}
}

// Run drives state through the graph until it finalizes or an interrupt
// suspends it. Each node's patch is applied immediately and the result
// checkpointed before the Router decides the next node, so an interrupted
// run never loses an already-completed node's work. A StateMachine local to
// this call mirrors the node sequence (spec.md §5) purely for observability
// — one Runtime can drive many threads concurrently, so the machine can't
// live on the Runtime itself.
func (r *Runtime) Run(ctx stdctx.Context, state *entity.SessionState) (*entity.SessionState, *hitl.Interrupt, error) {
	smLogger := r.logger
	if smLogger == nil {
		smLogger = zap.NewNop()
	}
	sm := service.NewStateMachine(0, smLogger)
	current := state
	step := 0

	for {
		node := Next(current)

		var (
			patch     entity.StatePatch
			interrupt *hitl.Interrupt
			err       error
		)

		switch node {
		case NodePlanner:
			sm.Transition(service.StatePlanning)
			patch, err = r.planner.Run(ctx, current)
		case NodeTools:
			sm.Transition(service.StateTools)
			patch, interrupt, err = r.tools.Run(ctx, current)
		case NodeFinalizer:
			sm.Transition(service.StateFinalizing)
			patch, err = r.finalizer.Run(ctx, current)
		default:
			return current, nil, fmt.Errorf("graph: unknown node %q", node)
		}

		if err != nil {
			sm.Transition(service.StateError)
			r.emit(entity.AgentEvent{Type: entity.EventError, Error: err.Error()})
			return current, nil, err
		}

		current = current.Apply(patch)
		if putErr := r.checkpoints.Put(ctx, current.ThreadID, string(node), current); putErr != nil {
			return current, nil, putErr
		}

		step++
		sm.SetStep(step)
		r.emit(entity.AgentEvent{Type: entity.EventStepDone, StepInfo: &entity.StepInfo{Step: step, State: string(sm.State())}})

		if interrupt != nil {
			r.recordSuspension(current.ThreadID, *interrupt, current.Messages)
			return current, interrupt, nil
		}

		if node == NodeFinalizer {
			sm.Transition(service.StateComplete)
			r.emit(entity.AgentEvent{Type: entity.EventDone})
			return current, nil, nil
		}
	}
}

// Resume loads the checkpointed state for threadID, answers the suspended
// call with the host's resolution, then continues the graph from there.
func (r *Runtime) Resume(ctx stdctx.Context, threadID string, resolution hitl.Resolution) (*entity.SessionState, *hitl.Interrupt, error) {
	state, err := r.checkpoints.Get(ctx, threadID)
	if err != nil {
		return nil, nil, err
	}
	if state == nil {
		return nil, nil, fmt.Errorf("graph: no checkpoint found for thread %q", threadID)
	}

	suspended, ok := r.takeSuspension(threadID)
	if !ok {
		// Nothing recorded in-process (e.g. the runtime restarted) — fall
		// back to re-deriving the pending call from the persisted batch.
		pending := pendingToolCalls(state.Messages)
		if len(pending) == 0 {
			return r.Run(ctx, state)
		}
		suspended = suspendedCall{threadID: threadID, call: pending[0]}
	}

	msg, err := r.tools.ResumeCall(agent.WithParentState(ctx, state), suspended.call, resolution)
	if err != nil {
		return state, nil, err
	}

	patch := entity.StatePatch{AppendMessages: []*entity.Message{msg}}
	state = state.Apply(patch)
	if err := r.checkpoints.Put(ctx, threadID, string(NodeTools), state); err != nil {
		return state, nil, err
	}

	return r.Run(ctx, state)
}

func (r *Runtime) recordSuspension(threadID string, interrupt hitl.Interrupt, messages []*entity.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tc := range pendingToolCalls(messages) {
		if tc.CallID == interrupt.CallID {
			r.suspensions[interrupt.CallID] = suspendedCall{threadID: threadID, call: tc}
			return
		}
	}
}

func (r *Runtime) takeSuspension(threadID string) (suspendedCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for callID, s := range r.suspensions {
		if s.threadID == threadID {
			delete(r.suspensions, callID)
			return s, true
		}
	}
	return suspendedCall{}, false
}
