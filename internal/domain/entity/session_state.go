package entity

import (
	"strings"
	"time"
)

// TodoStatus is one of the three lifecycle states of a todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// Todo is one entry of the session's todo list, mutated only by the TODO tool.
type Todo struct {
	ID       string
	Content  string
	Status   TodoStatus
	Priority int
}

// UploadedFile describes a user-uploaded file available to the session.
type UploadedFile struct {
	Path     string
	MimeType string
	Size     int64
}

// ModelSlot names one of the model roles the planner can pick among
// (spec.md §4.8 step 7).
type ModelSlot string

const (
	ModelSlotBase      ModelSlot = "base"
	ModelSlotReasoning ModelSlot = "reasoning"
	ModelSlotVision    ModelSlot = "vision"
	ModelSlotCode      ModelSlot = "code"
	ModelSlotChat      ModelSlot = "chat"
)

// SubagentContextPrefix is the fixed prefix identifying a delegated agent's
// context_id (spec.md §3).
const SubagentContextPrefix = "subagent-"

// SessionState is the single per-thread record the whole graph of nodes
// reads and updates. It is never mutated in place by node code — nodes
// return a StatePatch, and only the runtime's Apply merges it, preserving
// the append-only-semantics contract for `messages`.
type SessionState struct {
	Messages      []*Message
	Todos         []Todo
	ActiveSkill   string
	AllowedTools  map[string]bool
	MentionedAgents []string

	ContextID     string
	ParentContext string
	ThreadID      string

	Loops    int
	MaxLoops int

	CumulativePromptTokens     int64
	CumulativeCompletionTokens int64
	CompactCount               int
	LastCompressionRatio       float64
	AutoCompressedThisRequest  bool

	WorkspacePath string

	UploadedFiles    []UploadedFile
	NewUploadedFiles []UploadedFile

	ModelPref ModelSlot
}

// NewSessionState constructs the initial state for a fresh top-level session.
func NewSessionState(threadID, workspacePath string, maxLoops int) (*SessionState, error) {
	if threadID == "" {
		return nil, ErrInvalidThreadID
	}
	if maxLoops <= 0 {
		return nil, ErrLoopBudgetInvalid
	}
	return &SessionState{
		Messages:     make([]*Message, 0),
		AllowedTools: make(map[string]bool),
		ContextID:    "main",
		ThreadID:     threadID,
		MaxLoops:     maxLoops,
		WorkspacePath: workspacePath,
	}, nil
}

// NewSubagentState constructs the fresh, isolated state for a delegated
// sub-agent per the Delegation Tool contract (spec.md §4.7 step 2).
func NewSubagentState(contextID, task, workspacePath string, maxLoops int) (*SessionState, error) {
	if maxLoops <= 0 {
		return nil, ErrLoopBudgetInvalid
	}
	human, err := NewMessage("human-0", RoleHuman, task)
	if err != nil {
		return nil, err
	}
	return &SessionState{
		Messages:      []*Message{human},
		AllowedTools:  make(map[string]bool),
		ContextID:     contextID,
		ThreadID:      contextID,
		MaxLoops:      maxLoops,
		WorkspacePath: workspacePath,
	}, nil
}

// IsSubagent reports whether this state belongs to a delegated agent.
func (s *SessionState) IsSubagent() bool {
	return strings.HasPrefix(s.ContextID, SubagentContextPrefix)
}

// CanDelegate reports whether delegate_task may appear in this session's
// visible tools — false inside any subagent (no nested delegation, spec.md
// §3 invariant).
func (s *SessionState) CanDelegate() bool {
	return !s.IsSubagent()
}

// LastMessage returns the most recent message, or nil if the log is empty.
func (s *SessionState) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// PendingToolCallIDs returns the call-ids of the last Assistant message that
// have not yet been answered by a later Tool message.
func (s *SessionState) PendingToolCallIDs() []string {
	last := s.LastMessage()
	if last == nil || !last.HasPendingToolCalls() {
		return nil
	}
	answered := make(map[string]bool)
	for _, m := range s.Messages {
		if m.Role() == RoleTool {
			answered[m.CallID()] = true
		}
	}
	var pending []string
	for _, tc := range last.ToolCalls() {
		if !answered[tc.CallID] {
			pending = append(pending, tc.CallID)
		}
	}
	return pending
}

// StatePatch is the only vehicle nodes use to mutate state. A nil field (or
// zero value with its matching ...Set flag false) means "no change."
type StatePatch struct {
	AppendMessages  []*Message
	ReplaceMessages []*Message // used by the compressor; replaces Messages wholesale

	ReplaceTodos []Todo

	SetActiveSkill *string
	AllowTools     []string
	RevokeTools    []string

	ConsumeMentionedAgents bool

	IncrementLoops bool

	AddPromptTokens     int64
	AddCompletionTokens int64
	ResetTokenCounters  bool

	IncrementCompactCount bool
	SetCompressionRatio   *float64
	SetAutoCompressed     *bool

	ReplaceNewUploadedFiles []UploadedFile
	ConsumeNewUploadedFiles bool

	SetModelPref *ModelSlot
}

// Apply merges a patch into a copy of the state and returns the new value,
// preserving the "update patches merged by the runtime" lifecycle rule
// (spec.md §3). The receiver is never modified.
func (s *SessionState) Apply(p StatePatch) *SessionState {
	next := *s
	next.AllowedTools = cloneBoolSet(s.AllowedTools)
	next.MentionedAgents = append([]string(nil), s.MentionedAgents...)
	next.Messages = append([]*Message(nil), s.Messages...)
	next.Todos = append([]Todo(nil), s.Todos...)
	next.UploadedFiles = append([]UploadedFile(nil), s.UploadedFiles...)
	next.NewUploadedFiles = append([]UploadedFile(nil), s.NewUploadedFiles...)

	if p.ReplaceMessages != nil {
		next.Messages = p.ReplaceMessages
	} else if len(p.AppendMessages) > 0 {
		next.Messages = append(next.Messages, p.AppendMessages...)
	}

	if p.ReplaceTodos != nil {
		next.Todos = p.ReplaceTodos
	}

	if p.SetActiveSkill != nil {
		next.ActiveSkill = *p.SetActiveSkill
	}
	for _, name := range p.AllowTools {
		next.AllowedTools[name] = true
	}
	for _, name := range p.RevokeTools {
		delete(next.AllowedTools, name)
	}

	if p.ConsumeMentionedAgents {
		next.MentionedAgents = nil
	}

	if p.IncrementLoops {
		next.Loops = s.Loops + 1
	}

	if p.ResetTokenCounters {
		next.CumulativePromptTokens = 0
		next.CumulativeCompletionTokens = 0
	} else {
		next.CumulativePromptTokens = s.CumulativePromptTokens + p.AddPromptTokens
		next.CumulativeCompletionTokens = s.CumulativeCompletionTokens + p.AddCompletionTokens
	}

	if p.IncrementCompactCount {
		next.CompactCount = s.CompactCount + 1
	}
	if p.SetCompressionRatio != nil {
		next.LastCompressionRatio = *p.SetCompressionRatio
	}
	if p.SetAutoCompressed != nil {
		next.AutoCompressedThisRequest = *p.SetAutoCompressed
	}

	if p.ReplaceNewUploadedFiles != nil {
		next.UploadedFiles = append(next.UploadedFiles, p.ReplaceNewUploadedFiles...)
		next.NewUploadedFiles = p.ReplaceNewUploadedFiles
	}
	if p.ConsumeNewUploadedFiles {
		next.NewUploadedFiles = nil
	}

	if p.SetModelPref != nil {
		next.ModelPref = *p.SetModelPref
	}

	return &next
}

// ResetForNewTurn clears the guards that are scoped to a single planner
// entry rather than the whole session (Open Question #2 in SPEC_FULL.md §9):
// auto_compressed_this_request is cleared at the start of the turn that
// follows the one where compression fired.
func (s *SessionState) ResetForNewTurn() *SessionState {
	f := false
	return s.Apply(StatePatch{SetAutoCompressed: &f})
}

func cloneBoolSet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// CheckpointedAt stamps the node boundary a checkpoint is taken at — used
// purely for diagnostics; not part of the equality/identity of the state.
type CheckpointedAt struct {
	Node string
	At   time.Time
}
