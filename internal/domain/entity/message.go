package entity

import "time"

// Role identifies who produced a Message, per the four roles named in
// SPEC_FULL.md §3's Session State table.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallRequest is one tool-call emitted by an Assistant message. Every
// request must eventually be answered by a Tool message with the matching
// CallID (the sanitizer invariant in spec.md §3).
type ToolCallRequest struct {
	CallID    string
	Name      string
	Arguments map[string]interface{}
}

// Message is one entry in a session's append-only message log.
type Message struct {
	id        string
	role      Role
	content   string
	toolCalls []ToolCallRequest // set only on Assistant messages
	callID    string            // set only on Tool messages; matches a ToolCallRequest.CallID
	timestamp time.Time
	metadata  map[string]interface{}
}

// NewMessage creates a new message (factory method).
func NewMessage(id string, role Role, content string) (*Message, error) {
	if id == "" {
		return nil, ErrInvalidMessageID
	}
	return &Message{
		id:        id,
		role:      role,
		content:   content,
		timestamp: time.Now(),
		metadata:  make(map[string]interface{}),
	}, nil
}

// NewAssistantMessage creates an Assistant message carrying tool-call
// requests (possibly none, for a content-only terminal turn).
func NewAssistantMessage(id, content string, toolCalls []ToolCallRequest) (*Message, error) {
	m, err := NewMessage(id, RoleAssistant, content)
	if err != nil {
		return nil, err
	}
	m.toolCalls = toolCalls
	return m, nil
}

// NewToolMessage creates a Tool message answering a specific call-id.
func NewToolMessage(id, callID, content string) (*Message, error) {
	if callID == "" {
		return nil, ErrInvalidToolCallID
	}
	m, err := NewMessage(id, RoleTool, content)
	if err != nil {
		return nil, err
	}
	m.callID = callID
	return m, nil
}

// ReconstructMessage rebuilds a message from persisted fields (checkpointer hydration).
func ReconstructMessage(
	id string,
	role Role,
	content string,
	toolCalls []ToolCallRequest,
	callID string,
	timestamp time.Time,
	metadata map[string]interface{},
) *Message {
	return &Message{
		id:        id,
		role:      role,
		content:   content,
		toolCalls: toolCalls,
		callID:    callID,
		timestamp: timestamp,
		metadata:  metadata,
	}
}

func (m *Message) ID() string           { return m.id }
func (m *Message) Role() Role           { return m.role }
func (m *Message) Content() string      { return m.content }
func (m *Message) CallID() string       { return m.callID }
func (m *Message) Timestamp() time.Time { return m.timestamp }

// ToolCalls returns a copy of the tool-call requests carried by an Assistant message.
func (m *Message) ToolCalls() []ToolCallRequest {
	out := make([]ToolCallRequest, len(m.toolCalls))
	copy(out, m.toolCalls)
	return out
}

// HasPendingToolCalls reports whether this Assistant message requested tool calls.
func (m *Message) HasPendingToolCalls() bool {
	return m.role == RoleAssistant && len(m.toolCalls) > 0
}

// WithoutToolCalls returns a copy of this message with tool-call requests
// stripped — used by the sanitizer to prune unanswered batches (spec.md §3 invariant).
func (m *Message) WithoutToolCalls() *Message {
	clone := *m
	clone.toolCalls = nil
	return &clone
}

func (m *Message) SetMetadata(key string, value interface{}) {
	m.metadata[key] = value
}

func (m *Message) GetMetadata(key string) (interface{}, bool) {
	val, ok := m.metadata[key]
	return val, ok
}

func (m *Message) Metadata() map[string]interface{} {
	result := make(map[string]interface{}, len(m.metadata))
	for k, v := range m.metadata {
		result[k] = v
	}
	return result
}

func (m *Message) IsFromUser() bool      { return m.role == RoleHuman }
func (m *Message) IsFromAssistant() bool { return m.role == RoleAssistant }
func (m *Message) IsSystem() bool        { return m.role == RoleSystem }
