package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
)

// stateDTO is the wire/storage shape of entity.SessionState. entity.Message
// keeps its fields unexported behind accessors, so the checkpointer needs
// an explicit serialization boundary rather than reflection over private
// fields; SessionState's exported fields are copied across directly.
type stateDTO struct {
	Messages      []messageDTO      `json:"messages"`
	Todos         []entity.Todo     `json:"todos"`
	ActiveSkill   string            `json:"active_skill"`
	AllowedTools  map[string]bool   `json:"allowed_tools"`
	MentionedAgents []string        `json:"mentioned_agents"`

	ContextID     string `json:"context_id"`
	ParentContext string `json:"parent_context"`
	ThreadID      string `json:"thread_id"`

	Loops    int `json:"loops"`
	MaxLoops int `json:"max_loops"`

	CumulativePromptTokens     int64   `json:"cumulative_prompt_tokens"`
	CumulativeCompletionTokens int64   `json:"cumulative_completion_tokens"`
	CompactCount               int     `json:"compact_count"`
	LastCompressionRatio       float64 `json:"last_compression_ratio"`
	AutoCompressedThisRequest  bool    `json:"auto_compressed_this_request"`

	WorkspacePath string `json:"workspace_path"`

	UploadedFiles    []entity.UploadedFile `json:"uploaded_files"`
	NewUploadedFiles []entity.UploadedFile `json:"new_uploaded_files"`

	ModelPref entity.ModelSlot `json:"model_pref"`
}

type messageDTO struct {
	ID        string                    `json:"id"`
	Role      entity.Role               `json:"role"`
	Content   string                    `json:"content"`
	ToolCalls []entity.ToolCallRequest  `json:"tool_calls,omitempty"`
	CallID    string                    `json:"call_id,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
	Metadata  map[string]interface{}    `json:"metadata,omitempty"`
}

func encodeState(s *entity.SessionState) ([]byte, error) {
	dto := stateDTO{
		Todos:                      s.Todos,
		ActiveSkill:                s.ActiveSkill,
		AllowedTools:               s.AllowedTools,
		MentionedAgents:            s.MentionedAgents,
		ContextID:                  s.ContextID,
		ParentContext:              s.ParentContext,
		ThreadID:                   s.ThreadID,
		Loops:                      s.Loops,
		MaxLoops:                   s.MaxLoops,
		CumulativePromptTokens:     s.CumulativePromptTokens,
		CumulativeCompletionTokens: s.CumulativeCompletionTokens,
		CompactCount:               s.CompactCount,
		LastCompressionRatio:       s.LastCompressionRatio,
		AutoCompressedThisRequest:  s.AutoCompressedThisRequest,
		WorkspacePath:              s.WorkspacePath,
		UploadedFiles:              s.UploadedFiles,
		NewUploadedFiles:           s.NewUploadedFiles,
		ModelPref:                  s.ModelPref,
	}
	for _, m := range s.Messages {
		dto.Messages = append(dto.Messages, messageDTO{
			ID:        m.ID(),
			Role:      m.Role(),
			Content:   m.Content(),
			ToolCalls: m.ToolCalls(),
			CallID:    m.CallID(),
			Timestamp: m.Timestamp(),
			Metadata:  m.Metadata(),
		})
	}
	return json.Marshal(dto)
}

func decodeState(data []byte) (*entity.SessionState, error) {
	var dto stateDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}

	messages := make([]*entity.Message, 0, len(dto.Messages))
	for _, m := range dto.Messages {
		messages = append(messages, entity.ReconstructMessage(
			m.ID, m.Role, m.Content, m.ToolCalls, m.CallID, m.Timestamp, m.Metadata,
		))
	}

	allowed := dto.AllowedTools
	if allowed == nil {
		allowed = make(map[string]bool)
	}

	return &entity.SessionState{
		Messages:                   messages,
		Todos:                      dto.Todos,
		ActiveSkill:                dto.ActiveSkill,
		AllowedTools:               allowed,
		MentionedAgents:            dto.MentionedAgents,
		ContextID:                  dto.ContextID,
		ParentContext:              dto.ParentContext,
		ThreadID:                   dto.ThreadID,
		Loops:                      dto.Loops,
		MaxLoops:                   dto.MaxLoops,
		CumulativePromptTokens:     dto.CumulativePromptTokens,
		CumulativeCompletionTokens: dto.CumulativeCompletionTokens,
		CompactCount:               dto.CompactCount,
		LastCompressionRatio:       dto.LastCompressionRatio,
		AutoCompressedThisRequest:  dto.AutoCompressedThisRequest,
		WorkspacePath:              dto.WorkspacePath,
		UploadedFiles:              dto.UploadedFiles,
		NewUploadedFiles:           dto.NewUploadedFiles,
		ModelPref:                  dto.ModelPref,
	}, nil
}
