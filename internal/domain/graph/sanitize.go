package graph

import "github.com/ngoclaw/agentcore/internal/domain/entity"

// sanitizeHistory drops the trailing Assistant message's tool-call requests
// if any of them lack a matching Tool message later in the sequence,
// preserving the API-correctness invariant (spec.md §3, planner step 1) —
// generalized from the teacher's sanitizeMessages (service/sanitize.go),
// which did the same thing against its provider-shaped LLMMessage type.
func sanitizeHistory(messages []*entity.Message) []*entity.Message {
	if len(messages) == 0 {
		return messages
	}

	answered := make(map[string]bool)
	for _, m := range messages {
		if m.Role() == entity.RoleTool {
			answered[m.CallID()] = true
		}
	}

	result := make([]*entity.Message, len(messages))
	copy(result, messages)

	for i := len(result) - 1; i >= 0; i-- {
		if result[i].Role() == entity.RoleAssistant && result[i].HasPendingToolCalls() {
			allAnswered := true
			for _, tc := range result[i].ToolCalls() {
				if !answered[tc.CallID] {
					allAnswered = false
					break
				}
			}
			if !allAnswered {
				result[i] = result[i].WithoutToolCalls()
			}
			break
		}
	}

	return result
}

// truncateHistory keeps the last maxHistory non-system messages, but always
// retains every System message and pulls back in any Assistant message whose
// tool-call batch a retained Tool message belongs to, even if that Assistant
// message falls outside the window (spec.md §4.8 step 2).
func truncateHistory(messages []*entity.Message, maxHistory int) []*entity.Message {
	if maxHistory <= 0 || len(messages) <= maxHistory {
		return messages
	}

	var anchors []*entity.Message
	var rest []*entity.Message
	for _, m := range messages {
		if m.IsSystem() {
			anchors = append(anchors, m)
		} else {
			rest = append(rest, m)
		}
	}

	if len(rest) <= maxHistory {
		return append(append([]*entity.Message(nil), anchors...), rest...)
	}

	kept := append([]*entity.Message(nil), rest[len(rest)-maxHistory:]...)

	neededCallIDs := make(map[string]bool)
	for _, m := range kept {
		if m.Role() == entity.RoleTool {
			neededCallIDs[m.CallID()] = true
		}
	}

	keptSet := make(map[*entity.Message]bool, len(kept))
	for _, m := range kept {
		keptSet[m] = true
	}

	cutoff := len(rest) - maxHistory
	var recovered []*entity.Message
	for i := 0; i < cutoff; i++ {
		m := rest[i]
		if m.Role() != entity.RoleAssistant || !m.HasPendingToolCalls() {
			continue
		}
		for _, tc := range m.ToolCalls() {
			if neededCallIDs[tc.CallID] {
				recovered = append(recovered, m)
				break
			}
		}
	}

	final := append(append([]*entity.Message(nil), anchors...), recovered...)
	final = append(final, kept...)
	return final
}
