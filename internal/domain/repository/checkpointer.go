package repository

import (
	"context"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
)

// Checkpointer is the external interface the core consumes for durable
// per-thread state (spec.md §6). The runtime calls Put at every suspension
// point named in spec.md §5 so an interrupted run can resume by ThreadID.
type Checkpointer interface {
	// Put persists state at a named node boundary, keyed by thread_id.
	Put(ctx context.Context, threadID, node string, state *entity.SessionState) error

	// Get returns the most recently persisted state for thread_id, or nil
	// if no checkpoint exists yet.
	Get(ctx context.Context, threadID string) (*entity.SessionState, error)

	// Delete removes all checkpoints for thread_id (explicit session deletion,
	// spec.md §3 Lifecycle).
	Delete(ctx context.Context, threadID string) error
}
