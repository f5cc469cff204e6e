package checkpoint

import (
	"context"
	"sync"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/repository"
)

// MemoryCheckpointer is an in-memory Checkpointer, adapted from the
// teacher's MemoryMessageRepository for development and tests — it keeps
// only the latest snapshot per thread.
type MemoryCheckpointer struct {
	mu    sync.RWMutex
	state map[string]*entity.SessionState
}

// NewMemoryCheckpointer creates an in-memory checkpointer.
func NewMemoryCheckpointer() repository.Checkpointer {
	return &MemoryCheckpointer{
		state: make(map[string]*entity.SessionState),
	}
}

func (c *MemoryCheckpointer) Put(_ context.Context, threadID, _ string, state *entity.SessionState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[threadID] = state
	return nil
}

func (c *MemoryCheckpointer) Get(_ context.Context, threadID string) (*entity.SessionState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state[threadID], nil
}

func (c *MemoryCheckpointer) Delete(_ context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.state, threadID)
	return nil
}
