package checkpoint

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/repository"
	"github.com/ngoclaw/agentcore/internal/infrastructure/checkpoint/models"
	domainErrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// GormCheckpointer persists SessionState snapshots through GORM (sqlite or
// postgres, selected by the caller's dialector), adapted from the teacher's
// GormMessageRepository.
type GormCheckpointer struct {
	db *gorm.DB
}

// NewGormCheckpointer creates a GORM-backed checkpointer.
func NewGormCheckpointer(db *gorm.DB) repository.Checkpointer {
	return &GormCheckpointer{db: db}
}

func (c *GormCheckpointer) Put(ctx context.Context, threadID, node string, state *entity.SessionState) error {
	data, err := encodeState(state)
	if err != nil {
		return domainErrors.NewInternalError("failed to encode checkpoint: " + err.Error())
	}
	row := &models.CheckpointModel{
		ThreadID:  threadID,
		Node:      node,
		StateJSON: string(data),
	}
	if err := c.db.WithContext(ctx).Create(row).Error; err != nil {
		return domainErrors.NewInternalError("failed to write checkpoint: " + err.Error())
	}
	return nil
}

func (c *GormCheckpointer) Get(ctx context.Context, threadID string) (*entity.SessionState, error) {
	var row models.CheckpointModel
	err := c.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id desc").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, domainErrors.NewInternalError("failed to read checkpoint: " + err.Error())
	}
	return decodeState([]byte(row.StateJSON))
}

func (c *GormCheckpointer) Delete(ctx context.Context, threadID string) error {
	if err := c.db.WithContext(ctx).Where("thread_id = ?", threadID).Delete(&models.CheckpointModel{}).Error; err != nil {
		return domainErrors.NewInternalError("failed to delete checkpoints: " + err.Error())
	}
	return nil
}
