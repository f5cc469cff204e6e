package models

import "time"

// CheckpointModel is the GORM row for one persisted SessionState snapshot.
// Only the latest row per ThreadID is read back by Get; older rows are kept
// for audit/replay and pruned by an external retention job (out of scope).
type CheckpointModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ThreadID  string `gorm:"index;size:128;not null"`
	Node      string `gorm:"size:64;not null"`
	StateJSON string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// TableName pins the table name regardless of struct name pluralization rules.
func (CheckpointModel) TableName() string {
	return "checkpoints"
}
