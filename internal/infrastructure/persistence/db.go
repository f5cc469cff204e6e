package persistence

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ngoclaw/agentcore/internal/infrastructure/checkpoint/models"
	"github.com/ngoclaw/agentcore/internal/infrastructure/config"
)

// NewDBConnection opens a GORM connection for the configured checkpoint
// driver and migrates the checkpoint table.
func NewDBConnection(cfg *config.CheckpointConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported checkpoint driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to checkpoint store: %w", err)
	}

	if err := db.AutoMigrate(&models.CheckpointModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate checkpoint table: %w", err)
	}

	return db, nil
}
