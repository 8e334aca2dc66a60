package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/agentdesk-backend/internal/domain/chat"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&chat.ChatThread{},
		&chat.ChatMessage{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
