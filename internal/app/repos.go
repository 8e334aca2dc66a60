package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/agentdesk-backend/internal/data/repos"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

type Repos struct {
	ChatThread  repos.ChatThreadRepo
	ChatMessage repos.ChatMessageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		ChatThread:  repos.NewChatThreadRepo(db, log),
		ChatMessage: repos.NewChatMessageRepo(db, log),
	}
}
