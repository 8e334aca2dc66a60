package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
	"github.com/yungbote/agentdesk-backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	Agents      services.AgentService
	ChatStream  services.ChatStreamService
	ChatThreads services.ChatThreadService
	Triage      services.TriageService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	auth, err := services.NewAuthService(log, cfg.JWTSecretKey)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}

	return Services{
		Auth:        auth,
		Agents:      services.NewAgentService(log, clients.Orchestrate),
		ChatStream:  services.NewChatStreamService(db, log, clients.Orchestrate, reposet.ChatThread, reposet.ChatMessage, cfg.Chat),
		ChatThreads: services.NewChatThreadService(db, log, reposet.ChatThread, reposet.ChatMessage),
		Triage:      services.NewTriageService(log, clients.Orchestrate, cfg.Chat.VerifierAgentName),
	}, nil
}
