package services

import (
	"context"

	"github.com/yungbote/agentdesk-backend/internal/clients/orchestrate"
)

// Upstream is the slice of the agent service the chat and agent services use.
type Upstream interface {
	Configured() bool
	StartRun(ctx context.Context, r orchestrate.RunRequest) (orchestrate.ChunkStream, error)
	ListAgents(ctx context.Context) ([]orchestrate.Agent, error)
	FindAgentByName(ctx context.Context, name string) (*orchestrate.Agent, error)
	GetAgent(ctx context.Context, agentID string) (*orchestrate.AgentDetail, error)
	UpdateAgentKnowledgeBases(ctx context.Context, agentID string, kbIDs []string) (*orchestrate.AgentDetail, error)
	GetKnowledgeBaseWithDocuments(ctx context.Context, kbID string) (*orchestrate.KnowledgeBase, error)
	GetKnowledgeBaseStatus(ctx context.Context, kbID string) (*orchestrate.KnowledgeBaseStatus, error)
	ListKnowledgeBases(ctx context.Context) ([]orchestrate.KnowledgeBase, error)
	DeleteKnowledgeBase(ctx context.Context, kbID string) error
	DeleteKnowledgeBaseDocuments(ctx context.Context, kbID string, names []string) error
	DocumentDisplayMap(ctx context.Context, kbIDs []string) map[string]orchestrate.DocumentDisplay
}

var _ Upstream = (*orchestrate.Client)(nil)
