package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/yungbote/agentdesk-backend/internal/clients/orchestrate"
	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

const (
	KnowledgeBaseLink   = "link"
	KnowledgeBaseUnlink = "unlink"
)

type AgentKnowledgeBases struct {
	KnowledgeBases   []orchestrate.KnowledgeBase `json:"knowledgeBases"`
	KnowledgeBaseIDs []string                    `json:"knowledgeBaseIds"`
}

type AgentService interface {
	Configured() bool
	ListAgents(ctx context.Context) ([]orchestrate.Agent, error)
	GetAgent(ctx context.Context, agentID string) (*orchestrate.AgentDetail, error)
	KnowledgeBases(ctx context.Context, agentID string) (*AgentKnowledgeBases, error)
	// UpdateKnowledgeBase links or unlinks one knowledge base and returns the
	// updated agent.
	UpdateKnowledgeBase(ctx context.Context, agentID, action, kbID string) (*orchestrate.AgentDetail, error)
	GetKnowledgeBase(ctx context.Context, kbID string) (*orchestrate.KnowledgeBase, error)
	KnowledgeBaseStatus(ctx context.Context, kbID string) (*orchestrate.KnowledgeBaseStatus, error)
	ListAllKnowledgeBases(ctx context.Context) ([]orchestrate.KnowledgeBase, error)
	DeleteKnowledgeBase(ctx context.Context, kbID string) error
	// DeleteKnowledgeBaseDocuments removes documents by name.
	DeleteKnowledgeBaseDocuments(ctx context.Context, kbID string, names []string) error
}

type agentService struct {
	log      *logger.Logger
	upstream Upstream
}

func NewAgentService(baseLog *logger.Logger, upstream Upstream) AgentService {
	return &agentService{
		log:      baseLog.With("service", "AgentService"),
		upstream: upstream,
	}
}

func (s *agentService) Configured() bool {
	return s.upstream != nil && s.upstream.Configured()
}

func (s *agentService) ListAgents(ctx context.Context) ([]orchestrate.Agent, error) {
	if !s.Configured() {
		return nil, apierr.NotConfigured("upstream not configured")
	}
	agents, err := s.upstream.ListAgents(ctx)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("list agents: %w", err))
	}
	if agents == nil {
		agents = []orchestrate.Agent{}
	}
	return agents, nil
}

func (s *agentService) GetAgent(ctx context.Context, agentID string) (*orchestrate.AgentDetail, error) {
	return s.agent(ctx, agentID)
}

// KnowledgeBases returns the agent's linked knowledge bases in link order,
// skipping ids the agent service no longer knows.
func (s *agentService) KnowledgeBases(ctx context.Context, agentID string) (*AgentKnowledgeBases, error) {
	agent, err := s.agent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	out := &AgentKnowledgeBases{
		KnowledgeBases:   []orchestrate.KnowledgeBase{},
		KnowledgeBaseIDs: agent.KnowledgeBase,
	}
	for _, id := range agent.KnowledgeBase {
		kb, err := s.upstream.GetKnowledgeBaseWithDocuments(ctx, id)
		if err != nil {
			return nil, apierr.Internal(fmt.Errorf("knowledge base %s: %w", id, err))
		}
		if kb != nil {
			out.KnowledgeBases = append(out.KnowledgeBases, *kb)
		}
	}
	return out, nil
}

func (s *agentService) UpdateKnowledgeBase(ctx context.Context, agentID, action, kbID string) (*orchestrate.AgentDetail, error) {
	kbID = strings.TrimSpace(kbID)
	if action == "" || kbID == "" {
		return nil, apierr.InvalidRequest("Action and knowledgeBaseId are required")
	}
	if action != KnowledgeBaseLink && action != KnowledgeBaseUnlink {
		return nil, apierr.InvalidRequest("Action must be link or unlink")
	}
	agent, err := s.agent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	var next []string
	if action == KnowledgeBaseLink {
		if slices.Contains(agent.KnowledgeBase, kbID) {
			return nil, apierr.InvalidRequest("Knowledge base already linked")
		}
		next = append(slices.Clone(agent.KnowledgeBase), kbID)
	} else {
		next = make([]string, 0, len(agent.KnowledgeBase))
		for _, id := range agent.KnowledgeBase {
			if id != kbID {
				next = append(next, id)
			}
		}
	}

	s.log.Info("updating agent knowledge bases", "agent_id", agentID, "action", action, "knowledge_base_id", kbID)
	updated, err := s.upstream.UpdateAgentKnowledgeBases(ctx, agentID, next)
	if err != nil {
		s.log.Error("agent knowledge base update failed", "agent_id", agentID, "action", action, "error", err)
		return nil, apierr.Internal(fmt.Errorf("update agent: %w", err))
	}
	return updated, nil
}

func (s *agentService) GetKnowledgeBase(ctx context.Context, kbID string) (*orchestrate.KnowledgeBase, error) {
	if !s.Configured() {
		return nil, apierr.NotConfigured("upstream not configured")
	}
	kb, err := s.upstream.GetKnowledgeBaseWithDocuments(ctx, kbID)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("get knowledge base: %w", err))
	}
	if kb == nil {
		return nil, apierr.NotFound("Knowledge base not found")
	}
	return kb, nil
}

func (s *agentService) KnowledgeBaseStatus(ctx context.Context, kbID string) (*orchestrate.KnowledgeBaseStatus, error) {
	if !s.Configured() {
		return nil, apierr.NotConfigured("upstream not configured")
	}
	st, err := s.upstream.GetKnowledgeBaseStatus(ctx, kbID)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("knowledge base status: %w", err))
	}
	if st == nil {
		return nil, apierr.NotFound("Knowledge base not found")
	}
	return st, nil
}

func (s *agentService) ListAllKnowledgeBases(ctx context.Context) ([]orchestrate.KnowledgeBase, error) {
	if !s.Configured() {
		return nil, apierr.NotConfigured("upstream not configured")
	}
	kbs, err := s.upstream.ListKnowledgeBases(ctx)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("list knowledge bases: %w", err))
	}
	if kbs == nil {
		kbs = []orchestrate.KnowledgeBase{}
	}
	return kbs, nil
}

func (s *agentService) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	if strings.TrimSpace(kbID) == "" {
		return apierr.InvalidRequest("Missing kbId")
	}
	if !s.Configured() {
		return apierr.NotConfigured("upstream not configured")
	}
	if err := s.upstream.DeleteKnowledgeBase(ctx, kbID); err != nil {
		if orchestrate.IsNotFound(err) {
			return apierr.NotFound("Knowledge base not found")
		}
		s.log.Error("knowledge base delete failed", "kb_id", kbID, "error", err)
		return apierr.Internal(fmt.Errorf("delete knowledge base: %w", err))
	}
	s.log.Info("knowledge base deleted", "kb_id", kbID)
	return nil
}

func (s *agentService) DeleteKnowledgeBaseDocuments(ctx context.Context, kbID string, names []string) error {
	if strings.TrimSpace(kbID) == "" {
		return apierr.InvalidRequest("Missing kbId")
	}
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return apierr.InvalidRequest("Document names are required")
	}
	if !s.Configured() {
		return apierr.NotConfigured("upstream not configured")
	}
	if err := s.upstream.DeleteKnowledgeBaseDocuments(ctx, kbID, cleaned); err != nil {
		if orchestrate.IsNotFound(err) {
			return apierr.NotFound("Knowledge base not found")
		}
		s.log.Error("knowledge base document delete failed", "kb_id", kbID, "count", len(cleaned), "error", err)
		return apierr.Internal(fmt.Errorf("delete documents: %w", err))
	}
	return nil
}

func (s *agentService) agent(ctx context.Context, agentID string) (*orchestrate.AgentDetail, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, apierr.InvalidRequest("Missing agentId")
	}
	if !s.Configured() {
		return nil, apierr.NotConfigured("upstream not configured")
	}
	agent, err := s.upstream.GetAgent(ctx, agentID)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("get agent: %w", err))
	}
	if agent == nil {
		return nil, apierr.NotFound("Agent not found")
	}
	return agent, nil
}
