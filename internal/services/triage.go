package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/agentdesk-backend/internal/clients/orchestrate"
	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

// TriageResult names the agent a message should go to. IsHighRisk asks the
// chat turn to run verification.
type TriageResult struct {
	AgentID    string `json:"agentId"`
	AgentName  string `json:"agentName,omitempty"`
	IsHighRisk bool   `json:"isHighRisk,omitempty"`
}

type triageRule struct {
	keywords  []string
	agentName string
	highRisk  bool
}

// triageRules are checked in order; the first rule with a matching keyword
// whose agent exists wins.
var triageRules = []triageRule{
	{keywords: []string{"security", "compliance", "pii", "production access", "audit"}, agentName: "Security & Compliance", highRisk: true},
	{keywords: []string{"incident", "outage", "down", "troubleshoot", "runbook"}, agentName: "Incident & Troubleshooting"},
	{
		keywords: []string{
			"onboard", "onboarding", "new hire", "new here", "just joined", "new employee",
			"first week", "day 1", "what do i need to know", "getting started", "i am new",
		},
		agentName: "Onboarding Assistant",
	},
	{keywords: []string{"vpn", "access", "repo", "it support", "laptop", "device"}, agentName: "IT Support & Access"},
	{keywords: []string{"policy", "hr", "pto", "leave", "remote work", "code of conduct"}, agentName: "HR Policy Assistant"},
	{keywords: []string{"project", "hosted", "repo", "where is", "staging", "deploy"}, agentName: "Project & Hosting Assistant"},
	{keywords: []string{"how do i", "process", "how to", "procedure", "escalat"}, agentName: "Process & How-To Assistant"},
	{keywords: []string{"manager", "team lead", "contractor", "approval"}, agentName: "Manager & Team Lead"},
	{keywords: []string{"learn", "documentation", "learning path", "overview"}, agentName: "Knowledge & Learning"},
}

type TriageService interface {
	// Triage picks a chat agent for message by keyword rules, falling back
	// to the first chat agent. The verifier agent is never chosen.
	Triage(ctx context.Context, message string) (*TriageResult, error)
}

type triageService struct {
	log          *logger.Logger
	upstream     Upstream
	verifierName string
}

func NewTriageService(baseLog *logger.Logger, upstream Upstream, verifierName string) TriageService {
	if strings.TrimSpace(verifierName) == "" {
		verifierName = DefaultVerifierAgentName
	}
	return &triageService{
		log:          baseLog.With("service", "TriageService"),
		upstream:     upstream,
		verifierName: verifierName,
	}
}

func (s *triageService) Triage(ctx context.Context, message string) (*TriageResult, error) {
	if s.upstream == nil || !s.upstream.Configured() {
		return nil, apierr.NotConfigured("upstream not configured")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apierr.InvalidRequest("message is required")
	}

	agents, err := s.upstream.ListAgents(ctx)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("list agents: %w", err))
	}
	chatAgents := make([]orchestrate.Agent, 0, len(agents))
	for _, a := range agents {
		if a.Name != s.verifierName {
			chatAgents = append(chatAgents, a)
		}
	}
	if len(chatAgents) == 0 {
		return nil, apierr.NotConfigured("No agent available")
	}

	lower := strings.ToLower(message)
	for _, rule := range triageRules {
		if !containsAny(lower, rule.keywords) {
			continue
		}
		for _, a := range chatAgents {
			if a.Name == rule.agentName {
				s.log.Debug("message triaged", "agent_id", a.AgentID, "rule", rule.agentName, "high_risk", rule.highRisk)
				return &TriageResult{AgentID: a.AgentID, AgentName: a.Name, IsHighRisk: rule.highRisk}, nil
			}
		}
	}

	first := chatAgents[0]
	s.log.Debug("message triaged to default agent", "agent_id", first.AgentID)
	return &TriageResult{AgentID: first.AgentID, AgentName: first.Name}, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
