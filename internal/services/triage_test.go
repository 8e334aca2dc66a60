package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/agentdesk-backend/internal/clients/orchestrate"
	"github.com/yungbote/agentdesk-backend/internal/data/repos/testutil"
	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
)

func TestTriageRoutesByKeyword(t *testing.T) {
	up := newFakeUpstream()
	up.agents = []orchestrate.Agent{
		{AgentID: "ver", Name: DefaultVerifierAgentName},
		{AgentID: "gen", Name: "Knowledge & Learning"},
		{AgentID: "sec", Name: "Security & Compliance"},
		{AgentID: "inc", Name: "Incident & Troubleshooting"},
		{AgentID: "it", Name: "IT Support & Access"},
		{AgentID: "proj", Name: "Project & Hosting Assistant"},
	}
	svc := NewTriageService(testutil.Logger(t), up, "")

	cases := []struct {
		name     string
		message  string
		agentID  string
		highRisk bool
	}{
		{"high_risk_rule", "Who approves PRODUCTION ACCESS requests?", "sec", true},
		{"priority_order", "security incident in prod", "sec", true},
		{"incident", "the billing service is down", "inc", false},
		{"shared_keyword_first_rule", "I can't clone the repo", "it", false},
		{"rule_agent_missing_skips", "how much PTO do I get", "gen", false},
		{"later_rule", "where is staging hosted", "proj", false},
		{"no_match_defaults_to_first_chat_agent", "hello there", "gen", false},
		{"verifier_keywords_ignored", "please verify this response", "gen", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.Triage(context.Background(), tc.message)
			require.NoError(t, err)
			assert.Equal(t, tc.agentID, got.AgentID)
			assert.Equal(t, tc.highRisk, got.IsHighRisk)
			assert.NotEqual(t, "ver", got.AgentID)
		})
	}
}

func TestTriageErrors(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(up *fakeUpstream)
		message string
		status  int
	}{
		{"not_configured", func(up *fakeUpstream) { up.configured = false }, "hi", http.StatusServiceUnavailable},
		{"blank_message", nil, "   ", http.StatusBadRequest},
		{"only_verifier", func(up *fakeUpstream) {
			up.agents = []orchestrate.Agent{{AgentID: "ver", Name: DefaultVerifierAgentName}}
		}, "hi", http.StatusServiceUnavailable},
		{"no_agents", func(up *fakeUpstream) { up.agents = nil }, "hi", http.StatusServiceUnavailable},
		{"list_fails", func(up *fakeUpstream) { up.listErr = errors.New("timeout") }, "hi", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			up := newFakeUpstream()
			up.agents = []orchestrate.Agent{{AgentID: "a1", Name: "Support"}}
			if tc.setup != nil {
				tc.setup(up)
			}
			_, err := NewTriageService(testutil.Logger(t), up, "").Triage(context.Background(), tc.message)
			require.Error(t, err)
			assert.Equal(t, tc.status, apierr.StatusOf(err))
		})
	}
}

func TestTriageCustomVerifierName(t *testing.T) {
	up := newFakeUpstream()
	up.agents = []orchestrate.Agent{{AgentID: "chk", Name: "Checker"}, {AgentID: "a1", Name: "Support"}}
	got, err := NewTriageService(testutil.Logger(t), up, "Checker").Triage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AgentID)
}
