package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agentdesk-backend/internal/http/response"
	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
	"github.com/yungbote/agentdesk-backend/internal/services"
)

type AgentHandler struct {
	agents services.AgentService
}

func NewAgentHandler(agents services.AgentService) *AgentHandler {
	return &AgentHandler{agents: agents}
}

type updateKnowledgeBaseReq struct {
	Action          string `json:"action"`
	KnowledgeBaseID string `json:"knowledgeBaseId"`
}

// GET /api/agents
func (h *AgentHandler) ListAgents(c *gin.Context) {
	if !h.agents.Configured() {
		response.RespondOK(c, gin.H{"error": "upstream not configured", "agents": []any{}})
		return
	}
	agents, err := h.agents.ListAgents(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"agents": agents})
}

// GET /api/agents/:agentId
func (h *AgentHandler) GetAgent(c *gin.Context) {
	agent, err := h.agents.GetAgent(c.Request.Context(), c.Param("agentId"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, agent)
}

// GET /api/agents/:agentId/knowledge-bases
func (h *AgentHandler) ListKnowledgeBases(c *gin.Context) {
	if !h.agents.Configured() {
		response.RespondOK(c, gin.H{"error": "upstream not configured", "knowledgeBases": []any{}})
		return
	}
	out, err := h.agents.KnowledgeBases(c.Request.Context(), c.Param("agentId"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// PATCH /api/agents/:agentId/knowledge-bases
func (h *AgentHandler) UpdateKnowledgeBases(c *gin.Context) {
	var req updateKnowledgeBaseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	agent, err := h.agents.UpdateKnowledgeBase(c.Request.Context(), c.Param("agentId"), req.Action, req.KnowledgeBaseID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"agent": agent, "knowledgeBaseIds": agent.KnowledgeBase})
}

// GET /api/knowledge-bases/:kbId
func (h *AgentHandler) GetKnowledgeBase(c *gin.Context) {
	kb, err := h.agents.GetKnowledgeBase(c.Request.Context(), c.Param("kbId"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"knowledgeBase": kb})
}

// GET /api/knowledge-bases/:kbId/status
func (h *AgentHandler) KnowledgeBaseStatus(c *gin.Context) {
	st, err := h.agents.KnowledgeBaseStatus(c.Request.Context(), c.Param("kbId"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, st)
}

type deleteDocumentsReq struct {
	Documents []string `json:"documents"`
}

// GET /api/knowledge-bases
func (h *AgentHandler) ListAllKnowledgeBases(c *gin.Context) {
	if !h.agents.Configured() {
		response.RespondOK(c, gin.H{"error": "upstream not configured", "knowledgeBases": []any{}})
		return
	}
	kbs, err := h.agents.ListAllKnowledgeBases(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"knowledgeBases": kbs})
}

// DELETE /api/knowledge-bases/:kbId
func (h *AgentHandler) DeleteKnowledgeBase(c *gin.Context) {
	if err := h.agents.DeleteKnowledgeBase(c.Request.Context(), c.Param("kbId")); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true})
}

// DELETE /api/knowledge-bases/:kbId/documents
func (h *AgentHandler) DeleteKnowledgeBaseDocuments(c *gin.Context) {
	var req deleteDocumentsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	if err := h.agents.DeleteKnowledgeBaseDocuments(c.Request.Context(), c.Param("kbId"), req.Documents); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true})
}
