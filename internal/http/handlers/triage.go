package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/agentdesk-backend/internal/http/response"
	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
	"github.com/yungbote/agentdesk-backend/internal/services"
)

type TriageHandler struct {
	triage services.TriageService
}

func NewTriageHandler(triage services.TriageService) *TriageHandler {
	return &TriageHandler{triage: triage}
}

type triageReq struct {
	Message string `json:"message"`
}

// POST /api/triage
func (h *TriageHandler) Triage(c *gin.Context) {
	var req triageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.InvalidRequest("Invalid JSON"))
		return
	}
	out, err := h.triage.Triage(c.Request.Context(), req.Message)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}
