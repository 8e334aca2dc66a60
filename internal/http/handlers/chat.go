package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agentdesk-backend/internal/agui"
	"github.com/yungbote/agentdesk-backend/internal/http/response"
	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
	"github.com/yungbote/agentdesk-backend/internal/platform/ctxutil"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
	"github.com/yungbote/agentdesk-backend/internal/services"
)

const maxChatBody = 1 << 20

type ChatHandler struct {
	log     *logger.Logger
	stream  services.ChatStreamService
	threads services.ChatThreadService
}

func NewChatHandler(log *logger.Logger, stream services.ChatStreamService, threads services.ChatThreadService) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), stream: stream, threads: threads}
}

// POST /api/chat
func (h *ChatHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChatBody))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	turn, err := h.stream.Begin(ctx, ctxutil.UserID(ctx), body)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	w, err := agui.NewWriter(c.Writer)
	if err != nil {
		turn.Close()
		response.RespondAPIError(c, apierr.Internal(err))
		return
	}
	if err := h.stream.Run(ctx, turn, w); err != nil && !errors.Is(err, services.ErrClientGone) {
		_ = c.Error(err)
	}
}

// GET /api/chat/threads?agentId=
func (h *ChatHandler) ListThreads(c *gin.Context) {
	ctx := c.Request.Context()
	threads, err := h.threads.ListThreads(ctx, ctxutil.UserID(ctx), c.Query("agentId"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"threads": threads})
}

// GET /api/chat/threads/:threadId/messages
func (h *ChatHandler) GetThreadMessages(c *gin.Context) {
	ctx := c.Request.Context()
	thread, msgs, err := h.threads.GetThread(ctx, ctxutil.UserID(ctx), c.Param("threadId"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"thread": thread, "messages": msgs})
}

// DELETE /api/chat/threads/:threadId
func (h *ChatHandler) DeleteThread(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.threads.DeleteThread(ctx, ctxutil.UserID(ctx), c.Param("threadId")); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
