package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/agentdesk-backend/internal/http/handlers"
	httpMW "github.com/yungbote/agentdesk-backend/internal/http/middleware"
	"github.com/yungbote/agentdesk-backend/internal/observability"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	Metrics        *observability.Metrics

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler *httpH.HealthHandler
	ChatHandler   *httpH.ChatHandler
	AgentHandler  *httpH.AgentHandler
	TriageHandler *httpH.TriageHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	protected := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Chat
		if cfg.ChatHandler != nil {
			protected.POST("/chat", cfg.ChatHandler.Stream)
			protected.GET("/chat/threads", cfg.ChatHandler.ListThreads)
			protected.GET("/chat/threads/:threadId/messages", cfg.ChatHandler.GetThreadMessages)
			protected.DELETE("/chat/threads/:threadId", cfg.ChatHandler.DeleteThread)
		}

		// Agents and knowledge bases
		if cfg.AgentHandler != nil {
			protected.GET("/agents", cfg.AgentHandler.ListAgents)
			protected.GET("/agents/:agentId", cfg.AgentHandler.GetAgent)
			protected.GET("/agents/:agentId/knowledge-bases", cfg.AgentHandler.ListKnowledgeBases)
			protected.PATCH("/agents/:agentId/knowledge-bases", cfg.AgentHandler.UpdateKnowledgeBases)
			protected.GET("/knowledge-bases", cfg.AgentHandler.ListAllKnowledgeBases)
			protected.GET("/knowledge-bases/:kbId", cfg.AgentHandler.GetKnowledgeBase)
			protected.DELETE("/knowledge-bases/:kbId", cfg.AgentHandler.DeleteKnowledgeBase)
			protected.GET("/knowledge-bases/:kbId/status", cfg.AgentHandler.KnowledgeBaseStatus)
			protected.DELETE("/knowledge-bases/:kbId/documents", cfg.AgentHandler.DeleteKnowledgeBaseDocuments)
		}

		// Triage
		if cfg.TriageHandler != nil {
			protected.POST("/triage", cfg.TriageHandler.Triage)
		}
	}

	return r
}
