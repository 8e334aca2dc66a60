package app

import (
	"database/sql"

	httpserver "github.com/yungbote/agentdesk-backend/internal/http"
	httpH "github.com/yungbote/agentdesk-backend/internal/http/handlers"
	httpMW "github.com/yungbote/agentdesk-backend/internal/http/middleware"
	"github.com/yungbote/agentdesk-backend/internal/observability"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health *httpH.HealthHandler
	Chat   *httpH.ChatHandler
	Agent  *httpH.AgentHandler
	Triage *httpH.TriageHandler
}

func wireHandlers(log *logger.Logger, services Services, sqlDB *sql.DB) Handlers {
	log.Info("Wiring handlers...")
	var pinger httpH.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	return Handlers{
		Health: httpH.NewHealthHandler(pinger),
		Chat:   httpH.NewChatHandler(log, services.ChatStream, services.ChatThreads),
		Agent:  httpH.NewAgentHandler(services.Agents),
		Triage: httpH.NewTriageHandler(services.Triage),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *httpserver.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return httpserver.NewServer(httpserver.RouterConfig{
		Log:            log,
		ServiceName:    serviceName,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        metrics,
		AuthMiddleware: middleware.Auth,
		HealthHandler:  handlers.Health,
		ChatHandler:    handlers.Chat,
		AgentHandler:   handlers.Agent,
		TriageHandler:  handlers.Triage,
	})
}
