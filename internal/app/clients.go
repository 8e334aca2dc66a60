package app

import (
	"fmt"

	"github.com/yungbote/agentdesk-backend/internal/clients/orchestrate"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

type Clients struct {
	TokenStore  *orchestrate.RedisTokenStore
	Orchestrate *orchestrate.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis (optional shared credential store)
	var store *orchestrate.RedisTokenStore
	if cfg.Redis.Addr != "" {
		s, err := orchestrate.NewRedisTokenStore(log, cfg.Redis.Addr, cfg.Redis.TokenKey)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis token store: %w", err)
		}
		store = s
	}

	// Orchestrate
	var ts orchestrate.TokenStore
	if store != nil {
		ts = store
	}
	client := orchestrate.New(cfg.Orchestrate, log, ts)
	if !client.Configured() {
		log.Warn("orchestrate upstream not configured; chat and agent endpoints will report it")
	}

	return Clients{
		TokenStore:  store,
		Orchestrate: client,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.TokenStore != nil {
		_ = c.TokenStore.Close()
	}
}
