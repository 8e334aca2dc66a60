package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

const defaultTokenKey = "agentdesk:orchestrate:credential"

// RedisTokenStore keeps the upstream credential in Redis so every replica
// reuses the same token until it nears expiry.
type RedisTokenStore struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	key string
	now func() time.Time
}

// NewRedisTokenStore dials addr and verifies it with a ping.
func NewRedisTokenStore(log *logger.Logger, addr, key string) (*RedisTokenStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisTokenStoreWithClient(log, rdb, key), nil
}

func NewRedisTokenStoreWithClient(log *logger.Logger, rdb goredis.UniversalClient, key string) *RedisTokenStore {
	if strings.TrimSpace(key) == "" {
		key = defaultTokenKey
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisTokenStore{
		log: log.With("service", "RedisTokenStore"),
		rdb: rdb,
		key: key,
		now: time.Now,
	}
}

func (s *RedisTokenStore) Load(ctx context.Context) (Credential, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, err
	}
	var c Credential
	if err := json.Unmarshal(raw, &c); err != nil {
		return Credential{}, false, fmt.Errorf("decode stored credential: %w", err)
	}
	return c, c.Token != "", nil
}

func (s *RedisTokenStore) Save(ctx context.Context, cred Credential) error {
	ttl := cred.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, raw, ttl).Err()
}

func (s *RedisTokenStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
