package orchestrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/agentdesk-backend/internal/observability"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

// Credential is a bearer token and its absolute expiry.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FreshAt reports whether c remains usable for at least margin after now.
func (c Credential) FreshAt(now time.Time, margin time.Duration) bool {
	return c.Token != "" && now.Add(margin).Before(c.ExpiresAt)
}

// TokenStore shares credentials across replicas.
type TokenStore interface {
	Load(ctx context.Context) (Credential, bool, error)
	Save(ctx context.Context, cred Credential) error
}

type tokenFlow string

const (
	flowSaaS tokenFlow = "saas"
	flowIAM  tokenFlow = "iam"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenCache hands out the current upstream credential, refreshing it when
// fewer than RefreshMargin remain. Concurrent refreshes collapse into one
// fetch.
type TokenCache struct {
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger
	store      TokenStore
	now        func() time.Time

	mu    sync.RWMutex
	cur   Credential
	group singleflight.Group
}

func NewTokenCache(cfg Config, httpClient *http.Client, log *logger.Logger, store TokenStore) *TokenCache {
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &TokenCache{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log.With("service", "TokenCache"),
		store:      store,
		now:        time.Now,
	}
}

// Credential returns a credential with more than the refresh margin left.
func (t *TokenCache) Credential(ctx context.Context) (Credential, error) {
	if cur, ok := t.cached(); ok {
		return cur, nil
	}
	v, err, _ := t.group.Do("credential", func() (interface{}, error) {
		if cur, ok := t.cached(); ok {
			return cur, nil
		}
		// The fetch outlives a single caller's cancellation since other
		// callers may be waiting on it.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.Timeout)
		defer cancel()

		if t.store != nil {
			stored, ok, err := t.store.Load(fctx)
			if err != nil {
				t.log.Warn("token store load failed", "error", err)
			} else if ok && stored.FreshAt(t.now(), t.cfg.RefreshMargin) {
				t.set(stored)
				return stored, nil
			}
		}

		cred, err := t.fetch(fctx)
		if err != nil {
			return Credential{}, err
		}
		t.set(cred)
		if t.store != nil {
			if err := t.store.Save(fctx, cred); err != nil {
				t.log.Warn("token store save failed", "error", err)
			}
		}
		return cred, nil
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

func (t *TokenCache) cached() (Credential, bool) {
	t.mu.RLock()
	cur := t.cur
	t.mu.RUnlock()
	return cur, cur.FreshAt(t.now(), t.cfg.RefreshMargin)
}

func (t *TokenCache) set(c Credential) {
	t.mu.Lock()
	t.cur = c
	t.mu.Unlock()
}

func (t *TokenCache) selectFlow() (tokenFlow, error) {
	switch {
	case strings.Contains(t.cfg.BaseURL, saasHostMarker) && t.cfg.SaaSAPIKey != "":
		return flowSaaS, nil
	case t.cfg.CloudAPIKey != "":
		return flowIAM, nil
	case t.cfg.SaaSAPIKey != "":
		return flowSaaS, nil
	default:
		return "", ErrNotConfigured
	}
}

func (t *TokenCache) fetch(ctx context.Context) (Credential, error) {
	flow, err := t.selectFlow()
	if err != nil {
		return Credential{}, err
	}

	var req *http.Request
	switch flow {
	case flowSaaS:
		body, _ := json.Marshal(map[string]string{"apikey": t.cfg.SaaSAPIKey})
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.SaaSTokenURL, bytes.NewReader(body))
		if err != nil {
			return Credential{}, err
		}
		req.Header.Set("Content-Type", "application/json")
	case flowIAM:
		form := url.Values{}
		form.Set("grant_type", iamGrantType)
		form.Set("apikey", t.cfg.CloudAPIKey)
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.IAMTokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return Credential{}, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	issuedAt := t.now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		observability.Current().IncTokenRefresh(string(flow), "error")
		return Credential{}, fmt.Errorf("token request (%s): %w", flow, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.Current().IncTokenRefresh(string(flow), "rejected")
		return Credential{}, &HTTPError{Endpoint: "token/" + string(flow), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		observability.Current().IncTokenRefresh(string(flow), "error")
		return Credential{}, fmt.Errorf("token decode (%s): %w", flow, err)
	}
	token := tr.AccessToken
	if token == "" && flow == flowSaaS {
		token = tr.Token
	}
	if token == "" {
		observability.Current().IncTokenRefresh(string(flow), "error")
		return Credential{}, fmt.Errorf("token response (%s) carried no token", flow)
	}
	ttl := defaultTokenTTL
	if tr.ExpiresIn > 0 {
		ttl = time.Duration(tr.ExpiresIn) * time.Second
	}

	observability.Current().IncTokenRefresh(string(flow), "ok")
	t.log.Debug("upstream credential refreshed", "flow", flow, "ttl_seconds", int64(ttl.Seconds()))
	return Credential{Token: token, ExpiresAt: issuedAt.Add(ttl)}, nil
}
