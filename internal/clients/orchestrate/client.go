package orchestrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/agentdesk-backend/internal/observability"
	"github.com/yungbote/agentdesk-backend/internal/platform/httpx"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

const maxErrorBody = 1 << 20

// Client talks to the agent orchestration service.
type Client struct {
	cfg          Config
	log          *logger.Logger
	tokens       *TokenCache
	httpClient   *http.Client
	streamClient *http.Client
}

// New builds a client with its own transport. store may be nil.
func New(cfg Config, log *logger.Logger, store TokenStore) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
	}
	cfg = cfg.withDefaults()
	return newClient(cfg, log, store,
		&http.Client{Transport: transport, Timeout: cfg.Timeout},
		// Streams are bounded by the request context, not a client timeout.
		&http.Client{Transport: transport},
	)
}

// NewWithHTTPClient uses hc for every call. Used by tests.
func NewWithHTTPClient(cfg Config, log *logger.Logger, store TokenStore, hc *http.Client) *Client {
	return newClient(cfg.withDefaults(), log, store, hc, hc)
}

func newClient(cfg Config, log *logger.Logger, store TokenStore, hc, stream *http.Client) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		cfg:          cfg,
		log:          log.With("service", "OrchestrateClient"),
		tokens:       NewTokenCache(cfg, hc, log, store),
		httpClient:   hc,
		streamClient: stream,
	}
}

func (c *Client) Configured() bool { return c != nil && c.cfg.Configured() }

// Tokens exposes the credential cache.
func (c *Client) Tokens() *TokenCache { return c.tokens }

func (c *Client) setHeaders(ctx context.Context, req *http.Request) error {
	cred, err := c.tokens.Credential(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Accept", "application/json")
	if c.cfg.SaaSAPIKey != "" {
		req.Header.Set("IAM-API_KEY", c.cfg.SaaSAPIKey)
	}
	return nil
}

// send performs one request and returns the response for 2xx statuses. On
// any other status the body is drained into an *HTTPError.
func (c *Client) send(ctx context.Context, hc *http.Client, endpoint, method, path string, body any) (*http.Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	ctx, span := observability.Tracer().Start(ctx, "orchestrate."+endpoint)
	defer span.End()

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if err := c.setHeaders(ctx, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credential")
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		observability.Current().ObserveUpstreamRequest(endpoint, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, fmt.Errorf("orchestrate %s: %w", endpoint, err)
	}
	observability.Current().ObserveUpstreamRequest(endpoint, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, &HTTPError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			RetryAfter: httpx.RetryAfter(resp.Header, 0, maxRetryWait),
		}
	}
	return resp, nil
}

// sendWithRetry retries GETs on retryable failures. Other methods get one
// attempt.
func (c *Client) sendWithRetry(ctx context.Context, endpoint, method, path string, body any) (*http.Response, error) {
	attempts := 1
	if method == http.MethodGet {
		attempts += c.cfg.Retries
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := httpx.Backoff(attempt-1, c.cfg.RetryBackoff, maxRetryWait)
			var he *HTTPError
			if errors.As(lastErr, &he) && he.RetryAfter > wait {
				wait = he.RetryAfter
			}
			c.log.Debug("retrying upstream request", "endpoint", endpoint, "attempt", attempt, "wait", wait, "error", lastErr)
			if err := httpx.Sleep(ctx, wait); err != nil {
				return nil, lastErr
			}
		}
		resp, err := c.send(ctx, c.httpClient, endpoint, method, path, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) {
			break
		}
	}
	return nil, lastErr
}

// doJSON decodes a 2xx body into out (skipped when out is nil). It reports
// whether the body was non-empty.
func (c *Client) doJSON(ctx context.Context, endpoint, method, path string, body, out any) (bool, error) {
	resp, err := c.sendWithRetry(ctx, endpoint, method, path, body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("orchestrate %s: read body: %w", endpoint, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 || out == nil {
		return len(bytes.TrimSpace(raw)) > 0, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("orchestrate %s: decode: %w", endpoint, err)
	}
	return true, nil
}

// StartRun opens a streamed run. Errors before the first byte (credential,
// transport, non-2xx) are returned here; the stream itself reports later
// failures as *StreamError.
func (c *Client) StartRun(ctx context.Context, r RunRequest) (ChunkStream, error) {
	q := url.Values{}
	q.Set("stream", "true")
	q.Set("stream_timeout", strconv.FormatInt(c.cfg.StreamTimeout.Milliseconds(), 10))
	q.Set("multiple_content", "true")

	body := runBody{
		Message:  runMessage{Role: "user", Content: r.Content},
		AgentID:  r.AgentID,
		ThreadID: r.ThreadID,
	}
	c.log.Debug("opening run stream", "agent_id", r.AgentID, "upstream_thread_id", r.ThreadID)
	resp, err := c.send(ctx, c.streamClient, "runs", http.MethodPost, "/v1/orchestrate/runs?"+q.Encode(), body)
	if err != nil {
		return nil, err
	}
	var opts []LineReaderOption
	if c.cfg.FlushTrailingLine {
		opts = append(opts, WithTrailingFlush())
	}
	return newRunStream(resp.Body, NewNormalizer(c.log), opts...), nil
}

// ListAgents accepts either a bare array or {"agents": [...]}.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var raw json.RawMessage
	if _, err := c.doJSON(ctx, "agents.list", http.MethodGet, "/v1/orchestrate/agents", nil, &raw); err != nil {
		return nil, err
	}
	var list []agentAPI
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Agents []agentAPI `json:"agents"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("orchestrate agents.list: decode: %w", err)
		}
		list = wrapped.Agents
	}
	out := make([]Agent, 0, len(list))
	for _, a := range list {
		out = append(out, a.summary())
	}
	return out, nil
}

// FindAgentByName returns the first agent whose display name matches, or nil.
func (c *Client) FindAgentByName(ctx context.Context, name string) (*Agent, error) {
	agents, err := c.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	for i := range agents {
		if agents[i].Name == name {
			return &agents[i], nil
		}
	}
	return nil, nil
}

// GetAgent returns nil, nil when the agent does not exist.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*AgentDetail, error) {
	var a agentAPI
	_, err := c.doJSON(ctx, "agents.get", http.MethodGet, "/v1/orchestrate/agents/"+url.PathEscape(agentID), nil, &a)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a.detail(), nil
}

// UpdateAgentKnowledgeBases replaces the agent's linked knowledge bases. An
// empty PATCH response triggers a re-fetch.
func (c *Client) UpdateAgentKnowledgeBases(ctx context.Context, agentID string, kbIDs []string) (*AgentDetail, error) {
	if kbIDs == nil {
		kbIDs = []string{}
	}
	var a agentAPI
	hasBody, err := c.doJSON(ctx, "agents.update", http.MethodPatch, "/v1/orchestrate/agents/"+url.PathEscape(agentID),
		map[string]any{"knowledge_base": kbIDs}, &a)
	if err != nil {
		return nil, err
	}
	if hasBody && a.ID != "" {
		return a.detail(), nil
	}
	full, err := c.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if full == nil {
		return nil, fmt.Errorf("agent %s updated but could not be re-fetched", agentID)
	}
	return full, nil
}

// GetKnowledgeBase returns nil, nil on 404.
func (c *Client) GetKnowledgeBase(ctx context.Context, kbID string) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	_, err := c.doJSON(ctx, "knowledge_bases.get", http.MethodGet, "/v1/orchestrate/knowledge-bases/"+url.PathEscape(kbID), nil, &kb)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

// GetKnowledgeBaseStatus returns nil, nil on 404.
func (c *Client) GetKnowledgeBaseStatus(ctx context.Context, kbID string) (*KnowledgeBaseStatus, error) {
	var st KnowledgeBaseStatus
	_, err := c.doJSON(ctx, "knowledge_bases.status", http.MethodGet, "/v1/orchestrate/knowledge-bases/"+url.PathEscape(kbID)+"/status", nil, &st)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetKnowledgeBaseWithDocuments merges the document list and index status
// from the status endpoint into the knowledge base.
func (c *Client) GetKnowledgeBaseWithDocuments(ctx context.Context, kbID string) (*KnowledgeBase, error) {
	kb, err := c.GetKnowledgeBase(ctx, kbID)
	if err != nil || kb == nil {
		return kb, err
	}
	st, err := c.GetKnowledgeBaseStatus(ctx, kbID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return kb, nil
	}
	if st.Documents != nil {
		kb.Documents = st.Documents
	}
	if kb.Documents == nil {
		kb.Documents = []KnowledgeBaseDocument{}
	}
	if kb.VectorIndex == nil && st.BuiltInIndexStatus != "" {
		kb.VectorIndex = &VectorIndex{Status: st.BuiltInIndexStatus, StatusMsg: st.BuiltInIndexStatusMsg}
	}
	return kb, nil
}

// ListKnowledgeBases accepts either a bare array or {"knowledge_bases": [...]}.
func (c *Client) ListKnowledgeBases(ctx context.Context) ([]KnowledgeBase, error) {
	var raw json.RawMessage
	if _, err := c.doJSON(ctx, "knowledge_bases.list", http.MethodGet, "/v1/orchestrate/knowledge-bases", nil, &raw); err != nil {
		return nil, err
	}
	out := []KnowledgeBase{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var wrapped struct {
			KnowledgeBases []KnowledgeBase `json:"knowledge_bases"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("orchestrate knowledge_bases.list: decode: %w", err)
		}
		out = wrapped.KnowledgeBases
	}
	if out == nil {
		out = []KnowledgeBase{}
	}
	return out, nil
}

func (c *Client) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	c.log.Info("deleting knowledge base", "kb_id", kbID)
	_, err := c.doJSON(ctx, "knowledge_bases.delete", http.MethodDelete, "/v1/orchestrate/knowledge-bases/"+url.PathEscape(kbID), nil, nil)
	return err
}

// DeleteKnowledgeBaseDocuments removes documents by name.
func (c *Client) DeleteKnowledgeBaseDocuments(ctx context.Context, kbID string, names []string) error {
	c.log.Info("deleting knowledge base documents", "kb_id", kbID, "count", len(names))
	_, err := c.doJSON(ctx, "knowledge_bases.delete_documents", http.MethodDelete,
		"/v1/orchestrate/knowledge-bases/"+url.PathEscape(kbID)+"/documents",
		map[string][]string{"documents": names}, nil)
	return err
}
