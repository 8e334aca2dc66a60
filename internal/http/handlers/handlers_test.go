package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/agentdesk-backend/internal/agui"
	"github.com/yungbote/agentdesk-backend/internal/clients/orchestrate"
	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
	"github.com/yungbote/agentdesk-backend/internal/platform/ctxutil"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
	"github.com/yungbote/agentdesk-backend/internal/services"
)

type fakeStreamService struct {
	beginErr error
	gotUser  string
	gotBody  string
	frames   []any
}

func (f *fakeStreamService) Begin(_ context.Context, userID string, body []byte) (*services.ChatTurn, error) {
	f.gotUser = userID
	f.gotBody = string(body)
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &services.ChatTurn{UserID: userID}, nil
}

func (f *fakeStreamService) Run(_ context.Context, _ *services.ChatTurn, sink agui.Sink) error {
	for _, fr := range f.frames {
		if err := sink.Send(fr); err != nil {
			return err
		}
	}
	return sink.Done()
}

type fakeThreadService struct {
	threads []services.ThreadSummary
	deleted []string
}

func (f *fakeThreadService) ListThreads(_ context.Context, userID, agentID string) ([]services.ThreadSummary, error) {
	out := []services.ThreadSummary{}
	for _, t := range f.threads {
		if agentID == "" || t.AgentID == agentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeThreadService) GetThread(_ context.Context, _ string, threadID string) (*services.ThreadView, []services.MessageView, error) {
	if threadID != "t1" {
		return nil, nil, apierr.NotFound("Thread not found")
	}
	return &services.ThreadView{ID: "t1", AgentID: "a1"}, []services.MessageView{{ID: "m1", Role: "user", Content: "hi"}}, nil
}

func (f *fakeThreadService) DeleteThread(_ context.Context, _ string, threadID string) error {
	if threadID != "t1" {
		return apierr.NotFound("Thread not found")
	}
	f.deleted = append(f.deleted, threadID)
	return nil
}

type fakeAgentService struct {
	configured bool
	linkErr    error
	deleted    []string
	deletedDoc []string
}

func (f *fakeAgentService) Configured() bool { return f.configured }

func (f *fakeAgentService) ListAgents(context.Context) ([]orchestrate.Agent, error) {
	return []orchestrate.Agent{{AgentID: "a1", Name: "Support"}}, nil
}

func (f *fakeAgentService) GetAgent(_ context.Context, id string) (*orchestrate.AgentDetail, error) {
	if id != "a1" {
		return nil, apierr.NotFound("Agent not found")
	}
	return &orchestrate.AgentDetail{Agent: orchestrate.Agent{AgentID: "a1"}, KnowledgeBase: []string{"kb1"}}, nil
}

func (f *fakeAgentService) KnowledgeBases(context.Context, string) (*services.AgentKnowledgeBases, error) {
	return &services.AgentKnowledgeBases{
		KnowledgeBases:   []orchestrate.KnowledgeBase{{ID: "kb1", Name: "Handbook"}},
		KnowledgeBaseIDs: []string{"kb1"},
	}, nil
}

func (f *fakeAgentService) UpdateKnowledgeBase(_ context.Context, agentID, action, kbID string) (*orchestrate.AgentDetail, error) {
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	return &orchestrate.AgentDetail{Agent: orchestrate.Agent{AgentID: agentID}, KnowledgeBase: []string{"kb1", kbID}}, nil
}

func (f *fakeAgentService) GetKnowledgeBase(_ context.Context, kbID string) (*orchestrate.KnowledgeBase, error) {
	return &orchestrate.KnowledgeBase{ID: kbID, Name: "Handbook"}, nil
}

func (f *fakeAgentService) KnowledgeBaseStatus(_ context.Context, kbID string) (*orchestrate.KnowledgeBaseStatus, error) {
	return &orchestrate.KnowledgeBaseStatus{ID: kbID, Ready: true}, nil
}

func (f *fakeAgentService) ListAllKnowledgeBases(context.Context) ([]orchestrate.KnowledgeBase, error) {
	return []orchestrate.KnowledgeBase{{ID: "kb1", Name: "Handbook"}, {ID: "kb2", Name: "Runbooks"}}, nil
}

func (f *fakeAgentService) DeleteKnowledgeBase(_ context.Context, kbID string) error {
	if kbID != "kb1" {
		return apierr.NotFound("Knowledge base not found")
	}
	f.deleted = append(f.deleted, kbID)
	return nil
}

func (f *fakeAgentService) DeleteKnowledgeBaseDocuments(_ context.Context, kbID string, names []string) error {
	if len(names) == 0 {
		return apierr.InvalidRequest("Document names are required")
	}
	f.deletedDoc = append(f.deletedDoc, names...)
	return nil
}

type fakeTriageService struct {
	got string
	err error
}

func (f *fakeTriageService) Triage(_ context.Context, message string) (*services.TriageResult, error) {
	f.got = message
	if f.err != nil {
		return nil, f.err
	}
	return &services.TriageResult{AgentID: "sec", AgentName: "Security & Compliance", IsHighRisk: true}, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.NewNop()
}

func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: userID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newTestRouter(t *testing.T, stream services.ChatStreamService, threads services.ChatThreadService, agents services.AgentService) *gin.Engine {
	t.Helper()
	return newTestRouterWithTriage(t, stream, threads, agents, &fakeTriageService{})
}

func newTestRouterWithTriage(t *testing.T, stream services.ChatStreamService, threads services.ChatThreadService, agents services.AgentService, triage services.TriageService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chat := NewChatHandler(testLogger(t), stream, threads)
	ah := NewAgentHandler(agents)
	th := NewTriageHandler(triage)
	api := r.Group("/api", asUser("u1"))
	api.POST("/chat", chat.Stream)
	api.GET("/chat/threads", chat.ListThreads)
	api.GET("/chat/threads/:threadId/messages", chat.GetThreadMessages)
	api.DELETE("/chat/threads/:threadId", chat.DeleteThread)
	api.GET("/agents", ah.ListAgents)
	api.GET("/agents/:agentId", ah.GetAgent)
	api.GET("/agents/:agentId/knowledge-bases", ah.ListKnowledgeBases)
	api.PATCH("/agents/:agentId/knowledge-bases", ah.UpdateKnowledgeBases)
	api.GET("/knowledge-bases", ah.ListAllKnowledgeBases)
	api.GET("/knowledge-bases/:kbId", ah.GetKnowledgeBase)
	api.DELETE("/knowledge-bases/:kbId", ah.DeleteKnowledgeBase)
	api.GET("/knowledge-bases/:kbId/status", ah.KnowledgeBaseStatus)
	api.DELETE("/knowledge-bases/:kbId/documents", ah.DeleteKnowledgeBaseDocuments)
	api.POST("/triage", th.Triage)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestChatStreamWritesFrames(t *testing.T) {
	stream := &fakeStreamService{frames: []any{
		map[string]string{"type": "RUN_STARTED"},
		map[string]string{"type": "RUN_FINISHED"},
	}}
	r := newTestRouter(t, stream, &fakeThreadService{}, &fakeAgentService{configured: true})

	rec := do(r, http.MethodPost, "/api/chat", `{"agentId":"a1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "u1", stream.gotUser)
	assert.Equal(t, `{"agentId":"a1"}`, stream.gotBody)
	assert.Equal(t,
		"data: {\"type\":\"RUN_STARTED\"}\n\ndata: {\"type\":\"RUN_FINISHED\"}\n\ndata: [DONE]\n\n",
		rec.Body.String())
}

func TestChatStreamBeginErrorsAreJSON(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid", apierr.InvalidRequest("Missing agentId"), http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"not_configured", apierr.NotConfigured("upstream not configured"), http.StatusServiceUnavailable, apierr.CodeNotConfigured},
		{"upstream", apierr.UpstreamOpen(errors.New("boom")), http.StatusBadGateway, apierr.CodeUpstream},
		{"plain", errors.New("unexpected"), http.StatusInternalServerError, apierr.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(t, &fakeStreamService{beginErr: tc.err}, &fakeThreadService{}, &fakeAgentService{})
			rec := do(r, http.MethodPost, "/api/chat", `{}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			body := decode(t, rec)
			errObj, ok := body["error"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tc.code, errObj["code"])
		})
	}
}

func TestThreadRoutes(t *testing.T) {
	threads := &fakeThreadService{threads: []services.ThreadSummary{
		{ID: "t1", AgentID: "a1"},
		{ID: "t2", AgentID: "a2"},
	}}
	r := newTestRouter(t, &fakeStreamService{}, threads, &fakeAgentService{})

	rec := do(r, http.MethodGet, "/api/chat/threads?agentId=a2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["threads"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "t2", list[0].(map[string]any)["id"])

	rec = do(r, http.MethodGet, "/api/chat/threads/t1/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "t1", body["thread"].(map[string]any)["id"])
	assert.Len(t, body["messages"], 1)

	rec = do(r, http.MethodGet, "/api/chat/threads/zzz/messages", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodDelete, "/api/chat/threads/t1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"t1"}, threads.deleted)

	rec = do(r, http.MethodDelete, "/api/chat/threads/zzz", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentRoutesWhenNotConfigured(t *testing.T) {
	r := newTestRouter(t, &fakeStreamService{}, &fakeThreadService{}, &fakeAgentService{configured: false})

	rec := do(r, http.MethodGet, "/api/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "upstream not configured", body["error"])
	assert.Empty(t, body["agents"])

	rec = do(r, http.MethodGet, "/api/agents/a1/knowledge-bases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "upstream not configured", body["error"])
	assert.Empty(t, body["knowledgeBases"])

	rec = do(r, http.MethodGet, "/api/knowledge-bases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "upstream not configured", body["error"])
	assert.Equal(t, []any{}, body["knowledgeBases"])
}

func TestAgentRoutes(t *testing.T) {
	agents := &fakeAgentService{configured: true}
	r := newTestRouter(t, &fakeStreamService{}, &fakeThreadService{}, agents)

	rec := do(r, http.MethodGet, "/api/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["agents"], 1)

	rec = do(r, http.MethodGet, "/api/agents/a1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a1", decode(t, rec)["agent_id"])

	rec = do(r, http.MethodGet, "/api/agents/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodGet, "/api/agents/a1/knowledge-bases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, []any{"kb1"}, body["knowledgeBaseIds"])

	rec = do(r, http.MethodPatch, "/api/agents/a1/knowledge-bases", `{"action":"link","knowledgeBaseId":"kb2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, []any{"kb1", "kb2"}, body["knowledgeBaseIds"])
	assert.Equal(t, "a1", body["agent"].(map[string]any)["agent_id"])

	rec = do(r, http.MethodPatch, "/api/agents/a1/knowledge-bases", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	agents.linkErr = apierr.InvalidRequest("Knowledge base already linked")
	rec = do(r, http.MethodPatch, "/api/agents/a1/knowledge-bases", `{"action":"link","knowledgeBaseId":"kb1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Knowledge base already linked", decode(t, rec)["error"].(map[string]any)["message"])

	rec = do(r, http.MethodGet, "/api/knowledge-bases/kb1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Handbook", decode(t, rec)["knowledgeBase"].(map[string]any)["name"])

	rec = do(r, http.MethodGet, "/api/knowledge-bases/kb1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ready"])
}

func TestKnowledgeBaseListAndDeleteRoutes(t *testing.T) {
	agents := &fakeAgentService{configured: true}
	r := newTestRouter(t, &fakeStreamService{}, &fakeThreadService{}, agents)

	rec := do(r, http.MethodGet, "/api/knowledge-bases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Nil(t, body["error"])
	assert.Len(t, body["knowledgeBases"], 2)

	rec = do(r, http.MethodDelete, "/api/knowledge-bases/kb1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.Equal(t, []string{"kb1"}, agents.deleted)

	rec = do(r, http.MethodDelete, "/api/knowledge-bases/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodDelete, "/api/knowledge-bases/kb1/documents", `{"documents":["a.pdf","b.pdf"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, agents.deletedDoc)

	cases := []struct {
		name string
		body string
	}{
		{"not_json", `nope`},
		{"empty_list", `{"documents":[]}`},
		{"wrong_type", `{"documents":"a.pdf"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(r, http.MethodDelete, "/api/knowledge-bases/kb1/documents", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestTriageRoute(t *testing.T) {
	triage := &fakeTriageService{}
	r := newTestRouterWithTriage(t, &fakeStreamService{}, &fakeThreadService{}, &fakeAgentService{configured: true}, triage)

	rec := do(r, http.MethodPost, "/api/triage", `{"message":"who can grant production access?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "sec", body["agentId"])
	assert.Equal(t, "Security & Compliance", body["agentName"])
	assert.Equal(t, true, body["isHighRisk"])
	assert.Equal(t, "who can grant production access?", triage.got)

	rec = do(r, http.MethodPost, "/api/triage", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON", decode(t, rec)["error"].(map[string]any)["message"])

	for name, tc := range map[string]struct {
		err    error
		status int
	}{
		"blank":          {apierr.InvalidRequest("message is required"), http.StatusBadRequest},
		"no_agent":       {apierr.NotConfigured("No agent available"), http.StatusServiceUnavailable},
		"upstream_fails": {apierr.Internal(errors.New("list agents: dial tcp: refused")), http.StatusInternalServerError},
	} {
		t.Run(name, func(t *testing.T) {
			r := newTestRouterWithTriage(t, &fakeStreamService{}, &fakeThreadService{}, &fakeAgentService{}, &fakeTriageService{err: tc.err})
			rec := do(r, http.MethodPost, "/api/triage", `{"message":"hi"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "dial tcp")
		})
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealthHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for name, tc := range map[string]struct {
		db     Pinger
		status int
	}{
		"no_db": {nil, http.StatusOK},
		"up":    {fakePinger{}, http.StatusOK},
		"down":  {fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable},
	} {
		t.Run(name, func(t *testing.T) {
			h := NewHealthHandler(tc.db)
			r := gin.New()
			r.GET("/healthcheck", h.HealthCheck)
			r.GET("/readyz", h.Ready)
			assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthcheck", "").Code)
			assert.Equal(t, tc.status, do(r, http.MethodGet, "/readyz", "").Code)
		})
	}
}
