package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
)

func TestRespondAPIError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"not_found", apierr.NotFound("Thread not found"), http.StatusNotFound, apierr.CodeNotFound, "Thread not found"},
		{"wrapped", errors.Join(errors.New("ctx"), apierr.NotConfigured("upstream not configured")), http.StatusServiceUnavailable, apierr.CodeNotConfigured, "upstream not configured"},
		{"plain", errors.New("db down"), http.StatusInternalServerError, apierr.CodeInternal, internalMessage},
		{"internal_wrapped", apierr.Internal(errors.New(`pq: relation "chat_thread" does not exist`)), http.StatusInternalServerError, apierr.CodeInternal, internalMessage},
		{"upstream_body", apierr.UpstreamOpen(errors.New("orchestrate runs: status 500: stack trace at worker-7")), http.StatusBadGateway, apierr.CodeUpstream, upstreamMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			RespondAPIError(c, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			var env ErrorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tc.code, env.Error.Code)
			assert.Equal(t, tc.msg, env.Error.Message)
		})
	}
}

func TestRespondAPIErrorKeepsDetailForLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondAPIError(c, apierr.Internal(errors.New("list threads: connection reset by peer")))

	assert.NotContains(t, rec.Body.String(), "connection reset")
	require.Len(t, c.Errors, 1)
	assert.Contains(t, c.Errors.String(), "connection reset by peer")

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	RespondAPIError(c, apierr.NotFound("Thread not found"))
	assert.Empty(t, c.Errors)
}
