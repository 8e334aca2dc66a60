package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// Messages sent for errors that wrap foreign text (database, upstream
// bodies). The detail is attached to the gin context for the request log.
const (
	internalMessage = "Internal server error"
	upstreamMessage = "Agent service request failed"
)

// RespondAPIError writes err using its *apierr.Error status and code; any
// other error becomes a 500.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.As(err)
	if ae == nil {
		ae = apierr.Internal(nil)
	}
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	msgErr := ae.Err
	switch {
	case ae.Code == apierr.CodeUpstream:
		msgErr = errors.New(upstreamMessage)
	case status >= http.StatusInternalServerError && ae.Code != apierr.CodeNotConfigured:
		msgErr = errors.New(internalMessage)
	}
	if msgErr != ae.Err && ae.Err != nil {
		_ = c.Error(ae.Err)
	}
	RespondError(c, status, ae.Code, msgErr)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
