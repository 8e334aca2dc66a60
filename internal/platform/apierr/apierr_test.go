package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryStatusAndCode(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
		code   string
	}{
		{Unauthorized("no"), http.StatusUnauthorized, CodeUnauthorized},
		{InvalidRequest("bad"), http.StatusBadRequest, CodeInvalidRequest},
		{NotFound("gone"), http.StatusNotFound, CodeNotFound},
		{NotConfigured("off"), http.StatusServiceUnavailable, CodeNotConfigured},
		{UpstreamOpen(errors.New("502")), http.StatusBadGateway, CodeUpstream},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.Status)
		assert.Equal(t, tc.code, tc.err.Code)
	}
}

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("begin turn: %w", NotFound("thread not found"))
	ae := As(wrapped)
	require.NotNil(t, ae)
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, "thread not found", ae.Error())
}

func TestAsDefaultsToInternal(t *testing.T) {
	plain := errors.New("boom")
	ae := As(plain)
	require.NotNil(t, ae)
	assert.Equal(t, http.StatusInternalServerError, ae.Status)
	assert.ErrorIs(t, ae, plain)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(plain))
	assert.Nil(t, As(nil))
}
