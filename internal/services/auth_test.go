package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/agentdesk-backend/internal/data/repos/testutil"
	"github.com/yungbote/agentdesk-backend/internal/platform/ctxutil"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	svc, err := NewAuthService(testutil.Logger(t), "secret")
	require.NoError(t, err)

	tok, err := svc.SignAccessToken("user-42", time.Minute)
	require.NoError(t, err)

	ctx, err := svc.SetContextFromToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", ctxutil.UserID(ctx))
	assert.Equal(t, tok, ctxutil.GetRequestData(ctx).TokenString)
}

func TestAuthServiceRejects(t *testing.T) {
	svc, err := NewAuthService(testutil.Logger(t), "secret")
	require.NoError(t, err)
	other, err := NewAuthService(testutil.Logger(t), "other-secret")
	require.NoError(t, err)

	foreign, err := other.SignAccessToken("user-42", time.Minute)
	require.NoError(t, err)

	expired := svc.(*authService)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.SignAccessToken("user-42", time.Minute)
	require.NoError(t, err)
	expired.now = time.Now

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "u",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":      "",
		"garbage":    "not.a.jwt",
		"foreign":    foreign,
		"expired":    stale,
		"no_expiry":  noExp,
		"no_subject": noSub,
		"wrong_alg":  wrongAlg,
	} {
		t.Run(name, func(t *testing.T) {
			ctx, err := svc.SetContextFromToken(context.Background(), tok)
			require.ErrorIs(t, err, ErrInvalidToken)
			assert.Empty(t, ctxutil.UserID(ctx))
		})
	}
}

func TestNewAuthServiceRequiresSecret(t *testing.T) {
	_, err := NewAuthService(testutil.Logger(t), " ")
	require.Error(t, err)
}
