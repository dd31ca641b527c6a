package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/fundraiser/internal/auth"
	"github.com/charlesng35/fundraiser/pkg/response"
)

func newTestJWT(t *testing.T) *iauth.JWTService {
	t.Helper()
	svc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "middleware-test-secret",
		Issuer:         "fundraiser",
		Audience:       "fundraiser-api",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)
	return svc
}

func issueToken(t *testing.T, svc *iauth.JWTService, grants ...iauth.Grant) string {
	t.Helper()
	token, err := svc.IssueAccessToken(iauth.Subject{
		UserID:     "user-1",
		Username:   "alice",
		FullName:   "Alice Example",
		SessionID:  "session-1",
		RoleGrants: grants,
	})
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func init() {
	gin.SetMode(gin.TestMode)
}
