package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/fundraiser/internal/api"
	"github.com/charlesng35/fundraiser/internal/app"
	"github.com/charlesng35/fundraiser/internal/audit"
	iauth "github.com/charlesng35/fundraiser/internal/auth"
	"github.com/charlesng35/fundraiser/internal/auth/providers"
	sharedtestutil "github.com/charlesng35/fundraiser/internal/database/testutil"
	"github.com/charlesng35/fundraiser/internal/models"
	"github.com/charlesng35/fundraiser/internal/reqctx"
	"github.com/charlesng35/fundraiser/internal/services"
	"github.com/charlesng35/fundraiser/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Users  *providers.LocalProvider
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret:   "test-suite-super-secret-key-32-bytes!!",
				Issuer:   "test-suite",
				Audience: "test-suite-api",
				TTL:      time.Hour,
			},
			Refresh: app.RefreshSettings{TokenDays: 7},
			Local:   app.LocalAuthSettings{AutoConfirm: true},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	interceptor, err := audit.NewInterceptor(db, nil)
	require.NoError(t, err)

	users, err := providers.NewLocalProvider(db, interceptor, cfg.Auth.LocalProviderConfig())
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)

	authenticator, err := iauth.NewAuthenticator(iauth.AuthenticatorConfig{
		Store:    users,
		Sessions: sessions,
		Tokens:   jwtSvc,
	})
	require.NoError(t, err)

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	campaigns, err := services.NewCampaignService(db, interceptor)
	require.NoError(t, err)

	router, err := api.NewRouter(cfg, api.Services{
		DB:            db,
		JWT:           jwtSvc,
		Sessions:      sessions,
		Authenticator: authenticator,
		Users:         users,
		Audit:         auditSvc,
		Campaigns:     campaigns,
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Users:  users,
	}
}

// CreateUser registers a confirmed user holding the default role plus any extra roles.
func (e *Env) CreateUser(username, password string, extraRoles ...string) *models.User {
	e.T.Helper()

	user, err := e.Users.Register(context.Background(), reqctx.RequestContext{Now: time.Now().UTC()}, providers.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
		FullName: username + " Example",
	})
	require.NoError(e.T, err)

	for _, role := range extraRoles {
		require.NoError(e.T, e.DB.Create(&models.UserRole{UserID: user.ID, RoleID: role}).Error)
	}
	return user
}

// LoginResult mirrors the payload returned from POST /api/auth/login.
type LoginResult struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SessionID    string    `json:"session_id"`
	Expiry       time.Time `json:"refresh_token_expiry"`
}

// Login authenticates using the local provider and returns the issued tokens.
func (e *Env) Login(username, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"username": username,
		"password": password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.NotEmpty(e.T, result.RefreshToken)
	require.NotEmpty(e.T, result.SessionID)

	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "fundraiser-tests/1.0")

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
