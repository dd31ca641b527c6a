package handlers_test

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/fundraiser/internal/handlers/testutil"
)

func TestSessionHandler_Lifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("erin", "ErinPassword1")
	env.CreateUser("frank", "FrankPassword1")

	first := env.Login("erin", "ErinPassword1")
	second := env.Login("erin", "ErinPassword1")
	intruder := env.Login("frank", "FrankPassword1")

	list := env.Request(http.MethodGet, "/api/sessions?active=true", nil, first.AccessToken)
	require.Equal(t, http.StatusOK, list.Code, list.Body.String())
	listPayload := testutil.DecodeResponse(t, list)
	require.NotNil(t, listPayload.Meta)
	require.Equal(t, 2, listPayload.Meta.Total)

	heartbeat := env.Request(http.MethodPost, "/api/sessions/heartbeat", nil, first.AccessToken)
	require.Equal(t, http.StatusNoContent, heartbeat.Code)

	foreign := env.Request(http.MethodPost, "/api/sessions/logout", map[string]string{"session_id": second.SessionID}, intruder.AccessToken)
	require.Equal(t, http.StatusNotFound, foreign.Code)

	end := env.Request(http.MethodPost, "/api/sessions/logout", map[string]string{"session_id": second.SessionID}, first.AccessToken)
	require.Equal(t, http.StatusOK, end.Code, end.Body.String())

	active := env.Request(http.MethodGet, "/api/sessions/active", nil, first.AccessToken)
	require.Equal(t, http.StatusOK, active.Code)
	var sessions []struct {
		ID        string  `json:"id"`
		IPAddress *string `json:"ip_address"`
		UserAgent string  `json:"user_agent"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, active).Data, &sessions)
	require.Len(t, sessions, 1)
	require.Equal(t, first.SessionID, sessions[0].ID)
	require.NotNil(t, sessions[0].IPAddress)
	require.Equal(t, "fundraiser-tests/1.0", sessions[0].UserAgent)

	all := env.Request(http.MethodPost, "/api/sessions/logout-all", nil, first.AccessToken)
	require.Equal(t, http.StatusOK, all.Code)

	history := env.Request(http.MethodGet, "/api/sessions/history?per_page=1", nil, first.AccessToken)
	require.Equal(t, http.StatusOK, history.Code)
	historyPayload := testutil.DecodeResponse(t, history)
	require.Equal(t, 2, historyPayload.Meta.Total)
	require.Equal(t, 2, historyPayload.Meta.TotalPages)
	require.Equal(t, 1, historyPayload.Meta.PerPage)

	inactive := env.Request(http.MethodGet, "/api/sessions?active=true", nil, first.AccessToken)
	require.Zero(t, testutil.DecodeResponse(t, inactive).Meta.Total)
}

func TestCampaignHandler_CRUDAndOwnership(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("grace", "GracePassword1")
	env.CreateUser("heidi", "HeidiPassword1")
	env.CreateUser("ivan", "IvanPassword1", "admin")

	owner := env.Login("grace", "GracePassword1").AccessToken
	other := env.Login("heidi", "HeidiPassword1").AccessToken
	admin := env.Login("ivan", "IvanPassword1").AccessToken

	invalid := env.Request(http.MethodPost, "/api/campaigns", map[string]any{"title": "Bad", "goal_amount": 0, "currency": "EURO"}, owner)
	require.Equal(t, http.StatusBadRequest, invalid.Code)

	created := env.Request(http.MethodPost, "/api/campaigns", map[string]any{
		"title":       "Clean water",
		"description": "Wells for the valley",
		"goal_amount": 500000,
		"currency":    "eur",
	}, owner)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var campaign struct {
		ID       string `json:"id"`
		OwnerID  string `json:"owner_id"`
		Currency string `json:"currency"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, created).Data, &campaign)
	require.NotEmpty(t, campaign.ID)
	require.Equal(t, "EUR", campaign.Currency)

	dup := env.Request(http.MethodPost, "/api/campaigns", map[string]any{"title": "Clean water", "goal_amount": 10, "currency": "EUR"}, other)
	require.Equal(t, http.StatusConflict, dup.Code)
	require.Equal(t, "Campaign.Conflict", testutil.DecodeResponse(t, dup).Error.Code)

	list := env.Request(http.MethodGet, "/api/campaigns?search=water", nil, other)
	require.Equal(t, http.StatusOK, list.Code)
	require.Equal(t, 1, testutil.DecodeResponse(t, list).Meta.Total)

	path := "/api/campaigns/" + campaign.ID

	forbidden := env.Request(http.MethodPatch, path, map[string]any{"goal_amount": 1}, other)
	require.Equal(t, http.StatusForbidden, forbidden.Code)

	managed := env.Request(http.MethodPatch, path, map[string]any{"is_published": true}, admin)
	require.Equal(t, http.StatusOK, managed.Code, managed.Body.String())

	published := env.Request(http.MethodGet, "/api/campaigns?published=true", nil, other)
	require.Equal(t, 1, testutil.DecodeResponse(t, published).Meta.Total)

	require.Equal(t, http.StatusForbidden, env.Request(http.MethodDelete, path, nil, other).Code)
	require.Equal(t, http.StatusNoContent, env.Request(http.MethodDelete, path, nil, owner).Code)

	gone := env.Request(http.MethodGet, path, nil, owner)
	require.Equal(t, http.StatusNotFound, gone.Code)
	require.Equal(t, "Campaign.NotFound", testutil.DecodeResponse(t, gone).Error.Code)
}

func TestAuditHandler_ReadAccess(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("judy", "JudyPassword1")
	env.CreateUser("ken", "KenPassword1", "admin")

	user := env.Login("judy", "JudyPassword1").AccessToken
	admin := env.Login("ken", "KenPassword1").AccessToken

	created := env.Request(http.MethodPost, "/api/campaigns", map[string]any{"title": "School books", "goal_amount": 1000, "currency": "USD"}, user)
	require.Equal(t, http.StatusCreated, created.Code)

	denied := env.Request(http.MethodGet, "/api/audit", nil, user)
	require.Equal(t, http.StatusForbidden, denied.Code)

	q := url.Values{"username": {"JUDY"}, "action": {"create"}, "search": {"Campaign"}}
	list := env.Request(http.MethodGet, "/api/audit?"+q.Encode(), nil, admin)
	require.Equal(t, http.StatusOK, list.Code, list.Body.String())
	payload := testutil.DecodeResponse(t, list)
	require.Equal(t, 1, payload.Meta.Total)

	var rows []struct {
		ID         string `json:"id"`
		EntityName string `json:"entity_name"`
		Summary    string `json:"summary"`
	}
	testutil.DecodeInto(t, payload.Data, &rows)
	require.Len(t, rows, 1)
	require.Equal(t, "Campaign", rows[0].EntityName)
	require.Equal(t, "judy created Campaign", rows[0].Summary)

	detail := env.Request(http.MethodGet, "/api/audit/"+rows[0].ID, nil, admin)
	require.Equal(t, http.StatusOK, detail.Code)
	var entry struct {
		NewValues map[string]any `json:"new_values"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, detail).Data, &entry)
	require.Equal(t, "School books", entry.NewValues["Title"])

	missing := env.Request(http.MethodGet, "/api/audit/does-not-exist", nil, admin)
	require.Equal(t, http.StatusNotFound, missing.Code)

	badTime := env.Request(http.MethodGet, "/api/audit?from=yesterday", nil, admin)
	require.Equal(t, http.StatusBadRequest, badTime.Code)
}

func TestHealthMetricsAndNotFound(t *testing.T) {
	env := testutil.NewEnv(t)

	health := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, health.Code)
	require.True(t, testutil.DecodeResponse(t, health).Success)

	metrics := env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), "fundraiser_")

	missing := env.Request(http.MethodGet, fmt.Sprintf("/api/%s", "nowhere"), nil, "")
	require.Equal(t, http.StatusNotFound, missing.Code)
	require.Equal(t, "Route.NotFound", testutil.DecodeResponse(t, missing).Error.Code)
}

func TestHealthProbes(t *testing.T) {
	env := testutil.NewEnv(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		w := env.Request(http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code, path)
	}

	ready := env.Request(http.MethodGet, "/health/ready", nil, "")
	require.Contains(t, ready.Body.String(), `"component":"database"`)
}
