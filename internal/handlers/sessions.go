package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/fundraiser/internal/auth"
	"github.com/charlesng35/fundraiser/pkg/response"
)

// SessionHandler exposes the caller's own login sessions.
type SessionHandler struct {
	sessions *iauth.SessionService
}

func NewSessionHandler(sessions *iauth.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// GET /api/sessions
//
// Optional ?active=true|false filters on the session state.
func (h *SessionHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	query := iauth.SessionQuery{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 50),
	}
	switch c.Query("active") {
	case "true":
		active := true
		query.ActiveOnly = &active
	case "false":
		active := false
		query.ActiveOnly = &active
	}

	page, err := h.sessions.GetSessions(requestContext(c), actor.UserID, query)
	if err != nil {
		fail(c, err)
		return
	}
	response.Paged(c, page)
}

// GET /api/sessions/active
func (h *SessionHandler) Active(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.GetActiveSessions(requestContext(c), actor.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, sessions)
}

// GET /api/sessions/history
func (h *SessionHandler) History(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	page, err := h.sessions.GetSessionHistory(requestContext(c), actor.UserID, parseIntQuery(c, "page", 1), parseIntQuery(c, "per_page", 50))
	if err != nil {
		fail(c, err)
		return
	}
	response.Paged(c, page)
}

// POST /api/sessions/heartbeat
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	h.sessions.UpdateLastActivity(requestContext(c), actor.UserID)
	c.Status(http.StatusNoContent)
}

type endSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// POST /api/sessions/logout
func (h *SessionHandler) End(c *gin.Context) {
	if _, ok := currentActor(c); !ok {
		return
	}
	var req endSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	at, err := h.sessions.EndSession(requestContext(c), callerContext(c), req.SessionID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, iauth.LogoutResult{LogoutAt: at})
}

// POST /api/sessions/logout-all
func (h *SessionHandler) EndAll(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	h.sessions.LogoutAllSessions(requestContext(c), actor.UserID)
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
