package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/fundraiser/internal/auth"
	"github.com/charlesng35/fundraiser/internal/auth/providers"
	"github.com/charlesng35/fundraiser/internal/middleware"
	"github.com/charlesng35/fundraiser/internal/models"
	"github.com/charlesng35/fundraiser/pkg/errors"
	"github.com/charlesng35/fundraiser/pkg/response"
)

// AuthHandler manages authentication flows (login/refresh/register/logout/me).
type AuthHandler struct {
	auth  *iauth.Authenticator
	users *providers.LocalProvider
}

func NewAuthHandler(auth *iauth.Authenticator, users *providers.LocalProvider) *AuthHandler {
	return &AuthHandler{auth: auth, users: users}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.Login(requestContext(c), callerContext(c), iauth.LoginRequest{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

type refreshRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/auth/refresh
//
// The access token may be expired. It is read from the body or, when absent, from the
// Authorization header.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	accessToken := strings.TrimSpace(req.AccessToken)
	if accessToken == "" {
		accessToken, _ = middleware.BearerToken(c)
	}
	if accessToken == "" {
		response.Error(c, errors.NewBadRequest("access token is required"))
		return
	}

	result, err := h.auth.RefreshToken(requestContext(c), callerContext(c), accessToken, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

type registerRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"max=256"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(requestContext(c), callerContext(c), providers.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, userPayload(user, nil))
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if actor.SessionID == "" {
		response.Error(c, errors.NewBadRequest("access token is not bound to a session"))
		return
	}

	result, err := h.auth.Logout(requestContext(c), callerContext(c), actor.SessionID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	user, err := h.users.FindByID(requestContext(c), actor.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	if user == nil {
		response.Error(c, iauth.ErrUserNotFound)
		return
	}

	claims, _ := middleware.ClaimsFrom(c)
	response.Success(c, http.StatusOK, userPayload(user, claims))
}

type profileRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,max=256"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

// PATCH /api/auth/me
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req profileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(requestContext(c), callerContext(c), actor.UserID, providers.ProfileInput{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, userPayload(user, nil))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// POST /api/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.users.ChangePassword(requestContext(c), callerContext(c), actor.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"changed": true})
}

func userPayload(user *models.User, claims *iauth.Claims) gin.H {
	payload := gin.H{
		"id":              user.ID,
		"username":        user.Username,
		"email":           user.Email,
		"full_name":       user.FullName,
		"email_confirmed": user.EmailConfirmed,
		"is_active":       user.IsActive,
	}
	if claims != nil {
		roles := claims.Roles
		if roles == nil {
			roles = []string{}
		}
		payload["roles"] = roles
		payload["permissions"] = claims.Grants[middleware.GrantPermission]
	}
	return payload
}
