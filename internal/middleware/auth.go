package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/fundraiser/internal/auth"
	"github.com/charlesng35/fundraiser/internal/reqctx"
	"github.com/charlesng35/fundraiser/pkg/errors"
	"github.com/charlesng35/fundraiser/pkg/logger"
	"github.com/charlesng35/fundraiser/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
)

// SessionChecker reports whether the session named by an access token is still open.
type SessionChecker interface {
	IsSessionActive(ctx context.Context, userID, sessionID string) (bool, error)
}

// AuthOption customises Auth.
type AuthOption func(*authOptions)

type authOptions struct {
	sessions SessionChecker
}

// RequireActiveSession rejects tokens whose session has been closed by logout, logout-all
// or the idle sweep. Tokens without a session id are not checked.
func RequireActiveSession(checker SessionChecker) AuthOption {
	return func(o *authOptions) {
		o.sessions = checker
	}
}

// Auth enforces JWT authentication using the supplied JWT service and records the caller
// as the request actor. Without RequireActiveSession an access token stays valid until it
// expires, even after its session was closed.
func Auth(jwt *iauth.JWTService, opts ...AuthOption) gin.HandlerFunc {
	var options authOptions
	for _, opt := range opts {
		opt(&options)
	}

	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if options.sessions != nil && claims.SessionID != "" {
			active, err := options.sessions.IsSessionActive(c.Request.Context(), claims.UserID, claims.SessionID)
			if err != nil {
				logger.WithModule("http").Error("session check failed", zap.String("session_id", claims.SessionID), zap.Error(err))
				response.Error(c, errors.ErrInternalServer)
				c.Abort()
				return
			}
			if !active {
				c.Header("WWW-Authenticate", "Bearer")
				response.Error(c, errors.ErrUnauthorized)
				c.Abort()
				return
			}
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		if claims.SessionID != "" {
			c.Set(CtxSessionIDKey, claims.SessionID)
		}
		reqctx.SetActor(c, reqctx.Actor{
			UserID:    claims.UserID,
			Username:  claims.Username,
			FullName:  claims.FullName,
			SessionID: claims.SessionID,
		})

		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authz[7:])
	return token, token != ""
}

// ClaimsFrom returns the validated claims stored by Auth.
func ClaimsFrom(c *gin.Context) (*iauth.Claims, bool) {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*iauth.Claims)
	return claims, ok && claims != nil
}
