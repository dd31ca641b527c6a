package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/fundraiser/internal/reqctx"
	appErrors "github.com/charlesng35/fundraiser/pkg/errors"
	"github.com/charlesng35/fundraiser/pkg/logger"
	"github.com/charlesng35/fundraiser/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// callerContext identifies the caller of the current request for stamping and auditing.
func callerContext(c *gin.Context) reqctx.RequestContext {
	return reqctx.FromGin(c, time.Now().UTC())
}

// currentActor returns the authenticated actor or writes a 401 response.
func currentActor(c *gin.Context) (reqctx.Actor, bool) {
	actor, ok := reqctx.ActorFrom(c)
	if !ok || actor.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return reqctx.Actor{}, false
	}
	return actor, true
}

// fail writes err to the client. Errors without an application code are logged first
// because the client only ever sees a generic message for them.
func fail(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Kind == appErrors.KindUnexpected {
		logger.WithModule("http").Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	response.Error(c, appErr)
}
