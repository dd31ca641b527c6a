package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fundraiser/pkg/errors"
	"github.com/charlesng35/fundraiser/pkg/metrics"
	"github.com/charlesng35/fundraiser/pkg/response"
)

// GrantPermission is the claim type carrying permission grants.
const GrantPermission = "permission"

// RequirePermission checks that the access token of the caller carries the permission grant.
// It must run after Auth.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.HasGrant(GrantPermission, permission) {
			metrics.PermissionChecks.WithLabelValues(permission, "denied").Inc()
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		metrics.PermissionChecks.WithLabelValues(permission, "allowed").Inc()
		c.Next()
	}
}
