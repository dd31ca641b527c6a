package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fundraiser/internal/handlers"
	"github.com/charlesng35/fundraiser/internal/middleware"
)

// PermissionReadAudit guards the audit trail.
const PermissionReadAudit = "audit.read"

func registerAuditRoutes(api *gin.RouterGroup, handler *handlers.AuditHandler) {
	audit := api.Group("/audit")
	audit.Use(middleware.RequirePermission(PermissionReadAudit))
	{
		audit.GET("", handler.List)
		audit.GET("/:id", handler.Get)
	}
}
