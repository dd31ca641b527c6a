package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fundraiser/internal/handlers"
	"github.com/charlesng35/fundraiser/internal/middleware"
)

// PermissionCreateCampaign allows opening new campaigns.
const PermissionCreateCampaign = "campaign.create"

func registerCampaignRoutes(api *gin.RouterGroup, handler *handlers.CampaignHandler) {
	campaigns := api.Group("/campaigns")
	{
		campaigns.GET("", handler.List)
		campaigns.GET("/:id", handler.Get)
		campaigns.POST("", middleware.RequirePermission(PermissionCreateCampaign), handler.Create)
		campaigns.PATCH("/:id", handler.Update)
		campaigns.DELETE("/:id", handler.Delete)
	}
}
