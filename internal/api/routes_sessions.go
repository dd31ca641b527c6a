package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fundraiser/internal/handlers"
)

func registerSessionRoutes(api *gin.RouterGroup, handler *handlers.SessionHandler) {
	sessions := api.Group("/sessions")
	{
		sessions.GET("", handler.List)
		sessions.GET("/active", handler.Active)
		sessions.GET("/history", handler.History)
		sessions.POST("/heartbeat", handler.Heartbeat)
		sessions.POST("/logout", handler.End)
		sessions.POST("/logout-all", handler.EndAll)
	}
}
