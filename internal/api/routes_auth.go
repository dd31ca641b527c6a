package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fundraiser/internal/handlers"
)

func registerAuthRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, handler *handlers.AuthHandler) {
	auth := api.Group("/auth")
	{
		auth.POST("/login", handler.Login)
		auth.POST("/refresh", handler.Refresh)
		auth.POST("/register", handler.Register)
	}

	authed := auth.Group("")
	authed.Use(requireAuth)
	{
		authed.POST("/logout", handler.Logout)
		authed.GET("/me", handler.Me)
		authed.PATCH("/me", handler.UpdateProfile)
		authed.POST("/password", handler.ChangePassword)
	}
}
