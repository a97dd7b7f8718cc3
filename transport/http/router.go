package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/whispernet/warden/core"
	"github.com/whispernet/warden/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	handlers := NewAuthHandlers(authService, log)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes. The gated groups exist to exercise the 401/403
	// contract: missing or bad token gets 401 before any check runs, a valid
	// token with insufficient entitlement gets 403.
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)

		vip := api.Group("/vip")
		vip.Use(Authorize(service.RequireEntitlement(core.EntitlementVIP)))
		{
			vip.GET("/backstage", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"area": "backstage"})
			})
		}

		premium := api.Group("/premium")
		premium.Use(Authorize(service.RequireEntitlement(core.EntitlementPremium)))
		{
			premium.GET("/gossip", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"area": "gossip"})
			})
		}

		mod := api.Group("/moderation")
		mod.Use(Authorize(
			service.RequireRole("moderator", "admin"),
			service.RequirePermission("reports:read"),
		))
		{
			mod.GET("/reports", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"reports": []string{}})
			})
		}
	}

	return router
}
