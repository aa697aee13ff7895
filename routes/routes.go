package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pricewatch_backend/controllers"
	"pricewatch_backend/middleware"
	"pricewatch_backend/services"
	"pricewatch_backend/services/alerting"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, engine *alerting.Engine) {
	// Initialize controllers
	alertController := controllers.NewAlertController(db)
	engineController := controllers.NewEngineController(engine)
	authController := controllers.NewAuthController(db)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// User auth routes (issue the tokens the alert routes require)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authController.Register)
			auth.POST("/login", middleware.LoginRateLimitMiddleware(), authController.Login)
		}

		// Alert routes (authenticated users)
		alerts := api.Group("/alerts")
		alerts.Use(middleware.JWTAuthMiddleware())
		{
			alerts.GET("", alertController.GetAlerts)
			alerts.POST("", alertController.CreateAlert)
			alerts.GET("/:id", alertController.GetAlert)
			alerts.POST("/:id/deactivate", alertController.DeactivateAlert)
			alerts.POST("/:id/reactivate", alertController.ReactivateAlert)
			alerts.DELETE("/:id", alertController.DeleteAlert)
		}

		// Admin routes
		admin := api.Group("/admin")
		{
			admin.POST("/login", middleware.LoginRateLimitMiddleware(), authController.AdminLogin)

			protected := admin.Group("")
			protected.Use(middleware.AdminAuthMiddleware())
			{
				protected.GET("/engine/status", engineController.GetStatus)
				protected.POST("/engine/run", engineController.RunNow)
				protected.GET("/triggers", engineController.GetRecentTriggers)
			}
		}
	}

	// WebSocket stream of fired alerts
	router.GET("/ws/triggers", func(c *gin.Context) {
		if services.GlobalEventStream == nil {
			c.JSON(503, gin.H{"error": "Event stream not available"})
			return
		}
		services.GlobalEventStream.HandleWebSocket(c.Writer, c.Request)
	})
}
