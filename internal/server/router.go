package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/devdex/devdex-backend/internal/handlers"
	"github.com/devdex/devdex-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	ProjectHandler *handlers.ProjectHandler
	FileHandler    *handlers.FileHandler
	JobHandler     *handlers.JobHandler
	OracleHandler  *handlers.OracleHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("devdex-backend"))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/auth/login", cfg.AuthHandler.Login)
		api.GET("/projects", cfg.ProjectHandler.List)
		api.GET("/projects/:id", cfg.ProjectHandler.Get)
		api.GET("/projects/:id/files", cfg.FileHandler.List)
		api.GET("/jobs/:id", cfg.JobHandler.Get)
		api.GET("/jobs/:id/events", cfg.JobHandler.Events)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAdmin())
	// Projects
	protected.POST("/projects", cfg.ProjectHandler.Create)
	protected.PUT("/projects/:id", cfg.ProjectHandler.Save)
	// Files
	protected.POST("/projects/:id/files", cfg.FileHandler.Upload)
	// Analysis jobs
	protected.POST("/projects/:id/analyze", cfg.JobHandler.Analyze)
	protected.POST("/jobs/:id/retry", cfg.JobHandler.Retry)
	// Oracle chat
	protected.POST("/projects/:id/oracle", cfg.OracleHandler.CreateSession)
	protected.POST("/oracle/:sessionId/messages", cfg.OracleHandler.SendMessage)
	protected.GET("/oracle/:sessionId/messages", cfg.OracleHandler.History)
	protected.DELETE("/oracle/:sessionId", cfg.OracleHandler.EndSession)

	return router
}
