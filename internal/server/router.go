package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/hueai/medassist-backend/internal/handlers"
	"github.com/hueai/medassist-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName    string
	AuthMiddleware *middleware.AuthMiddleware
	ChatHandler    *handlers.ChatHandler
	SessionHandler *handlers.SessionHandler
	DrugHandler    *handlers.DrugHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "medassist"
	}
	router.Use(otelgin.Middleware(serviceName))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	// Assistant
	api.POST("/assistant/chat", cfg.ChatHandler.Chat)
	api.POST("/assistant/chat/stream", cfg.ChatHandler.ChatStream)
	// Sessions
	api.GET("/assistant/sessions/patient/:patient_id", cfg.SessionHandler.ListSessions)
	api.GET("/assistant/sessions/:session_id/history", cfg.SessionHandler.GetSession)
	api.POST("/assistant/sessions/:session_id/close", cfg.SessionHandler.CloseSession)
	api.DELETE("/assistant/sessions/:session_id", cfg.SessionHandler.DeleteSession)
	// Drug authenticity
	api.POST("/drug-authenticity/verify", cfg.DrugHandler.Verify)

	return router
}
