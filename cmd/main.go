package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hueai/medassist-backend/internal/assistant"
	"github.com/hueai/medassist-backend/internal/clients/redis"
	"github.com/hueai/medassist-backend/internal/db"
	"github.com/hueai/medassist-backend/internal/handlers"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/middleware"
	"github.com/hueai/medassist-backend/internal/observability"
	"github.com/hueai/medassist-backend/internal/platform/openrouter"
	"github.com/hueai/medassist-backend/internal/platform/tavily"
	"github.com/hueai/medassist-backend/internal/repos"
	"github.com/hueai/medassist-backend/internal/server"
	"github.com/hueai/medassist-backend/internal/services"
	"github.com/hueai/medassist-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownTracing := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "medassist",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "", log),
	})
	if shutdownTracing != nil {
		defer shutdownTracing(context.Background())
	}

	// Database
	dbService, err := db.New(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err = dbService.AutoMigrateAll(); err != nil {
		log.Warn("Auto migration failed", "error", err)
	}
	gdb := dbService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	sessionRepo := repos.NewSessionRepo(gdb, log)
	messageRepo := repos.NewMessageRepo(gdb, log)
	drugVerificationRepo := repos.NewDrugVerificationRepo(gdb, log)

	// Platform clients
	log.Info("Setting up platform clients from main...")
	modelClient, err := openrouter.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenRouter client", "error", err)
		os.Exit(1)
	}
	searchClient, err := tavily.NewClient(log)
	if err != nil {
		log.Error("Could not init Tavily client", "error", err)
		os.Exit(1)
	}
	redisClient, err := redis.NewClient(log)
	if err != nil {
		log.Warn("Redis init failed, drug-authenticity cache disabled", "error", err)
		redisClient = nil
	}

	// Services
	log.Info("Setting up Services from main...")
	sessionService := services.NewSessionService(gdb, sessionRepo, messageRepo, log)
	toolExecutor := services.NewToolExecutor(searchClient, log)
	visionService := services.NewVisionService(modelClient, log)
	classifier, err := assistant.NewClassifierFromEnv()
	if err != nil {
		log.Warn("Risk keyword overrides rejected, using defaults", "error", err)
		classifier = assistant.NewClassifier()
	}
	chatService := services.NewChatService(modelClient, toolExecutor, visionService, sessionService, classifier, log)
	authenticityService := services.NewAuthenticityService(redisClient, searchClient, drugVerificationRepo, log)

	// Handlers
	log.Info("Setting up handlers from main...")
	chatHandler := handlers.NewChatHandler(log, chatService)
	sessionHandler := handlers.NewSessionHandler(log, sessionService)
	drugHandler := handlers.NewDrugHandler(log, authenticityService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware, err := middleware.NewAuthMiddleware(log)
	if err != nil {
		log.Error("Could not init auth middleware", "error", err)
		os.Exit(1)
	}

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ServiceName:    "medassist",
		AuthMiddleware: authMiddleware,
		ChatHandler:    chatHandler,
		SessionHandler: sessionHandler,
		DrugHandler:    drugHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
