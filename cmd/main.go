package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/devdex/devdex-backend/internal/db"
	"github.com/devdex/devdex-backend/internal/handlers"
	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/middleware"
	"github.com/devdex/devdex-backend/internal/observability"
	"github.com/devdex/devdex-backend/internal/repos"
	"github.com/devdex/devdex-backend/internal/server"
	"github.com/devdex/devdex-backend/internal/services"
	"github.com/devdex/devdex-backend/internal/sse"
	"github.com/devdex/devdex-backend/internal/utils"
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
	if shutdown := observability.Init(context.Background(), log, observability.Config{
		ServiceName: "devdex-backend",
		Environment: os.Getenv("APP_ENV"),
	}); shutdown != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	adminPasswordHash := utils.GetEnv("ADMIN_PASSWORD_HASH", "", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	geminiModel := utils.GetEnv("GEMINI_MODEL", "gemini-2.5-flash", log)
	oracleMaxInputChars := utils.GetEnvAsInt("ORACLE_MAX_INPUT_CHARS", 600000, log)
	port := utils.GetEnv("PORT", "8080", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	projectRepo := repos.NewProjectRepo(thePG, log)
	projectFileRepo := repos.NewProjectFileRepo(thePG, log)
	aiJobRepo := repos.NewAIJobRepo(thePG, log)

	// SSE hub
	hub := sse.NewHub(log)

	// Services
	log.Info("Setting up Services from main...")
	bucketService, err := services.NewBucketServiceFromEnv(log)
	if err != nil {
		log.Fatal("Bucket service init failed", "error", err)
	}
	geminiClient, err := services.NewGeminiClient(log)
	if err != nil {
		log.Fatal("Gemini client init failed", "error", err)
	}
	analysisService := services.NewAnalysisService(log, geminiClient)
	projectService := services.NewProjectService(thePG, log, projectRepo)
	fileService := services.NewFileService(thePG, log, bucketService, projectRepo, projectFileRepo)
	jobService := services.NewJobService(log, aiJobRepo, fileService, analysisService, projectService, hub, geminiModel)
	oracleService := services.NewOracleService(log, geminiClient, oracleMaxInputChars)
	authService, err := services.NewAuthService(log, adminPasswordHash, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
	if err != nil {
		log.Fatal("Auth service init failed", "error", err)
	}

	// Handlers
	log.Info("Setting up Handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	projectHandler := handlers.NewProjectHandler(log, projectService)
	fileHandler := handlers.NewFileHandler(log, fileService)
	jobHandler := handlers.NewJobHandler(log, jobService, fileService, hub)
	oracleHandler := handlers.NewOracleHandler(log, oracleService, fileService)
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		ProjectHandler: projectHandler,
		FileHandler:    fileHandler,
		JobHandler:     jobHandler,
		OracleHandler:  oracleHandler,
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
