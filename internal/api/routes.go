package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"craftResume/internal/api/middleware"
	"craftResume/internal/audit"
	"craftResume/internal/auth"
	"craftResume/internal/config"
	"craftResume/internal/enhance"
	"craftResume/internal/llm"
	"craftResume/internal/notify"
	"craftResume/internal/ratelimit"
	"craftResume/internal/storage"
	"craftResume/internal/upload"
	"craftResume/internal/vault"
)

// Deps bundles everything route registration needs.
type Deps struct {
	DB          *gorm.DB
	AuthService *auth.AuthService
	Vault       *vault.Vault
	Storage     *storage.Client
	Redis       redis.UniversalClient
	Limiter     *ratelimit.Limiter
	Logger      *slog.Logger
	Config      *config.Config
}

// RegisterRoutes wires all API routes onto the engine.
func RegisterRoutes(router *gin.Engine, deps Deps) {
	recorder := audit.NewRecorder(deps.DB, deps.Logger)
	llmClient := llm.NewClient(deps.Config.LLM.Timeout)
	notifier := notify.NewPublisher(deps.Redis)
	enhanceService := enhance.NewService(deps.DB, deps.Vault, llmClient, recorder, notifier)
	pipeline := upload.NewPipeline(deps.DB, deps.Storage, deps.Config.Upload.MaxBytes, deps.Config.Upload.ClamdAddr)

	authHandler := NewAuthHandler(deps.DB, deps.AuthService, deps.Limiter, recorder, deps.Config.Signup)
	resumeHandler := NewResumeHandler(deps.DB, pipeline, recorder)
	enhanceHandler := NewEnhanceHandler(enhanceService)
	fileHandler := NewFileHandler(deps.DB, deps.Storage)
	credentialHandler := NewCredentialHandler(deps.DB, deps.Vault, recorder)
	wsHandler := NewWsHandler(deps.Redis, deps.AuthService, deps.Logger, nil)

	authMiddleware := middleware.AuthMiddleware(deps.AuthService)

	router.GET("/ws", wsHandler.HandleConnection)

	router.POST("/signup", authHandler.Signup)
	router.POST("/login", authHandler.Login)

	authed := router.Group("/")
	authed.Use(authMiddleware)
	{
		authed.GET("/resumes", resumeHandler.List)
		authed.POST("/resumes/upload", resumeHandler.Upload)

		authed.POST("/enhance-resume/:id", enhanceHandler.Enhance)
		authed.GET("/download-resume/:id", fileHandler.DownloadEnhancement)
		authed.GET("/resume-file/:id", fileHandler.FileURL)
		authed.GET("/proxy-pdf/:id", fileHandler.Proxy)

		authed.POST("/credentials", credentialHandler.Save)
		authed.GET("/credentials", credentialHandler.List)
		authed.DELETE("/credentials/:id", credentialHandler.Delete)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, middleware.RequireAdmin())
	{
		admin.GET("/resumes", resumeHandler.AdminList)
	}
}
