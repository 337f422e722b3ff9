package server

import (
	"net/http"

	"backend/internal/config"
	"backend/internal/crypto"
	"backend/internal/handler"
	"backend/internal/middleware"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/telegram"
	"backend/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

type Server struct {
	router     *gin.Engine
	db         *sqlx.DB
	cfg        *config.Config
	log        *logrus.Logger
	zlog       *zap.Logger
	keyManager *crypto.KeyManager
}

func NewServer(db *sqlx.DB, cfg *config.Config, zlog *zap.Logger, keyManager *crypto.KeyManager) *Server {
	router := gin.Default()

	s := &Server{
		router:     router,
		db:         db,
		cfg:        cfg,
		log:        logrus.New(),
		zlog:       zlog,
		keyManager: keyManager,
	}

	// Setup routes
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	// Repositories
	authRepo := repository.NewAuthRepository(s.db, s.log)
	accountRepo := repository.NewBusinessAccountRepository(s.db, s.zlog)
	chatRepo := repository.NewChatRepository(s.db, s.zlog)
	messageRepo := repository.NewMessageRepository(s.db, s.zlog)
	contactRepo := repository.NewContactRepository(s.db, s.zlog)
	settingsRepo := repository.NewSettingsRepository(s.db, s.zlog)
	txRunner := repository.NewTxRunner(s.db)

	// Services
	authService := service.NewAuthService(authRepo, s.keyManager, s.zlog)
	settingsService := service.NewSettingsService(settingsRepo, authRepo, s.keyManager, s.zlog)
	botClient := telegram.NewClient(s.cfg.Telegram.APIBaseURL, s.zlog)
	accountService := service.NewBusinessAccountService(
		accountRepo, chatRepo, messageRepo, contactRepo, txRunner, botClient, settingsService, s.zlog)
	contactService := service.NewContactService(contactRepo, s.zlog)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, s.log)
	webhookHandler := handler.NewWebhookHandler(webhook.NewNormalizer(s.zlog), accountService, s.zlog)
	accountHandler := handler.NewBusinessAccountHandler(accountService, s.zlog)
	contactHandler := handler.NewContactHandler(contactService, s.zlog)
	settingsHandler := handler.NewSettingsHandler(settingsService, s.zlog)
	uploadHandler := handler.NewUploadHandler(s.cfg.Uploads.Dir, s.zlog)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Telegram webhook. Both paths serve the same handler; the short one is
	// what older deployments registered with setWebhook.
	s.router.POST("/webhook", webhookHandler.HandleUpdate)
	s.router.POST("/api/v1/telegram/webhook", webhookHandler.HandleUpdate)

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	// Authenticated routes
	authRequired := s.router.Group("/api/v1")
	authRequired.Use(middleware.AuthMiddleware(s.zlog))
	{
		authRequired.POST("/auth/logout", authHandler.Logout)
		authRequired.POST("/auth/link-code", authHandler.GenerateLinkCode)

		business := authRequired.Group("/business")
		{
			business.GET("/accounts", accountHandler.GetAccounts)
			business.GET("/accounts/:id/chats", accountHandler.GetAccountChats)
			business.GET("/accounts/:id/stats", accountHandler.GetAccountStats)
			business.GET("/accounts/:id/messages/search", accountHandler.SearchMessages)
			business.GET("/chats/:id/messages", accountHandler.GetChatMessages)
			business.POST("/chats/:id/read", accountHandler.MarkChatRead)
			business.POST("/chats/:id/send", accountHandler.SendMessage)
			business.POST("/chats/:id/send-file", accountHandler.SendFile)
		}

		contacts := authRequired.Group("/contacts")
		{
			contacts.GET("", contactHandler.ListContacts)
			contacts.GET("/stats", contactHandler.GetStats)
			contacts.GET("/recent", contactHandler.GetRecent)
			contacts.GET("/top", contactHandler.GetTop)
			contacts.GET("/:id", contactHandler.GetContact)
			contacts.PUT("/:id", contactHandler.UpdateContact)
			contacts.DELETE("/:id", contactHandler.DeleteContact)
			contacts.POST("/:id/tags", contactHandler.AddTag)
			contacts.DELETE("/:id/tags/:tag", contactHandler.RemoveTag)
			contacts.GET("/:id/interactions", contactHandler.GetInteractions)
			contacts.PUT("/:id/interactions/:account_id", contactHandler.UpdateInteractionStatus)
		}

		settings := authRequired.Group("/settings")
		{
			settings.GET("/keys", settingsHandler.ListAPIKeys)
			settings.PUT("/keys", settingsHandler.SetAPIKey)
			settings.DELETE("/keys/:type", settingsHandler.DeleteAPIKey)
		}

		authRequired.POST("/files", uploadHandler.UploadFile)
	}
}

func (s *Server) Run(addr string) {
	s.log.Infof("Server starting on port %s...", addr)
	if err := s.router.Run(":" + addr); err != nil {
		s.log.Fatalf("Server failed to start: %v", err)
	}
}
