package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/api"
	"github.com/ProjectPlatform/Server/internal/blob"
	"github.com/ProjectPlatform/Server/internal/config"
	"github.com/ProjectPlatform/Server/internal/db"
	"github.com/ProjectPlatform/Server/internal/fanout"
	"github.com/ProjectPlatform/Server/internal/middleware"
	"github.com/ProjectPlatform/Server/internal/notify"
	"github.com/ProjectPlatform/Server/internal/observ"
	"github.com/ProjectPlatform/Server/internal/repository/postgres"
	"github.com/ProjectPlatform/Server/internal/service"
	"github.com/ProjectPlatform/Server/internal/verify"
	"github.com/ProjectPlatform/Server/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	pool := database.Pool()
	userRepo, err := postgres.NewUserStore(pool)
	if err != nil {
		return fmt.Errorf("user store: %w", err)
	}
	chatRepo, err := postgres.NewChatStore(pool)
	if err != nil {
		return fmt.Errorf("chat store: %w", err)
	}
	membershipRepo, err := postgres.NewMembershipStore(pool)
	if err != nil {
		return fmt.Errorf("membership store: %w", err)
	}
	messageRepo, err := postgres.NewMessageStore(pool)
	if err != nil {
		return fmt.Errorf("message store: %w", err)
	}
	attachmentRepo, err := postgres.NewAttachmentStore(pool)
	if err != nil {
		return fmt.Errorf("attachment store: %w", err)
	}

	blobs, err := blob.NewFileStore(cfg.BlobDir)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	codes := verify.NewCodes(rdb, cfg.VerifyCodeTTL, cfg.VerifyMaxAttempts)

	var notifier notify.Notifier
	if cfg.DisableFirebase {
		notifier = notify.Nop{}
		logger.Info("push notifications disabled")
	} else {
		notifier, err = notify.NewFCM(ctx, logger)
		if err != nil {
			return fmt.Errorf("firebase: %w", err)
		}
	}

	registry := ws.NewRegistry(logger)
	dispatcher := fanout.NewDispatcher(membershipRepo, userRepo, registry, notifier, logger)

	perms := service.NewPerms(membershipRepo)
	messages := service.NewMessages(messageRepo, chatRepo, attachmentRepo, perms, dispatcher, logger)
	chats := service.NewChats(chatRepo, membershipRepo, userRepo, perms, messages, logger)
	users := service.NewUsers(userRepo, codes, logger)
	attachments := service.NewAttachments(attachmentRepo, blobs, perms)

	authHandler := api.NewAuthHandler(users, cfg.JWTSecret, cfg.TokenTTL, logger)
	userHandler := api.NewUserHandler(users, logger)
	chatHandler := api.NewChatHandler(chats, logger)
	messageHandler := api.NewMessageHandler(messages, logger)
	attachmentHandler := api.NewAttachmentHandler(attachments, logger)
	wsHandler := api.NewWSHandler(registry, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Recovery())

	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	srv.POST("/v1/auth/register", authHandler.Register)
	srv.POST("/v1/auth/confirm", authHandler.Confirm)
	srv.POST("/v1/auth/reissue", authHandler.Reissue)
	srv.POST("/v1/auth/login", authHandler.Login)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.GET("/users/me", userHandler.Me)
	v1.DELETE("/users/me", userHandler.Delete)
	v1.POST("/users/me/devices", userHandler.AddDeviceToken)
	v1.DELETE("/users/me/devices", userHandler.RemoveDeviceToken)

	v1.POST("/chats", chatHandler.Create)
	v1.POST("/chats/personal", chatHandler.CreatePersonal)
	v1.GET("/chats", chatHandler.List)
	v1.GET("/chats/:id", chatHandler.GetInfo)
	v1.POST("/chats/:id/members", chatHandler.AddUser)
	v1.DELETE("/chats/:id/members/:user_id", chatHandler.RemoveUser)
	v1.POST("/chats/:id/admins", chatHandler.MakeAdmin)
	v1.PUT("/chats/:id/flags/:flag", chatHandler.SetFlag)

	v1.POST("/chats/:id/messages", messageHandler.Send)
	v1.GET("/chats/:id/messages", messageHandler.Range)
	v1.GET("/chats/:id/messages/tagged/:tag", messageHandler.WithTag)
	v1.GET("/messages/:id", messageHandler.Get)
	v1.PUT("/messages/:id", messageHandler.Edit)
	v1.DELETE("/messages/:id", messageHandler.Delete)

	v1.POST("/attachments", attachmentHandler.Upload)
	v1.GET("/attachments/:id", attachmentHandler.Get)
	v1.GET("/attachments/:id/content", attachmentHandler.Download)

	v1.GET("/ws", wsHandler.Connect)

	logger.Info("starting server",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	return srv.Run(":" + cfg.Port)
}
