package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"campuscare/database"
	"campuscare/internal/api/handler"
	"campuscare/internal/api/middleware"
	"campuscare/internal/api/repository"
	"campuscare/internal/api/service"
	"campuscare/internal/config"
	"campuscare/internal/realtime"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := database.ConnectDB(cfg, logger)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}

	// Redis being unreachable only disables the unread-count cache.
	var cache *repository.UnreadCache
	if rdb, err := database.ConnectRedis(cfg, logger); err != nil {
		logger.Warn("redis_unavailable", "error", err.Error())
	} else {
		cache = repository.NewUnreadCache(rdb, cfg.CacheTTL)
	}

	hub := realtime.NewHub(logger)

	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiry)
	notificationSvc := service.NewNotificationService(notificationRepo, cache, hub, logger)
	messageSvc := service.NewMessageService(messageRepo, userRepo, cache, hub, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler.NewAuthHandler(authSvc).RegisterRoutes(r.Group("/auth"))

	authed := r.Group("/api", middleware.AuthMiddleware(authSvc))
	handler.NewNotificationHandler(notificationSvc).RegisterRoutes(authed.Group("/notifications"))
	handler.NewMessageHandler(messageSvc).RegisterRoutes(authed.Group("/messages"))

	r.GET("/ws", realtime.Handler(hub, func(token string) (string, error) {
		claims, err := authSvc.ValidateToken(token)
		if err != nil {
			return "", err
		}
		return claims.UserID, nil
	}))

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	logger.Info("server_starting", "addr", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
