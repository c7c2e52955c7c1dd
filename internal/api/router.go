package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"sharesphere/internal/interfaces"
	"sharesphere/internal/middleware"
	"sharesphere/internal/service"
	"sharesphere/pkg/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/redis"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

const sessionName = "sharesphere_session"

func newSessionStore(cfg config.Config) (sessions.Store, error) {
	secret := []byte(cfg.Session.Secret)
	var store sessions.Store
	switch cfg.Session.Store {
	case "redis":
		s, err := redis.NewStore(cfg.Redis.PoolSize, "tcp", cfg.Redis.Addr, cfg.Redis.Password, secret)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis session store: %w", err)
		}
		store = s
	case "cookie", "":
		store = cookie.NewStore(secret)
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Session.Store)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

// NewRouter 创建 gin 引擎并注册全部路由
func NewRouter(svc *service.Services, hub interfaces.PushHub) (*gin.Engine, error) {
	cfg := config.GlobalConfig

	r := gin.New()
	r.Use(gin.Recovery(), middleware.GinZapLogger())

	if len(cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	store, err := newSessionStore(cfg)
	if err != nil {
		return nil, err
	}
	r.Use(sessions.Sessions(sessionName, store))

	authHandler := NewAuthHandler(svc.Auth)
	fileHandler := NewFileHandler(svc.Files)
	shareHandler := NewFileShareHandler(svc.Shares)
	groupHandler := NewGroupHandler(svc.Groups)
	adminHandler := NewAdminHandler(svc.Admin)
	notificationHandler := NewNotificationHandler(svc.Notifications)
	wsHandler := NewWSHandler(hub, svc.Notifications, cfg.Server.AllowedOrigins)

	loginLimiter := middleware.NewIPRateLimiter(cfg.Server.LoginRatePerMinute)

	apiRouter := r.Group("/api")
	{
		// 公开路由
		apiRouter.GET("/health", func(c *gin.Context) {
			respondOK(c, http.StatusOK, "ok", nil)
		})
		apiRouter.POST("/auth/login", middleware.RateLimit(loginLimiter), authHandler.Login)
		apiRouter.POST("/auth/logout", authHandler.Logout)

		// 受保护的路由
		protected := apiRouter.Group("/", middleware.AuthMiddleware(svc.Users))
		{
			protected.GET("/auth/me", authHandler.Me)
			protected.PUT("/auth/dark-mode", authHandler.SetDarkMode)

			protected.POST("/files", fileHandler.UploadFile)
			protected.GET("/files", fileHandler.ListFiles)
			protected.GET("/files/:file_id/download", fileHandler.DownloadFile)
			protected.DELETE("/files/:file_id", fileHandler.DeleteFile)
			protected.GET("/files/:file_id/shares", shareHandler.ListGrants)
			protected.GET("/share-modes", shareHandler.ShareModes)

			protected.GET("/groups", groupHandler.ListGroups)
			protected.GET("/groups/:group_id", groupHandler.GetGroupInfo)
			protected.POST("/groups/:group_id/join", groupHandler.RequestJoin)
			protected.GET("/me/groups", groupHandler.GetUserGroups)
			protected.GET("/me/groups/available", groupHandler.GetAvailableGroups)
			protected.GET("/me/requests", groupHandler.MyRequests)

			protected.GET("/notifications", notificationHandler.ListNotifications)
			protected.POST("/notifications/read", notificationHandler.MarkRead)

			protected.GET("/ws", wsHandler.HandleConnection)
		}

		admin := apiRouter.Group("/admin", middleware.AuthMiddleware(svc.Users), middleware.AdminMiddleware())
		{
			admin.POST("/groups", groupHandler.CreateGroup)
			admin.GET("/requests", groupHandler.ListRequests)
			admin.POST("/requests/:request_id/approve", groupHandler.ApproveRequest)
			admin.POST("/requests/:request_id/reject", groupHandler.RejectRequest)

			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users", adminHandler.CreateUser)
			admin.DELETE("/users/:user_id", adminHandler.DeleteUser)
			admin.PUT("/users/:user_id/password", adminHandler.ResetPassword)

			admin.GET("/files", adminHandler.ListFiles)
			admin.DELETE("/files/:file_id", adminHandler.DeleteFile)
			admin.GET("/logs", adminHandler.SystemLogs)
		}
	}

	if cfg.Server.StaticDir != "" {
		r.Use(static.Serve("/", static.LocalFile(cfg.Server.StaticDir, true)))
	}
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			respondFail(c, http.StatusNotFound, "API route not found")
			return
		}
		c.Status(http.StatusNotFound)
	})

	return r, nil
}
