package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sharesphere/internal/api"
	"sharesphere/internal/service"
	"sharesphere/internal/websocket"
	"sharesphere/pkg/config"
	"sharesphere/pkg/db"
	"sharesphere/pkg/logger"
	"sharesphere/pkg/redisclient"
	"sharesphere/pkg/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (default: config/config.yaml)")
	flag.Parse()

	// 初始化配置
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GlobalConfig
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.ProductionMode, cfg.Log.Folder); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.L.Error("Server exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.L.Info("Server stopped")
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库连接
	if err := db.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := redisclient.InitRedisClient(ctx); err != nil {
		return err
	}
	defer redisclient.Close()

	store, err := storage.NewBlobStore(cfg.Storage.Root)
	if err != nil {
		return err
	}

	hub, err := websocket.CreateHub(cfg.Messaging, nil)
	if err != nil {
		return fmt.Errorf("failed to create hub: %w", err)
	}
	svc := service.NewServices(hub, store, cfg.Storage.MaxFileSize)
	hub.SetPresenceHandler(svc.Notifications)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router, err := api.NewRouter(svc, hub)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return websocket.RunHub(gctx, hub)
	})
	g.Go(func() error {
		logger.L.Info("Server listening", zap.String("addr", srv.Addr), zap.String("storage", store.Root()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.L.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
