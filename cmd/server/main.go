package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/config"
	"github.com/civicwatch/backend/internal/db"
	"github.com/civicwatch/backend/internal/logger"
	"github.com/civicwatch/backend/internal/middleware"
	"github.com/civicwatch/backend/internal/ratelimit"
	"github.com/civicwatch/backend/internal/routes"
	"github.com/civicwatch/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const issueLimitWindow = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	// Initialize logger first
	logger.Initialize(cfg.LogLevel, cfg.LogDir)

	conn, err := db.Connect(cfg.DSN(), cfg.IsDevelopment())
	if err != nil {
		logger.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	if err := db.AutoMigrate(conn); err != nil {
		logger.Fatal("Failed to migrate database", map[string]interface{}{"error": err.Error()})
	}

	ctx := context.Background()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to configure upload storage", map[string]interface{}{"error": err.Error()})
	}

	deps := routes.Dependencies{
		Config: cfg,
		DB:     conn,
		Tokens: auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		Store:  store,
	}

	var rdb *redis.Client
	if cfg.RedisAddress != "" {
		rdb, err = ratelimit.NewClient(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			// Without Redis submissions are simply not rate limited.
			logger.Warn("Redis unavailable, issue rate limiting disabled", map[string]interface{}{
				"address": cfg.RedisAddress,
				"error":   err.Error(),
			})
		} else {
			deps.Redis = rdb
			deps.Limiter = ratelimit.New(rdb, "issue_limit", cfg.IssueDailyLimit, issueLimitWindow)
			logger.Info("Issue rate limiting enabled", map[string]interface{}{
				"limit":  cfg.IssueDailyLimit,
				"window": issueLimitWindow.String(),
			})
		}
	}

	// Set Gin mode
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router without default middleware
	r := gin.New()

	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(gin.Recovery())

	routes.SetupRoutes(r, deps)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	logger.Info("Starting civicwatch backend server", map[string]interface{}{
		"port":     cfg.Port,
		"gin_mode": gin.Mode(),
		"storage":  string(cfg.Storage),
	})

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	logger.Info("Shutting down server gracefully...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		logger.Info("Server exited gracefully", nil)
	}

	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
