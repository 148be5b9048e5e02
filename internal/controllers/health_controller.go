package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/civicwatch/backend/internal/db"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const Version = "1.0.0"

type HealthController struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewHealthController reports on conn and, when not nil, the Redis client
// backing the rate limiter.
func NewHealthController(conn *gorm.DB, rdb *redis.Client) *HealthController {
	return &HealthController{db: conn, redis: rdb}
}

func (hc *HealthController) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	overallStatus := "ok"
	statusCode := http.StatusOK

	database := gin.H{"status": "ok"}
	if err := db.Ping(hc.db); err != nil {
		database = gin.H{"status": "error", "error": err.Error()}
		overallStatus = "error"
		statusCode = http.StatusServiceUnavailable
	}

	cache := gin.H{"status": "disabled"}
	if hc.redis != nil {
		cache = gin.H{"status": "ok"}
		if err := hc.redis.Ping(ctx).Err(); err != nil {
			// Redis only backs the rate limiter, which fails open.
			cache = gin.H{"status": "error", "error": err.Error()}
			if overallStatus == "ok" {
				overallStatus = "degraded"
			}
		}
	}

	c.JSON(statusCode, gin.H{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
		"services": gin.H{
			"database": database,
			"redis":    cache,
		},
	})
}
