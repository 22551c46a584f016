package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    HealthChecker
	redis Pinger
}

func NewHealthHandler(db HealthChecker, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) Shallow(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]gin.H{
		"database": runCheck(ctx, h.db.HealthCheck),
		"redis":    runCheck(ctx, h.redis.Ping),
	}

	status := http.StatusOK
	statusStr := "ok"
	for _, check := range checks {
		if check["status"] != "ok" {
			status = http.StatusServiceUnavailable
			statusStr = "unhealthy"
		}
	}

	c.JSON(status, gin.H{"status": statusStr, "checks": checks})
}

func runCheck(ctx context.Context, check func(context.Context) error) gin.H {
	start := time.Now()
	if err := check(ctx); err != nil {
		return gin.H{"status": "unhealthy", "error": err.Error()}
	}
	return gin.H{"status": "ok", "latency_ms": time.Since(start).Milliseconds()}
}
