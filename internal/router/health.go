package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shelfline-next/internal/provider"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

var errDatabaseMissing = errors.New("database not initialized")

// healthHandler 数据库不可用时返回 503；Redis 不可用只标记降级，缓存会退回内存
func healthHandler(c *provider.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		body := gin.H{"status": "ok", "database": "ok"}
		if err := pingDatabase(checkCtx, c); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
			body["database"] = err.Error()
		}
		if client := c.RedisClient(); client != nil {
			if err := client.Ping(checkCtx).Err(); err != nil {
				body["redis"] = "degraded"
			} else {
				body["redis"] = "ok"
			}
		}
		ctx.JSON(status, body)
	}
}

func pingDatabase(ctx context.Context, c *provider.Container) error {
	if c == nil || c.DB == nil {
		return errDatabaseMissing
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
