package router

import (
	"strings"
	"time"

	handlershared "github.com/shelfline-next/internal/http/handlers/shared"
	"github.com/shelfline-next/internal/http/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware 透传或生成请求 ID，写入上下文与响应头
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Set(response.RequestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 访问日志
// HTTP 状态恒为 200，日志级别按业务码区分：5xx 记 error，4xx 记 warn
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		code, hasCode := response.StatusCode(c)
		if hasCode {
			fields = append(fields, "code", code)
		}
		if merchantID := contextString(c, handlershared.ContextMerchantID); merchantID != "" {
			fields = append(fields, "merchant_id", merchantID)
		}
		if event := contextString(c, handlershared.ContextWebhookEvent); event != "" {
			fields = append(fields, "webhook_event", event)
		}

		switch {
		case len(c.Errors) > 0:
			sugar.Errorw("http_request", append(fields, "errors", c.Errors.String())...)
		case hasCode && code >= response.CodeInternal:
			sugar.Errorw("http_request", fields...)
		case hasCode && code >= response.CodeBadRequest:
			sugar.Warnw("http_request", fields...)
		default:
			sugar.Infow("http_request", fields...)
		}
	}
}

func getRequestID(c *gin.Context) string {
	return contextString(c, response.RequestIDKey)
}

func contextString(c *gin.Context, key string) string {
	value, ok := c.Get(key)
	if !ok {
		return ""
	}
	text, _ := value.(string)
	return text
}
