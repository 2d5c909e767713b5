package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shelfline-next/internal/http/response"
	"github.com/shelfline-next/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 固定窗口限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
}

func (r RateLimitRule) enabled() bool {
	return r.WindowSeconds > 0 && r.MaxRequests > 0
}

// INCR 与首次 EXPIRE 需原子执行，否则进程中断会留下永不过期的计数
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("TTL", KEYS[1])}
`)

type rateLimitDecision struct {
	allowed    bool
	remaining  int
	retryAfter int
}

func decideRateLimit(rule RateLimitRule, count, ttlSeconds int64) rateLimitDecision {
	remaining := int64(rule.MaxRequests) - count
	if remaining >= 0 {
		return rateLimitDecision{allowed: true, remaining: int(remaining)}
	}
	retryAfter := int(ttlSeconds)
	if retryAfter < 1 {
		retryAfter = rule.WindowSeconds
	}
	if retryAfter < 1 {
		retryAfter = 1
	}
	return rateLimitDecision{retryAfter: retryAfter}
}

// RateLimitMiddleware Redis 固定窗口限流
// Redis 不可用时放行并记录日志：平台回调被拒会触发重投，比短时不限流代价更高
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || !rule.enabled() {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = rule.Prefix + ":" + key
		}

		values, err := rateLimitScript.Run(c.Request.Context(), client, []string{key}, rule.WindowSeconds).Int64Slice()
		if err != nil || len(values) < 2 {
			logger.Warnw("rate_limit_unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		decision := decideRateLimit(rule, values[0], values[1])
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.MaxRequests))
		if !decision.allowed {
			logger.Warnw("rate_limit_exceeded", "key", key, "count", values[0], "retry_after", decision.retryAfter)
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(decision.retryAfter))
			response.Error(c, response.CodeTooManyRequests, fmt.Sprintf("too many requests, retry in %d seconds", decision.retryAfter))
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.remaining))
		c.Next()
	}
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByMerchant 按回调体中的 merchant_id 限流，缺失时退回客户端 IP
// 平台回调来自多台出口机器，按 IP 限流无法约束单个商户的回调量
func KeyByMerchant(field string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		if value := strings.ToLower(peekJSONField(c, field)); value != "" {
			return "merchant:" + value
		}
		return "ip:" + c.ClientIP()
	}
}

// peekJSONField 读取顶层字符串字段并放回请求体
func peekJSONField(c *gin.Context, field string) string {
	if c == nil || c.Request == nil || c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil || len(body) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var text string
	if err := json.Unmarshal(payload[field], &text); err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
