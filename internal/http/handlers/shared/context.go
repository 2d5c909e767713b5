package shared

import (
	"strings"

	"github.com/shelfline-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// 鉴权中间件与回调处理器写入的上下文键
const (
	ContextMerchantID   = "merchant_id"
	ContextAdminID      = "admin_id"
	ContextRoles        = "admin_roles"
	ContextWebhookEvent = "webhook_event"
)

// GetContextStringWithKey 从上下文读取非空字符串，缺失时返回未授权。
func GetContextStringWithKey(c *gin.Context, key string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return "", false
	}
	text, ok := value.(string)
	if !ok {
		RespondError(c, response.CodeInternal, key+" type invalid", nil)
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return "", false
	}
	return text, true
}

// GetMerchantID 当前令牌所属商户
func GetMerchantID(c *gin.Context) (string, bool) {
	return GetContextStringWithKey(c, ContextMerchantID)
}

// GetAdminID 当前操作人，缺失时返回空字符串
func GetAdminID(c *gin.Context) string {
	if value, ok := c.Get(ContextAdminID); ok {
		if text, ok := value.(string); ok {
			return strings.TrimSpace(text)
		}
	}
	return ""
}
