package router

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/shelfline-next/internal/http/response"
	"github.com/shelfline-next/internal/logger"

	"github.com/gin-gonic/gin"
)

// SignatureHeader 平台回调签名头，值为 HMAC-SHA256(body) 的 hex 或 base64
const SignatureHeader = "X-Webhook-Signature"

const maxWebhookBodyBytes = 1 << 20

// WebhookSignatureMiddleware 校验平台回调签名，密钥为空时放行
// 读取后的请求体会放回 Request.Body，后续处理器可再次绑定
func WebhookSignatureMiddleware(signatureKey string) gin.HandlerFunc {
	key := []byte(strings.TrimSpace(signatureKey))
	return func(c *gin.Context) {
		if len(key) == 0 {
			c.Next()
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			response.BadRequest(c, "webhook body unreadable or too large")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !verifySignature(key, body, c.GetHeader(SignatureHeader)) {
			logger.Warnw("webhook_signature_invalid",
				"request_id", getRequestID(c),
				"client_ip", c.ClientIP(),
				"body_bytes", len(body),
			)
			response.Unauthorized(c, "webhook signature invalid")
			c.Abort()
			return
		}
		c.Next()
	}
}

// SignWebhookBody 计算回调签名（hex），供平台侧联调与测试使用
func SignWebhookBody(signatureKey string, body []byte) string {
	return hex.EncodeToString(computeSignature([]byte(strings.TrimSpace(signatureKey)), body))
}

func computeSignature(key, body []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return mac.Sum(nil)
}

func verifySignature(key, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	expected := computeSignature(key, body)
	for _, decode := range []func(string) ([]byte, error){hex.DecodeString, base64.StdEncoding.DecodeString} {
		if decoded, err := decode(signature); err == nil && hmac.Equal(decoded, expected) {
			return true
		}
	}
	return false
}
