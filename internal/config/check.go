package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrWeakAdminSecret 生产模式下后台 JWT 密钥过弱
var ErrWeakAdminSecret = errors.New("admin jwt secret is weak or still the default")

var weakSecretMarkers = []string{"change-me", "change-in-production", "your-secret-key"}

// IsWeakSecret 长度不足 32 或包含占位词
func IsWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	for _, marker := range weakSecretMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// Check 启动前检查。serveAPI 为 false（仅 worker）时跳过接口相关项
// 返回的 warnings 仅需记录，err 非空时不应继续启动
func (c *Config) Check(serveAPI bool) (warnings []string, err error) {
	if c == nil {
		return nil, errors.New("config is nil")
	}
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "", "sqlite", "postgres", "postgresql":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Loyalty.OutboxMaxAttempts < 0 || c.Loyalty.OutboxBatchSize < 0 {
		return nil, errors.New("loyalty outbox settings must not be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return nil, errors.New("kafka is enabled but no brokers are configured")
	}
	if !serveAPI {
		return warnings, nil
	}

	if IsWeakSecret(c.AdminJWT.SecretKey) {
		if c.Server.IsRelease() {
			return nil, ErrWeakAdminSecret
		}
		warnings = append(warnings, "admin_jwt.secret is weak or still the default")
	}
	if strings.TrimSpace(c.Webhook.SignatureKey) == "" {
		warnings = append(warnings, "webhook.signature_key is empty, POS callbacks are not verified")
	}
	if strings.TrimSpace(c.POS.AccessToken) == "" && len(c.POS.AccessTokens) == 0 {
		warnings = append(warnings, "pos access token is empty, discount issuance and customer lookups are disabled")
	}
	return warnings, nil
}
