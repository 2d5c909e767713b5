package router

import (
	"errors"
	"strings"

	"github.com/shelfline-next/internal/authz"
	"github.com/shelfline-next/internal/config"
	handlershared "github.com/shelfline-next/internal/http/handlers/shared"
	"github.com/shelfline-next/internal/http/response"
	"github.com/shelfline-next/internal/logger"

	"github.com/gin-gonic/gin"
)

var (
	errAuthorizationMissing = errors.New("authorization header missing")
	errAuthorizationInvalid = errors.New("authorization header invalid")
)

// bearerToken 解析 "Bearer <token>"，scheme 不区分大小写
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errAuthorizationMissing
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errAuthorizationInvalid
	}
	return token, nil
}

// AdminJWTMiddleware 校验商户后台签发的令牌
// 商户 ID 只取自令牌，后台接口不接受请求参数中的商户 ID
func AdminJWTMiddleware(cfg config.JWTConfig) gin.HandlerFunc {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	issuer := strings.TrimSpace(cfg.Issuer)
	return func(c *gin.Context) {
		if secretKey == "" {
			response.Unauthorized(c, "jwt secret not configured")
			c.Abort()
			return
		}
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}
		claims, err := authz.ParseAdminToken(secretKey, issuer, token)
		if err != nil {
			logger.Debugw("admin_jwt_rejected", "route", c.FullPath(), "error", err)
			response.Unauthorized(c, "token invalid")
			c.Abort()
			return
		}

		c.Set(handlershared.ContextMerchantID, strings.TrimSpace(claims.MerchantID))
		c.Set(handlershared.ContextAdminID, strings.TrimSpace(claims.AdminID))
		c.Set(handlershared.ContextRoles, claims.Roles)
		c.Next()
	}
}

// AdminRBACMiddleware 按令牌角色与路由模板鉴权
func AdminRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID := handlershared.GetAdminID(c)
		if authzService == nil || adminID == "" {
			if authzService == nil {
				logger.Errorw("admin_rbac_service_unavailable")
			}
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}

		roles := contextRoles(c)
		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}
		allowed, err := authzService.EnforceRoles(roles, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("admin_rbac_enforce_failed",
				"admin_id", adminID,
				"resource", resource,
				"error", err,
			)
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("admin_rbac_permission_denied",
				"merchant_id", contextString(c, handlershared.ContextMerchantID),
				"admin_id", adminID,
				"roles", roles,
				"method", c.Request.Method,
				"resource", authz.NormalizeObject(resource),
			)
			response.Forbidden(c, "forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}

func contextRoles(c *gin.Context) []string {
	value, ok := c.Get(handlershared.ContextRoles)
	if !ok {
		return nil
	}
	roles, _ := value.([]string)
	return roles
}
