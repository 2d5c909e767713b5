package router

import (
	"fmt"
	"strings"

	"github.com/shelfline-next/internal/config"
	adminhandlers "github.com/shelfline-next/internal/http/handlers/admin"
	webhookhandlers "github.com/shelfline-next/internal/http/handlers/webhook"
	"github.com/shelfline-next/internal/http/response"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	webhookHandler := webhookhandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sl"
	}
	webhookRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:webhook", redisPrefix),
		WindowSeconds: cfg.Webhook.RateLimitWindowSeconds,
		MaxRequests:   cfg.Webhook.RateLimitMaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 收银平台回调
		webhooks := apiV1.Group("/webhooks")
		{
			webhooks.POST("/pos",
				RateLimitMiddleware(c.RedisClient(), webhookRule, KeyByMerchant("merchant_id")),
				WebhookSignatureMiddleware(cfg.Webhook.SignatureKey),
				webhookHandler.HandlePOSEvent,
			)
		}

		admin := apiV1.Group("/admin")
		admin.Use(AdminJWTMiddleware(cfg.AdminJWT), AdminRBACMiddleware(c.AuthzService))
		{
			// 常客计划
			admin.GET("/offers", adminHandler.ListOffers)
			admin.POST("/offers", adminHandler.CreateOffer)
			admin.GET("/offers/:id", adminHandler.GetOffer)
			admin.PUT("/offers/:id", adminHandler.UpdateOffer)
			admin.POST("/offers/:id/deactivate", adminHandler.DeactivateOffer)
			admin.GET("/offers/:id/variations", adminHandler.ListOfferVariations)
			admin.POST("/offers/:id/variations", adminHandler.AssignOfferVariation)
			admin.DELETE("/offers/:id/variations/:variation_id", adminHandler.RemoveOfferVariation)

			// 客户汇总
			admin.GET("/offers/:id/customers/:customer_id/summary", adminHandler.GetCustomerSummary)
			admin.POST("/offers/:id/customers/:customer_id/summary/rebuild", adminHandler.RebuildCustomerSummary)
			admin.GET("/summaries", adminHandler.ListSummaries)
			admin.POST("/summaries/rebuild", adminHandler.RebuildAllSummaries)

			// 奖励与购买事件
			admin.GET("/rewards", adminHandler.ListRewards)
			admin.GET("/rewards/:id", adminHandler.GetReward)
			admin.POST("/rewards/:id/redeem", adminHandler.RedeemReward)
			admin.GET("/events", adminHandler.ListEvents)

			// 审计与投递
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
			admin.GET("/outbox", adminHandler.ListOutbox)
			admin.POST("/outbox/retry-failed", adminHandler.RetryFailedOutbox)
			admin.POST("/discounts/reissue", adminHandler.ReissueDiscounts)

			// 权限
			admin.GET("/authz/roles", adminHandler.ListAuthzRoles)
			admin.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
			admin.GET("/authz/permissions", func(ctx *gin.Context) {
				catalog, err := buildPermissionCatalog(r.Routes(), c.AuthzService)
				if err != nil {
					response.Error(ctx, response.CodeInternal, "build permission catalog failed")
					return
				}
				response.Success(ctx, catalog)
			})
		}
	}

	// 健康检查
	r.GET("/healthz", healthHandler(c))

	return r
}
