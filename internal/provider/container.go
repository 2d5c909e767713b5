package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shelfline-next/internal/authz"
	"github.com/shelfline-next/internal/cache"
	"github.com/shelfline-next/internal/config"
	"github.com/shelfline-next/internal/eventbus"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/pos"
	"github.com/shelfline-next/internal/queue"
	"github.com/shelfline-next/internal/repository"
	"github.com/shelfline-next/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const memoryCacheEntries = 4096

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	Cache       cache.Store
	QueueClient *queue.Client
	POSClient   *pos.Client
	Publisher   *eventbus.KafkaPublisher

	// Repositories
	OfferRepo      repository.OfferRepository
	EventRepo      repository.PurchaseEventRepository
	RewardRepo     repository.RewardRepository
	RedemptionRepo repository.RedemptionRepository
	SummaryRepo    repository.CustomerSummaryRepository
	AuditLogRepo   repository.LoyaltyAuditLogRepository
	OutboxRepo     repository.OutboxRepository

	// Services
	AuthzService       *authz.Service
	OfferService       *service.OfferService
	AuditService       *service.AuditService
	OutboxService      *service.OutboxService
	LoyaltyService     *service.LoyaltyService
	DiscountService    *service.DiscountService
	CustomerResolver   *service.CustomerResolver
	OrderIntakeService *service.OrderIntakeService

	redisStore *cache.RedisStore
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config, db *gorm.DB) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if db == nil {
		return nil, errors.New("db is nil")
	}

	c := &Container{
		Config: cfg,
		DB:     db,
	}

	c.initCache()

	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		return nil, err
	}
	c.QueueClient = queueClient

	publisher, err := eventbus.NewKafkaPublisher(&cfg.Kafka)
	if err != nil {
		logger.Errorw("provider_init_kafka_failed", "error", err)
		return nil, err
	}
	c.Publisher = publisher

	if posConfigured(cfg.POS) {
		c.POSClient = pos.NewClient(pos.Config{
			BaseURL:            cfg.POS.BaseURL,
			APIVersion:         cfg.POS.APIVersion,
			AccessToken:        cfg.POS.AccessToken,
			AccessTokens:       cfg.POS.AccessTokens,
			Timeout:            time.Duration(cfg.POS.TimeoutSeconds) * time.Second,
			DiscountNamePrefix: cfg.POS.DiscountNamePrefix,
		})
	} else {
		logger.Warnw("provider_pos_client_disabled", "reason", "no_access_token")
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	if err := c.initServices(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initCache() {
	if store := cache.NewRedisStore(&c.Config.Redis); store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			logger.Warnw("provider_init_redis_failed", "error", err, "fallback", "memory")
			_ = store.Close()
		} else {
			c.redisStore = store
			c.Cache = store
			return
		}
	}
	c.Cache = cache.NewMemoryStore(memoryCacheEntries)
}

func (c *Container) initRepositories() {
	db := c.DB
	c.OfferRepo = repository.NewOfferRepository(db)
	c.EventRepo = repository.NewPurchaseEventRepository(db)
	c.RewardRepo = repository.NewRewardRepository(db)
	c.RedemptionRepo = repository.NewRedemptionRepository(db)
	c.SummaryRepo = repository.NewCustomerSummaryRepository(db)
	c.AuditLogRepo = repository.NewLoyaltyAuditLogRepository(db)
	c.OutboxRepo = repository.NewOutboxRepository(db)
}

func (c *Container) initServices() error {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		return err
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		return err
	}

	loyaltyCfg := c.Config.Loyalty
	c.OfferService = service.NewOfferService(c.OfferRepo, c.Cache, seconds(loyaltyCfg.OfferCacheTTLSeconds))
	c.AuditService = service.NewAuditService(c.AuditLogRepo)
	c.OutboxService = service.NewOutboxService(c.OutboxRepo, loyaltyCfg.OutboxMaxAttempts)
	c.LoyaltyService = service.NewLoyaltyService(
		c.DB,
		c.OfferService,
		c.OfferRepo,
		c.EventRepo,
		c.RewardRepo,
		c.RedemptionRepo,
		c.SummaryRepo,
		c.AuditService,
		c.OutboxService,
	)

	// 接口类型参数在未启用时必须传无类型 nil
	var external service.ExternalDiscount
	var loyaltyLookup service.LoyaltyEventLookup
	var contacts service.ContactLookup
	if c.POSClient != nil {
		external = c.POSClient
		loyaltyLookup = c.POSClient
		contacts = pos.NewContactLookup(c.POSClient, c.Cache, seconds(loyaltyCfg.CustomerCacheTTLSeconds))
	}
	var publisher service.EventPublisher
	if c.Publisher != nil {
		publisher = c.Publisher
	}

	c.DiscountService = service.NewDiscountService(c.DB, c.RewardRepo, c.OfferService, c.OutboxService, external, publisher)
	c.DiscountService.Register(c.OutboxService)
	c.CustomerResolver = service.NewCustomerResolver(c.EventRepo, c.RewardRepo, c.RedemptionRepo, loyaltyLookup, contacts)
	c.OrderIntakeService = service.NewOrderIntakeService(c.LoyaltyService, c.CustomerResolver, c.RewardRepo, loyaltyCfg.AutoRedeemDetected)
	return nil
}

// RedisClient Redis 未启用或不可用时返回 nil
func (c *Container) RedisClient() *redis.Client {
	if c == nil || c.redisStore == nil {
		return nil
	}
	return c.redisStore.Client()
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := c.Publisher.Close(); err != nil {
		logger.Warnw("provider_close_kafka_failed", "error", err)
	}
	if c.redisStore != nil {
		if err := c.redisStore.Close(); err != nil {
			logger.Warnw("provider_close_redis_failed", "error", err)
		}
	}
}

func posConfigured(cfg config.POSConfig) bool {
	if strings.TrimSpace(cfg.AccessToken) != "" {
		return true
	}
	for _, token := range cfg.AccessTokens {
		if strings.TrimSpace(token) != "" {
			return true
		}
	}
	return false
}

func seconds(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}
