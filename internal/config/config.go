package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/shelfline-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	AdminJWT JWTConfig      `mapstructure:"admin_jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	POS      POSConfig      `mapstructure:"pos"`
	Loyalty  LoyaltyConfig  `mapstructure:"loyalty"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   string `mapstructure:"port"`
	Mode                   string `mapstructure:"mode"` // debug / release
	ReadTimeoutSeconds     int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds     int    `mapstructure:"idle_timeout_seconds"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// Addr 监听地址
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// IsRelease 是否为生产模式
func (c ServerConfig) IsRelease() bool {
	return strings.EqualFold(strings.TrimSpace(c.Mode), "release")
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Stdout     bool   `mapstructure:"stdout"`
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Level,
		Stdout:     c.Stdout,
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig 后台 JWT 配置（令牌由商户后台签发）
type JWTConfig struct {
	SecretKey string `mapstructure:"secret"`
	Issuer    string `mapstructure:"issuer"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// POSConfig 收银平台 API 配置
type POSConfig struct {
	BaseURL            string            `mapstructure:"base_url"`
	APIVersion         string            `mapstructure:"api_version"`
	AccessToken        string            `mapstructure:"access_token"`  // 默认令牌
	AccessTokens       map[string]string `mapstructure:"access_tokens"` // merchant_id -> 令牌
	TimeoutSeconds     int               `mapstructure:"timeout_seconds"`
	DiscountNamePrefix string            `mapstructure:"discount_name_prefix"`
}

// TokenFor 返回商户访问令牌，未配置时回退到默认令牌
func (c POSConfig) TokenFor(merchantID string) string {
	if token, ok := c.AccessTokens[strings.TrimSpace(merchantID)]; ok && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(c.AccessToken)
}

// LoyaltyConfig 常客奖励配置
type LoyaltyConfig struct {
	OfferCacheTTLSeconds    int  `mapstructure:"offer_cache_ttl_seconds"`
	CustomerCacheTTLSeconds int  `mapstructure:"customer_cache_ttl_seconds"`
	OutboxRelayIntervalMS   int  `mapstructure:"outbox_relay_interval_ms"`
	OutboxBatchSize         int  `mapstructure:"outbox_batch_size"`
	OutboxMaxAttempts       int  `mapstructure:"outbox_max_attempts"`
	AutoRedeemDetected      bool `mapstructure:"auto_redeem_detected"`
}

// KafkaConfig 奖励事件投递配置
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// WebhookConfig 平台回调配置
type WebhookConfig struct {
	SignatureKey           string `mapstructure:"signature_key"` // 为空时不校验签名
	RateLimitWindowSeconds int    `mapstructure:"rate_limit_window_seconds"`
	RateLimitMaxRequests   int    `mapstructure:"rate_limit_max_requests"`
}

// EnvPrefix 环境变量前缀，如 SHELFLINE_DATABASE_DSN 覆盖 database.dsn
const EnvPrefix = "SHELFLINE"

// LoadFrom 读取指定配置文件；path 为空时依次查找 ./config.yml、../config.yml、./etc/config.yml
// 配置文件缺失不是错误，此时只使用默认值与环境变量
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range []string{".", "..", "./etc"} {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Warnw("config_file_not_found", "fallback", "env_or_defaults")
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

var defaults = map[string]interface{}{
	"server.host":                     "0.0.0.0",
	"server.port":                     "8080",
	"server.mode":                     "debug",
	"server.read_timeout_seconds":     15,
	"server.write_timeout_seconds":    30,
	"server.idle_timeout_seconds":     120,
	"server.shutdown_timeout_seconds": 10,

	"log.level":        "",
	"log.stdout":       false,
	"log.dir":          "",
	"log.filename":     "loyalty.log",
	"log.max_size_mb":  100,
	"log.max_backups":  7,
	"log.max_age_days": 30,
	"log.compress":     true,

	"database.driver":                          "sqlite",
	"database.dsn":                             "./db/shelfline.db",
	"database.pool.max_open_conns":             1,
	"database.pool.max_idle_conns":             1,
	"database.pool.conn_max_lifetime_seconds":  0,
	"database.pool.conn_max_idle_time_seconds": 0,

	"admin_jwt.secret": "change-me-in-production",
	"admin_jwt.issuer": "shelfline-backoffice",

	"redis.enabled":  true,
	"redis.host":     "127.0.0.1",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,
	"redis.prefix":   "sl",

	"queue.enabled":     true,
	"queue.host":        "127.0.0.1",
	"queue.port":        6379,
	"queue.password":    "",
	"queue.db":          1,
	"queue.concurrency": 10,
	"queue.queues":      map[string]int{"critical": 6, "default": 3},

	"cors.allowed_origins":   []string{"*"},
	"cors.allowed_methods":   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"cors.allowed_headers":   []string{"Content-Type", "Authorization", "X-Request-ID", "X-Requested-With"},
	"cors.allow_credentials": true,
	"cors.max_age":           600,

	"pos.base_url":             "https://connect.squareup.com",
	"pos.api_version":          "2025-01-23",
	"pos.access_token":         "",
	"pos.timeout_seconds":      12,
	"pos.discount_name_prefix": "Frequent Buyer Reward",

	"loyalty.offer_cache_ttl_seconds":    300,
	"loyalty.customer_cache_ttl_seconds": 600,
	"loyalty.outbox_relay_interval_ms":   2000,
	"loyalty.outbox_batch_size":          50,
	"loyalty.outbox_max_attempts":        8,
	"loyalty.auto_redeem_detected":       true,

	"kafka.enabled": false,
	"kafka.brokers": []string{"127.0.0.1:9092"},
	"kafka.topic":   "loyalty.reward_events",

	"webhook.signature_key":             "",
	"webhook.rate_limit_window_seconds": 60,
	"webhook.rate_limit_max_requests":   600,
}
