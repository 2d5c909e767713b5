package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/shelfline-next/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "sl"
	redisDialTimeout = 2 * time.Second
	redisIOTimeout   = time.Second
)

// RedisStore Redis 实现的 Store，键统一加前缀 <prefix>:
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 按配置创建；Redis 未启用时返回 nil
func NewRedisStore(cfg *config.RedisConfig) *RedisStore {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisIOTimeout,
		WriteTimeout: redisIOTimeout,
	})
	return NewRedisStoreWithClient(client, cfg.Prefix)
}

// NewRedisStoreWithClient 复用已有客户端，prefix 为空时使用 sl
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if client == nil {
		return nil
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Client 底层客户端，供限流等需要原生命令的组件使用
func (s *RedisStore) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// Ping 检测连接
func (s *RedisStore) Ping(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// GetJSON 命中返回 true；键不存在不是错误
func (s *RedisStore) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// 结构变更后的旧值按未命中处理并删除
		_ = s.client.Unlink(ctx, s.key(key)).Err()
		return false, nil
	}
	return true, nil
}

// SetJSON ttl <= 0 表示不过期
func (s *RedisStore) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(key), payload, ttl).Err()
}

// Del 异步删除（UNLINK）
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.key(key)
	}
	return s.client.Unlink(ctx, full...).Err()
}

// Close 关闭连接
func (s *RedisStore) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + strings.TrimSpace(key)
}
