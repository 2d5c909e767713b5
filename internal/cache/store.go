package cache

import (
	"context"
	"time"
)

// Store 可注入的 TTL 缓存，由组合根持有
type Store interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
