package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMemoryMaxEntries = 10000
	// memoryMaxTTL 条目在进程内的最长存活时间，单个键的 ttl 在读取时再校验
	memoryMaxTTL = 24 * time.Hour
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore 进程内有界 LRU 缓存（未启用 Redis 时使用）
type MemoryStore struct {
	entries *expirable.LRU[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryStore 创建进程内缓存，maxEntries <= 0 时使用默认上限
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryMaxEntries
	}
	return &MemoryStore{
		entries: expirable.NewLRU[string, memoryEntry](maxEntries, nil, memoryMaxTTL),
		now:     time.Now,
	}
}

// GetJSON 获取 JSON 缓存
func (s *MemoryStore) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	key = strings.TrimSpace(key)
	entry, ok := s.entries.Get(key)
	if !ok {
		return false, nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.entries.Remove(key)
		return false, nil
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 写入 JSON 缓存，ttl <= 0 时只受最长存活时间限制
func (s *MemoryStore) SetJSON(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries.Add(strings.TrimSpace(key), entry)
	return nil
}

// Del 删除缓存
func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.entries.Remove(strings.TrimSpace(key))
	}
	return nil
}

// Len 当前条目数
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}
