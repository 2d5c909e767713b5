package queue

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/shelfline-next/internal/config"
	"github.com/shelfline-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 奖励事件发布
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 折扣发放与清理，优先级更高
	CriticalQueue = constants.QueueCritical

	// 同一 outbox 消息在该时间内重复入队会被 asynq 去重
	outboxDedupWindow  = time.Minute
	defaultConcurrency = 10
)

// Client asynq 客户端；队列未启用时所有入队操作为空操作
type Client struct {
	client *asynq.Client
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	return &Client{client: asynq.NewClient(redisOpt(cfg))}, nil
}

// Enabled 队列是否可用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// EnqueueOutbox 推送 outbox 投递任务，任务 ID 取消息 ID，重复入队视为成功
func (c *Client) EnqueueOutbox(kind, messageID string) error {
	if !c.Enabled() {
		return nil
	}
	messageID = strings.TrimSpace(messageID)
	task, err := NewOutboxTask(kind, OutboxTaskPayload{MessageID: messageID})
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task,
		asynq.Queue(queueForKind(kind, DefaultQueue)),
		asynq.TaskID("outbox:"+messageID),
		asynq.Retention(outboxDedupWindow),
		asynq.MaxRetry(0),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func queueForKind(kind, fallback string) string {
	switch kind {
	case constants.OutboxKindDiscountIssue, constants.OutboxKindDiscountCleanup:
		return CriticalQueue
	default:
		return fallback
	}
}

// BuildServerConfig asynq 服务端配置；未配置队列权重时 critical:default = 2:1
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	serverCfg := asynq.Config{
		Concurrency: defaultConcurrency,
		Queues:      map[string]int{DefaultQueue: 1, CriticalQueue: 2},
	}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			serverCfg.Concurrency = cfg.Concurrency
		}
		if len(cfg.Queues) > 0 {
			serverCfg.Queues = cfg.Queues
		}
	}
	return redisOpt(cfg), serverCfg
}

func redisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host, port := "127.0.0.1", 6379
	var opt asynq.RedisClientOpt
	if cfg != nil {
		if h := strings.TrimSpace(cfg.Host); h != "" {
			host = h
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		opt.Password = cfg.Password
		opt.DB = cfg.DB
	}
	opt.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	return opt
}
