package eventbus

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shelfline-next/internal/config"

	"github.com/segmentio/kafka-go"
)

const defaultWriteTimeout = 10 * time.Second

// messageWriter kafka.Writer 的最小接口
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 奖励生命周期事件发布到 Kafka，按 merchant:reward 分区保证单个奖励有序
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher 创建发布器；未启用时返回 nil
func NewKafkaPublisher(cfg *config.KafkaConfig) (*KafkaPublisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, broker := range cfg.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			WriteTimeout: defaultWriteTimeout,
		},
		topic: topic,
	}, nil
}

// Publish 写入一条事件
func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

// Topic 目标主题
func (p *KafkaPublisher) Topic() string {
	if p == nil {
		return ""
	}
	return p.topic
}

// Close 关闭底层连接
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
