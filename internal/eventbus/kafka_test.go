package eventbus

import (
	"context"
	"testing"

	"github.com/shelfline-next/internal/config"

	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	messages []kafka.Message
	closed   bool
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaPublisherDisabledReturnsNil(t *testing.T) {
	publisher, err := NewKafkaPublisher(&config.KafkaConfig{Enabled: false})
	if err != nil || publisher != nil {
		t.Fatalf("expected nil publisher when disabled, got %v err=%v", publisher, err)
	}
	if err := publisher.Publish(context.Background(), "k", []byte("{}")); err != nil {
		t.Fatalf("nil publisher should be a no-op, got %v", err)
	}
	if _, err := NewKafkaPublisher(&config.KafkaConfig{Enabled: true, Brokers: []string{" "}, Topic: "t"}); err == nil {
		t.Fatalf("expected missing broker error")
	}
	if _, err := NewKafkaPublisher(&config.KafkaConfig{Enabled: true, Brokers: []string{"127.0.0.1:9092"}}); err == nil {
		t.Fatalf("expected missing topic error")
	}
}

func TestKafkaPublisherWritesKeyedMessages(t *testing.T) {
	writer := &captureWriter{}
	publisher := &KafkaPublisher{writer: writer, topic: "loyalty.reward_events"}

	if err := publisher.Publish(context.Background(), "merchant-a:7", []byte(`{"event":"reward.earned"}`)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(writer.messages) != 1 || string(writer.messages[0].Key) != "merchant-a:7" {
		t.Fatalf("unexpected messages: %+v", writer.messages)
	}
	if err := publisher.Close(); err != nil || !writer.closed {
		t.Fatalf("expected writer closed, err=%v", err)
	}
}
