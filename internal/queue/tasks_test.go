package queue

import (
	"testing"

	"github.com/shelfline-next/internal/config"
	"github.com/shelfline-next/internal/constants"
)

func TestNewOutboxTaskMapsKindToTaskType(t *testing.T) {
	task, err := NewOutboxTask(constants.OutboxKindDiscountIssue, OutboxTaskPayload{MessageID: "msg-1"})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskRewardDiscountIssue {
		t.Fatalf("unexpected task type %s", task.Type())
	}
	payload, err := ParseOutboxTask(task)
	if err != nil || payload.MessageID != "msg-1" {
		t.Fatalf("unexpected payload %+v err=%v", payload, err)
	}
	if _, err := NewOutboxTask("unknown", OutboxTaskPayload{MessageID: "msg-1"}); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if err := client.EnqueueOutbox(constants.OutboxKindRewardEvent, "msg-1"); err != nil {
		t.Fatalf("expected disabled enqueue to be a no-op, got %v", err)
	}
	if queueForKind(constants.OutboxKindDiscountCleanup, DefaultQueue) != CriticalQueue {
		t.Fatalf("expected discount tasks on critical queue")
	}
}

func TestBuildServerConfig(t *testing.T) {
	opt, serverCfg := BuildServerConfig(&config.QueueConfig{Host: "redis", Port: 6380, DB: 2})
	if opt.Addr != "redis:6380" || opt.DB != 2 {
		t.Fatalf("unexpected redis opt %+v", opt)
	}
	if serverCfg.Concurrency != defaultConcurrency || serverCfg.Queues[CriticalQueue] != 2 || serverCfg.Queues[DefaultQueue] != 1 {
		t.Fatalf("unexpected default server config %+v", serverCfg)
	}

	opt, serverCfg = BuildServerConfig(&config.QueueConfig{Concurrency: 3, Queues: map[string]int{"custom": 1}})
	if opt.Addr != "127.0.0.1:6379" || serverCfg.Concurrency != 3 || serverCfg.Queues["custom"] != 1 {
		t.Fatalf("unexpected configured server config %+v %+v", opt, serverCfg)
	}
}

func TestTaskTypesCoverEveryKind(t *testing.T) {
	types := TaskTypes()
	if len(types) != 3 {
		t.Fatalf("expected three task types, got %v", types)
	}
	for _, kind := range []string{constants.OutboxKindDiscountIssue, constants.OutboxKindDiscountCleanup, constants.OutboxKindRewardEvent} {
		taskType, ok := TaskTypeForKind(kind)
		if !ok {
			t.Fatalf("kind %s has no task type", kind)
		}
		found := false
		for _, item := range types {
			found = found || item == taskType
		}
		if !found {
			t.Fatalf("task type %s missing from %v", taskType, types)
		}
	}
}
