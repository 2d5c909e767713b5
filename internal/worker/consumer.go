package worker

import (
	"context"

	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/provider"
	"github.com/shelfline-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer asynq 任务消费者；任务只用于唤醒投递，消息内容以 outbox 表为准
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{Container: c}
}

// Register 为每种 outbox 任务类型注册同一个处理函数
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		return
	}
	for _, taskType := range queue.TaskTypes() {
		mux.HandleFunc(taskType, c.handleOutboxTask)
	}
}

// handleOutboxTask 总是返回 nil：重试次数与失败状态记录在 outbox，asynq 不再重试
func (c *Consumer) handleOutboxTask(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || c.OutboxService == nil || task == nil {
		return nil
	}
	payload, err := queue.ParseOutboxTask(task)
	if err != nil || payload.MessageID == "" {
		logger.Warnw("worker_outbox_task_invalid", "task_type", task.Type(), "error", err)
		return nil
	}
	if err := c.OutboxService.ProcessByMessageID(ctx, payload.MessageID); err != nil {
		logger.Warnw("worker_outbox_task_failed",
			"task_type", task.Type(),
			"message_id", payload.MessageID,
			"error", err,
		)
	}
	return nil
}
