package worker

import (
	"context"
	"time"

	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/queue"
	"github.com/shelfline-next/internal/service"
)

const (
	defaultRelayInterval = 2 * time.Second
	defaultRelayBatch    = 50
)

// OutboxRelay 周期性占用到期的 outbox 消息；队列启用时推送任务，否则就地处理
type OutboxRelay struct {
	outbox   *service.OutboxService
	queue    *queue.Client
	interval time.Duration
	batch    int
}

// NewOutboxRelay 创建中继
func NewOutboxRelay(outbox *service.OutboxService, queueClient *queue.Client, interval time.Duration, batch int) *OutboxRelay {
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	if batch <= 0 {
		batch = defaultRelayBatch
	}
	return &OutboxRelay{
		outbox:   outbox,
		queue:    queueClient,
		interval: interval,
		batch:    batch,
	}
}

// Run 阻塞运行直到 ctx 结束
func (r *OutboxRelay) Run(ctx context.Context) {
	if r == nil || r.outbox == nil {
		return
	}
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce 处理一批到期消息，返回本批占用数量
func (r *OutboxRelay) RunOnce(ctx context.Context) int {
	claimed, err := r.outbox.ClaimDue(r.batch)
	if err != nil {
		logger.Warnw("worker_outbox_claim_failed", "error", err)
		return 0
	}
	for i := range claimed {
		message := &claimed[i]
		if r.queue.Enabled() {
			// 入队失败时消息保持 pending，租约到期后会被再次占用
			if err := r.queue.EnqueueOutbox(message.Kind, message.MessageID); err != nil {
				logger.Warnw("worker_outbox_enqueue_failed",
					"message_id", message.MessageID,
					"kind", message.Kind,
					"error", err,
				)
			}
			continue
		}
		if err := r.outbox.Process(ctx, message); err != nil {
			logger.Debugw("worker_outbox_inline_process_failed",
				"message_id", message.MessageID,
				"kind", message.Kind,
				"error", err,
			)
		}
	}
	return len(claimed)
}
