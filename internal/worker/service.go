package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shelfline-next/internal/config"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Service outbox 中继 + asynq 消费端
// 队列未启用时不创建消费端，中继就地处理到期消息
type Service struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	relay  *OutboxRelay

	relayDone sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewService 创建 worker 服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if consumer == nil || consumer.Container == nil {
		return nil, errors.New("consumer is nil")
	}
	svc := &Service{
		relay: NewOutboxRelay(
			consumer.OutboxService,
			consumer.QueueClient,
			time.Duration(cfg.Loyalty.OutboxRelayIntervalMS)*time.Millisecond,
			cfg.Loyalty.OutboxBatchSize,
		),
		stop: make(chan struct{}),
	}
	if cfg.Queue.Enabled {
		opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
		svc.server = asynq.NewServer(opt, serverCfg)
		svc.mux = asynq.NewServeMux()
		consumer.Register(svc.mux)
	}
	return svc, nil
}

// Name 服务名称
func (s *Service) Name() string {
	return "worker"
}

// Start 启动中继与消费端，阻塞到 ctx 结束或 Stop
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.relay == nil {
		return errors.New("worker not initialized")
	}
	if s.server != nil {
		if err := s.server.Start(s.mux); err != nil {
			return fmt.Errorf("start asynq server: %w", err)
		}
	}

	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.relayDone.Add(1)
	go func() {
		defer s.relayDone.Done()
		s.relay.Run(relayCtx)
	}()

	select {
	case <-ctx.Done():
	case <-s.stop:
	}
	return nil
}

// Stop 等待当前一批中继处理完成后关闭消费端，超时返回 ctx 错误
func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.stopOnce.Do(func() { close(s.stop) })

	drained := make(chan struct{})
	go func() {
		s.relayDone.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("outbox relay drain: %w", ctx.Err())
		logger.Warnw("worker_relay_drain_timeout", "error", ctx.Err())
	}
	if s.server != nil {
		s.server.Shutdown()
	}
	return err
}
