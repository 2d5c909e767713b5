package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultOutboxMaxAttempts = 8
	defaultOutboxLease       = 5 * time.Minute
	outboxBaseBackoff        = 5 * time.Second
	outboxMaxBackoff         = 30 * time.Minute
	outboxMaxErrorLength     = 1000
)

// ErrOutboxHandlerMissing 未注册处理函数
var ErrOutboxHandlerMissing = errors.New("outbox handler missing")

// OutboxHandler 处理单条投递记录
type OutboxHandler func(ctx context.Context, message *models.OutboxMessage) error

// OutboxService 事务外副作用的登记与投递
type OutboxService struct {
	repo        repository.OutboxRepository
	maxAttempts int
	lease       time.Duration
	clock       Clock

	mu       sync.RWMutex
	handlers map[string]OutboxHandler
}

// NewOutboxService 创建投递服务
func NewOutboxService(repo repository.OutboxRepository, maxAttempts int) *OutboxService {
	if maxAttempts <= 0 {
		maxAttempts = defaultOutboxMaxAttempts
	}
	return &OutboxService{
		repo:        repo,
		maxAttempts: maxAttempts,
		lease:       defaultOutboxLease,
		handlers:    make(map[string]OutboxHandler),
	}
}

// Register 按消息类型注册处理函数
func (s *OutboxService) Register(kind string, handler OutboxHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = handler
}

func (s *OutboxService) handler(kind string) (OutboxHandler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	handler, ok := s.handlers[kind]
	return handler, ok
}

// EnqueueTx 在业务事务内登记一条待投递消息
func (s *OutboxService) EnqueueTx(tx *gorm.DB, merchantID, kind string, rewardID uint, payload models.JSON) error {
	now := s.clock.now()
	message := &models.OutboxMessage{
		MessageID:     uuid.NewString(),
		MerchantID:    merchantID,
		Kind:          kind,
		RewardID:      rewardID,
		PayloadJSON:   payload,
		Status:        constants.OutboxStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.WithTx(tx).Create(message); err != nil {
		return fmt.Errorf("enqueue outbox %s: %w", kind, err)
	}
	return nil
}

// ClaimDue 占用到期消息，占用期间其他中继不会重复处理
func (s *OutboxService) ClaimDue(limit int) ([]models.OutboxMessage, error) {
	now := s.clock.now()
	due, err := s.repo.ListDue(now, limit)
	if err != nil {
		return nil, err
	}
	claimed := make([]models.OutboxMessage, 0, len(due))
	for _, message := range due {
		ok, err := s.repo.Claim(message.ID, now, now.Add(s.lease))
		if err != nil {
			logger.Warnw("outbox_claim_failed", "message_id", message.MessageID, "error", err)
			continue
		}
		if ok {
			claimed = append(claimed, message)
		}
	}
	return claimed, nil
}

// ProcessByMessageID 按消息ID处理（供异步任务调用）
func (s *OutboxService) ProcessByMessageID(ctx context.Context, messageID string) error {
	message, err := s.repo.GetByMessageID(messageID)
	if err != nil {
		return err
	}
	if message == nil || message.Status != constants.OutboxStatusPending {
		return nil
	}
	return s.Process(ctx, message)
}

// Process 执行处理函数并记录结果：成功标记已投递，失败按退避重试，超过上限标记失败
func (s *OutboxService) Process(ctx context.Context, message *models.OutboxMessage) error {
	if message == nil {
		return nil
	}
	handler, ok := s.handler(message.Kind)
	var handleErr error
	if !ok {
		handleErr = fmt.Errorf("%w: %s", ErrOutboxHandlerMissing, message.Kind)
	} else {
		handleErr = handler(ctx, message)
	}

	now := s.clock.now()
	if handleErr == nil {
		return s.repo.MarkDispatched(message.ID, now)
	}

	attempts := message.Attempts + 1
	lastError := truncateError(handleErr)
	if attempts >= s.maxAttempts {
		logger.Errorw("outbox_message_failed",
			"message_id", message.MessageID,
			"merchant_id", message.MerchantID,
			"kind", message.Kind,
			"reward_id", message.RewardID,
			"attempts", attempts,
			"error", handleErr,
		)
		if err := s.repo.MarkFailed(message.ID, attempts, lastError); err != nil {
			return err
		}
		return handleErr
	}

	next := now.Add(outboxBackoff(attempts))
	logger.Warnw("outbox_message_retry_scheduled",
		"message_id", message.MessageID,
		"merchant_id", message.MerchantID,
		"kind", message.Kind,
		"reward_id", message.RewardID,
		"attempts", attempts,
		"next_attempt_at", next,
		"error", handleErr,
	)
	if err := s.repo.MarkRetry(message.ID, attempts, next, lastError); err != nil {
		return err
	}
	return handleErr
}

// RetryFailed 将失败消息重新置为待投递
func (s *OutboxService) RetryFailed(merchantID string) (int64, error) {
	return s.repo.ResetFailed(merchantID, s.clock.now())
}

// List 查询投递记录
func (s *OutboxService) List(filter repository.OutboxListFilter) ([]models.OutboxMessage, int64, error) {
	if strings.TrimSpace(filter.MerchantID) == "" {
		return nil, 0, ErrMerchantRequired
	}
	return s.repo.List(filter)
}

func outboxBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := outboxBaseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= outboxMaxBackoff {
			return outboxMaxBackoff
		}
	}
	return delay
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > outboxMaxErrorLength {
		return msg[:outboxMaxErrorLength]
	}
	return msg
}
