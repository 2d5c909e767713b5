package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/models"

	"gorm.io/gorm"
)

// OutboxRepository 副作用投递记录数据访问接口
type OutboxRepository interface {
	Create(message *models.OutboxMessage) error
	GetByMessageID(messageID string) (*models.OutboxMessage, error)
	ListDue(now time.Time, limit int) ([]models.OutboxMessage, error)
	Claim(id uint, dueBefore time.Time, leaseUntil time.Time) (bool, error)
	MarkDispatched(id uint, at time.Time) error
	MarkRetry(id uint, attempts int, nextAttemptAt time.Time, lastError string) error
	MarkFailed(id uint, attempts int, lastError string) error
	ResetFailed(merchantID string, now time.Time) (int64, error)
	List(filter OutboxListFilter) ([]models.OutboxMessage, int64, error)
	WithTx(tx *gorm.DB) *GormOutboxRepository
}

// GormOutboxRepository GORM 实现
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository 创建投递记录仓储
func NewOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOutboxRepository) WithTx(tx *gorm.DB) *GormOutboxRepository {
	if tx == nil {
		return r
	}
	return &GormOutboxRepository{db: tx}
}

// Create 写入投递记录
func (r *GormOutboxRepository) Create(message *models.OutboxMessage) error {
	return r.db.Create(message).Error
}

// GetByMessageID 按消息ID获取记录
func (r *GormOutboxRepository) GetByMessageID(messageID string) (*models.OutboxMessage, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, nil
	}
	var message models.OutboxMessage
	if err := r.db.Where("message_id = ?", messageID).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// ListDue 查询到期待投递的记录（跨商户，由中继统一处理）
func (r *GormOutboxRepository) ListDue(now time.Time, limit int) ([]models.OutboxMessage, error) {
	query := r.db.Where("status = ? AND next_attempt_at <= ?", constants.OutboxStatusPending, now).
		Order("next_attempt_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	messages := make([]models.OutboxMessage, 0)
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// Claim 通过推后 next_attempt_at 占用记录，返回是否占用成功
func (r *GormOutboxRepository) Claim(id uint, dueBefore time.Time, leaseUntil time.Time) (bool, error) {
	result := r.db.Model(&models.OutboxMessage{}).
		Where("id = ? AND status = ? AND next_attempt_at <= ?", id, constants.OutboxStatusPending, dueBefore).
		Updates(map[string]interface{}{
			"next_attempt_at": leaseUntil,
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkDispatched 标记投递成功
func (r *GormOutboxRepository) MarkDispatched(id uint, at time.Time) error {
	return r.db.Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        constants.OutboxStatusDispatched,
			"dispatched_at": at,
			"last_error":    "",
			"updated_at":    at,
		}).Error
}

// MarkRetry 记录失败并安排重试
func (r *GormOutboxRepository) MarkRetry(id uint, attempts int, nextAttemptAt time.Time, lastError string) error {
	return r.db.Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"next_attempt_at": nextAttemptAt,
			"last_error":      lastError,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// MarkFailed 超过最大次数后标记失败，等待人工对账
func (r *GormOutboxRepository) MarkFailed(id uint, attempts int, lastError string) error {
	return r.db.Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     constants.OutboxStatusFailed,
			"attempts":   attempts,
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ResetFailed 将失败记录重新置为待投递，merchantID 为空时作用于全部商户
func (r *GormOutboxRepository) ResetFailed(merchantID string, now time.Time) (int64, error) {
	query := r.db.Model(&models.OutboxMessage{}).Where("status = ?", constants.OutboxStatusFailed)
	if strings.TrimSpace(merchantID) != "" {
		query = scopeMerchant(query, merchantID)
	}
	result := query.Updates(map[string]interface{}{
		"status":          constants.OutboxStatusPending,
		"attempts":        0,
		"next_attempt_at": now,
		"updated_at":      now,
	})
	return result.RowsAffected, result.Error
}

// List 分页查询投递记录
func (r *GormOutboxRepository) List(filter OutboxListFilter) ([]models.OutboxMessage, int64, error) {
	query := scopeMerchant(r.db.Model(&models.OutboxMessage{}), filter.MerchantID)
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	messages := make([]models.OutboxMessage, 0)
	if err := query.Order("id DESC").Find(&messages).Error; err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}
