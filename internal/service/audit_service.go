package service

import (
	"strings"
	"time"

	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/repository"

	"gorm.io/gorm"
)

const auditSavePoint = "loyalty_audit"

// AuditEntry 审计日志条目
type AuditEntry struct {
	MerchantID string
	EventType  string
	CustomerID string
	OfferID    uint
	RewardID   uint
	EventID    uint
	OrderID    string
	Quantity   int
	ActorID    string
	Detail     models.JSON
}

// AuditService 常客奖励审计日志
type AuditService struct {
	repo repository.LoyaltyAuditLogRepository
}

// NewAuditService 创建审计服务
func NewAuditService(repo repository.LoyaltyAuditLogRepository) *AuditService {
	return &AuditService{repo: repo}
}

// RecordTx 在调用方事务内追加审计日志；写入失败回滚到保存点并只记录日志
func (s *AuditService) RecordTx(tx *gorm.DB, entry AuditEntry) {
	if s == nil || tx == nil {
		return
	}
	row := &models.LoyaltyAuditLog{
		MerchantID: strings.TrimSpace(entry.MerchantID),
		EventType:  entry.EventType,
		CustomerID: entry.CustomerID,
		OrderID:    entry.OrderID,
		Quantity:   entry.Quantity,
		ActorID:    entry.ActorID,
		DetailJSON: entry.Detail,
		CreatedAt:  time.Now().UTC(),
	}
	if entry.OfferID != 0 {
		row.OfferID = &entry.OfferID
	}
	if entry.RewardID != 0 {
		row.RewardID = &entry.RewardID
	}
	if entry.EventID != 0 {
		row.EventID = &entry.EventID
	}

	if err := tx.SavePoint(auditSavePoint).Error; err != nil {
		logger.Warnw("loyalty_audit_savepoint_failed", "event_type", entry.EventType, "error", err)
		return
	}
	if err := s.repo.WithTx(tx).Create(row); err != nil {
		tx.RollbackTo(auditSavePoint)
		logger.Warnw("loyalty_audit_record_failed",
			"merchant_id", entry.MerchantID,
			"event_type", entry.EventType,
			"reward_id", entry.RewardID,
			"error", err,
		)
	}
}

// List 查询审计日志
func (s *AuditService) List(filter repository.AuditLogListFilter) ([]models.LoyaltyAuditLog, int64, error) {
	if strings.TrimSpace(filter.MerchantID) == "" {
		return nil, 0, ErrMerchantRequired
	}
	return s.repo.List(filter)
}
