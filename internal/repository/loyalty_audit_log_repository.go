package repository

import (
	"github.com/shelfline-next/internal/models"

	"gorm.io/gorm"
)

// LoyaltyAuditLogRepository 审计日志数据访问接口
type LoyaltyAuditLogRepository interface {
	Create(log *models.LoyaltyAuditLog) error
	List(filter AuditLogListFilter) ([]models.LoyaltyAuditLog, int64, error)
	WithTx(tx *gorm.DB) *GormLoyaltyAuditLogRepository
}

// GormLoyaltyAuditLogRepository GORM 实现
type GormLoyaltyAuditLogRepository struct {
	db *gorm.DB
}

// NewLoyaltyAuditLogRepository 创建审计日志仓库
func NewLoyaltyAuditLogRepository(db *gorm.DB) *GormLoyaltyAuditLogRepository {
	return &GormLoyaltyAuditLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLoyaltyAuditLogRepository) WithTx(tx *gorm.DB) *GormLoyaltyAuditLogRepository {
	if tx == nil {
		return r
	}
	return &GormLoyaltyAuditLogRepository{db: tx}
}

// Create 写入审计日志
func (r *GormLoyaltyAuditLogRepository) Create(log *models.LoyaltyAuditLog) error {
	if log == nil {
		return nil
	}
	return r.db.Create(log).Error
}

// List 查询审计日志
func (r *GormLoyaltyAuditLogRepository) List(filter AuditLogListFilter) ([]models.LoyaltyAuditLog, int64, error) {
	query := scopeMerchant(r.db.Model(&models.LoyaltyAuditLog{}), filter.MerchantID)
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.OfferID != 0 {
		query = query.Where("offer_id = ?", filter.OfferID)
	}
	if filter.RewardID != 0 {
		query = query.Where("reward_id = ?", filter.RewardID)
	}
	if filter.OrderID != "" {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	logs := make([]models.LoyaltyAuditLog, 0)
	if err := query.Order("id DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
