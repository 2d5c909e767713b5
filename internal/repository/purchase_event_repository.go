package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/shelfline-next/internal/models"

	"gorm.io/gorm"
)

// PurchaseEventRepository 购买事件数据访问接口
type PurchaseEventRepository interface {
	Create(event *models.PurchaseEvent) error
	GetByID(merchantID string, id uint) (*models.PurchaseEvent, error)
	GetByIdempotencyKey(merchantID, key string) (*models.PurchaseEvent, error)
	ListUnlockedActive(merchantID, customerID string, offerID uint, today time.Time) ([]models.PurchaseEvent, error)
	ListByReward(merchantID string, rewardID uint) ([]models.PurchaseEvent, error)
	ListByPair(merchantID, customerID string, offerID uint) ([]models.PurchaseEvent, error)
	ListByOrder(merchantID, orderID string) ([]models.PurchaseEvent, error)
	SumLockedQuantity(merchantID string, rewardID uint) (int, error)
	LockToReward(merchantID string, eventIDs []uint, rewardID uint) error
	UnlockReward(merchantID string, rewardID uint) (int64, error)
	FindLatestPurchase(merchantID, customerID, orderID, variationID string) (*models.PurchaseEvent, error)
	List(filter PurchaseEventListFilter) ([]models.PurchaseEvent, int64, error)
	WithTx(tx *gorm.DB) *GormPurchaseEventRepository
}

// GormPurchaseEventRepository GORM 实现
type GormPurchaseEventRepository struct {
	db *gorm.DB
}

// NewPurchaseEventRepository 创建购买事件仓储
func NewPurchaseEventRepository(db *gorm.DB) *GormPurchaseEventRepository {
	return &GormPurchaseEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPurchaseEventRepository) WithTx(tx *gorm.DB) *GormPurchaseEventRepository {
	if tx == nil {
		return r
	}
	return &GormPurchaseEventRepository{db: tx}
}

// Create 写入事件
func (r *GormPurchaseEventRepository) Create(event *models.PurchaseEvent) error {
	return r.db.Create(event).Error
}

// GetByID 获取事件
func (r *GormPurchaseEventRepository) GetByID(merchantID string, id uint) (*models.PurchaseEvent, error) {
	if id == 0 {
		return nil, nil
	}
	var event models.PurchaseEvent
	if err := scopeMerchant(r.db, merchantID).Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// GetByIdempotencyKey 按幂等键获取事件
func (r *GormPurchaseEventRepository) GetByIdempotencyKey(merchantID, key string) (*models.PurchaseEvent, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var event models.PurchaseEvent
	if err := scopeMerchant(r.db, merchantID).Where("idempotency_key = ?", key).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// ListUnlockedActive 查询未锁定且未过期的事件，按购买时间与写入顺序排序
func (r *GormPurchaseEventRepository) ListUnlockedActive(merchantID, customerID string, offerID uint, today time.Time) ([]models.PurchaseEvent, error) {
	events := make([]models.PurchaseEvent, 0)
	err := scopeMerchant(r.db, merchantID).
		Where("customer_id = ? AND offer_id = ?", customerID, offerID).
		Where("reward_id IS NULL").
		Where("window_end_date >= ?", today).
		Order("purchased_at ASC").
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListByReward 查询锁定到奖励的事件
func (r *GormPurchaseEventRepository) ListByReward(merchantID string, rewardID uint) ([]models.PurchaseEvent, error) {
	events := make([]models.PurchaseEvent, 0)
	if rewardID == 0 {
		return events, nil
	}
	if err := scopeMerchant(r.db, merchantID).
		Where("reward_id = ?", rewardID).
		Order("purchased_at ASC").
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListByPair 查询（客户，活动）下的全部事件
func (r *GormPurchaseEventRepository) ListByPair(merchantID, customerID string, offerID uint) ([]models.PurchaseEvent, error) {
	events := make([]models.PurchaseEvent, 0)
	if err := scopeMerchant(r.db, merchantID).
		Where("customer_id = ? AND offer_id = ?", customerID, offerID).
		Order("purchased_at ASC").
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListByOrder 查询订单产生的事件
func (r *GormPurchaseEventRepository) ListByOrder(merchantID, orderID string) ([]models.PurchaseEvent, error) {
	events := make([]models.PurchaseEvent, 0)
	if strings.TrimSpace(orderID) == "" {
		return events, nil
	}
	if err := scopeMerchant(r.db, merchantID).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// SumLockedQuantity 统计奖励锁定的数量（含冲正）
func (r *GormPurchaseEventRepository) SumLockedQuantity(merchantID string, rewardID uint) (int, error) {
	var total int64
	err := scopeMerchant(r.db.Model(&models.PurchaseEvent{}), merchantID).
		Where("reward_id = ?", rewardID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

// LockToReward 将事件锁定到奖励
func (r *GormPurchaseEventRepository) LockToReward(merchantID string, eventIDs []uint, rewardID uint) error {
	if len(eventIDs) == 0 || rewardID == 0 {
		return nil
	}
	return scopeMerchant(r.db.Model(&models.PurchaseEvent{}), merchantID).
		Where("id IN ?", eventIDs).
		Where("reward_id IS NULL").
		Update("reward_id", rewardID).Error
}

// UnlockReward 解除奖励锁定的全部事件
func (r *GormPurchaseEventRepository) UnlockReward(merchantID string, rewardID uint) (int64, error) {
	if rewardID == 0 {
		return 0, nil
	}
	result := scopeMerchant(r.db.Model(&models.PurchaseEvent{}), merchantID).
		Where("reward_id = ?", rewardID).
		Update("reward_id", nil)
	return result.RowsAffected, result.Error
}

// FindLatestPurchase 查询订单 + 规格最近一次原始购买事件（不含冲正与拆分事件）
func (r *GormPurchaseEventRepository) FindLatestPurchase(merchantID, customerID, orderID, variationID string) (*models.PurchaseEvent, error) {
	var event models.PurchaseEvent
	err := scopeMerchant(r.db, merchantID).
		Where("customer_id = ? AND order_id = ? AND variation_id = ?", customerID, orderID, variationID).
		Where("is_refund = ? AND split_from_id IS NULL AND quantity > 0", false).
		Order("id DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// List 分页查询事件
func (r *GormPurchaseEventRepository) List(filter PurchaseEventListFilter) ([]models.PurchaseEvent, int64, error) {
	query := scopeMerchant(r.db.Model(&models.PurchaseEvent{}), filter.MerchantID)
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.OfferID != 0 {
		query = query.Where("offer_id = ?", filter.OfferID)
	}
	if filter.OrderID != "" {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.RewardID != 0 {
		query = query.Where("reward_id = ?", filter.RewardID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	events := make([]models.PurchaseEvent, 0)
	if err := query.Order("purchased_at DESC").Order("id DESC").Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
