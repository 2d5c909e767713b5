package repository

import (
	"errors"
	"strings"

	"github.com/shelfline-next/internal/models"

	"gorm.io/gorm"
)

// RedemptionRepository 兑换记录数据访问接口
type RedemptionRepository interface {
	Create(redemption *models.Redemption) error
	GetByRewardID(merchantID string, rewardID uint) (*models.Redemption, error)
	GetLatestByOrderID(merchantID, orderID string) (*models.Redemption, error)
	WithTx(tx *gorm.DB) *GormRedemptionRepository
}

// GormRedemptionRepository GORM 实现
type GormRedemptionRepository struct {
	db *gorm.DB
}

// NewRedemptionRepository 创建兑换仓储
func NewRedemptionRepository(db *gorm.DB) *GormRedemptionRepository {
	return &GormRedemptionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRedemptionRepository) WithTx(tx *gorm.DB) *GormRedemptionRepository {
	if tx == nil {
		return r
	}
	return &GormRedemptionRepository{db: tx}
}

// Create 写入兑换记录
func (r *GormRedemptionRepository) Create(redemption *models.Redemption) error {
	return r.db.Create(redemption).Error
}

// GetByRewardID 按奖励获取兑换记录
func (r *GormRedemptionRepository) GetByRewardID(merchantID string, rewardID uint) (*models.Redemption, error) {
	if rewardID == 0 {
		return nil, nil
	}
	var redemption models.Redemption
	if err := scopeMerchant(r.db, merchantID).Where("reward_id = ?", rewardID).First(&redemption).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

// GetLatestByOrderID 按兑换订单获取最近记录
func (r *GormRedemptionRepository) GetLatestByOrderID(merchantID, orderID string) (*models.Redemption, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, nil
	}
	var redemption models.Redemption
	if err := scopeMerchant(r.db, merchantID).Where("order_id = ?", orderID).Order("id DESC").First(&redemption).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}
