package repository

import (
	"errors"
	"strings"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/models"

	"gorm.io/gorm"
)

// RewardRepository 奖励数据访问接口
type RewardRepository interface {
	Create(reward *models.Reward) error
	Update(reward *models.Reward) error
	GetByID(merchantID string, id uint) (*models.Reward, error)
	GetByIDForUpdate(merchantID string, id uint) (*models.Reward, error)
	GetInProgressForUpdate(merchantID, customerID string, offerID uint) (*models.Reward, error)
	ListByPair(merchantID, customerID string, offerID uint) ([]models.Reward, error)
	ListByExternalDiscountRefs(merchantID string, refs []string) ([]models.Reward, error)
	ListEarnedWithoutDiscount(merchantID string, limit int) ([]models.Reward, error)
	UpdateDiscountRefs(merchantID string, id uint, fields map[string]interface{}) error
	List(filter RewardListFilter) ([]models.Reward, int64, error)
	WithTx(tx *gorm.DB) *GormRewardRepository
}

// GormRewardRepository GORM 实现
type GormRewardRepository struct {
	db *gorm.DB
}

// NewRewardRepository 创建奖励仓储
func NewRewardRepository(db *gorm.DB) *GormRewardRepository {
	return &GormRewardRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRewardRepository) WithTx(tx *gorm.DB) *GormRewardRepository {
	if tx == nil {
		return r
	}
	return &GormRewardRepository{db: tx}
}

// Create 创建奖励
func (r *GormRewardRepository) Create(reward *models.Reward) error {
	return r.db.Create(reward).Error
}

// Update 更新奖励
func (r *GormRewardRepository) Update(reward *models.Reward) error {
	return r.db.Omit("Offer").Save(reward).Error
}

// GetByID 获取奖励
func (r *GormRewardRepository) GetByID(merchantID string, id uint) (*models.Reward, error) {
	if id == 0 {
		return nil, nil
	}
	var reward models.Reward
	if err := scopeMerchant(r.db, merchantID).Preload("Offer").Where("id = ?", id).First(&reward).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reward, nil
}

// GetByIDForUpdate 加锁获取奖励
func (r *GormRewardRepository) GetByIDForUpdate(merchantID string, id uint) (*models.Reward, error) {
	if id == 0 {
		return nil, nil
	}
	var reward models.Reward
	if err := forUpdate(scopeMerchant(r.db, merchantID)).Where("id = ?", id).First(&reward).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reward, nil
}

// GetInProgressForUpdate 加锁获取（客户，活动）进行中的奖励
func (r *GormRewardRepository) GetInProgressForUpdate(merchantID, customerID string, offerID uint) (*models.Reward, error) {
	var reward models.Reward
	err := forUpdate(scopeMerchant(r.db, merchantID)).
		Where("customer_id = ? AND offer_id = ? AND status = ?", customerID, offerID, constants.RewardStatusInProgress).
		Order("id DESC").
		First(&reward).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reward, nil
}

// ListByPair 查询（客户，活动）全部奖励
func (r *GormRewardRepository) ListByPair(merchantID, customerID string, offerID uint) ([]models.Reward, error) {
	rewards := make([]models.Reward, 0)
	if err := scopeMerchant(r.db, merchantID).
		Where("customer_id = ? AND offer_id = ?", customerID, offerID).
		Order("id ASC").
		Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

// ListByExternalDiscountRefs 按收银平台折扣引用查询奖励
func (r *GormRewardRepository) ListByExternalDiscountRefs(merchantID string, refs []string) ([]models.Reward, error) {
	cleaned := make([]string, 0, len(refs))
	for _, ref := range refs {
		if trimmed := strings.TrimSpace(ref); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	rewards := make([]models.Reward, 0)
	if len(cleaned) == 0 {
		return rewards, nil
	}
	if err := scopeMerchant(r.db, merchantID).
		Where("external_discount_reference IN ?", cleaned).
		Order("id ASC").
		Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

// ListEarnedWithoutDiscount 查询已达成但折扣尚未发放完成的奖励
func (r *GormRewardRepository) ListEarnedWithoutDiscount(merchantID string, limit int) ([]models.Reward, error) {
	query := scopeMerchant(r.db, merchantID).
		Where("status = ?", constants.RewardStatusEarned).
		Where("discount_issued_at IS NULL").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	rewards := make([]models.Reward, 0)
	if err := query.Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

// UpdateDiscountRefs 回填折扣引用字段，不触碰奖励状态
func (r *GormRewardRepository) UpdateDiscountRefs(merchantID string, id uint, fields map[string]interface{}) error {
	if id == 0 || len(fields) == 0 {
		return nil
	}
	return scopeMerchant(r.db.Model(&models.Reward{}), merchantID).
		Where("id = ?", id).
		Updates(fields).Error
}

// List 分页查询奖励
func (r *GormRewardRepository) List(filter RewardListFilter) ([]models.Reward, int64, error) {
	query := scopeMerchant(r.db.Model(&models.Reward{}), filter.MerchantID)
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.OfferID != 0 {
		query = query.Where("offer_id = ?", filter.OfferID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	rewards := make([]models.Reward, 0)
	if err := query.Preload("Offer").Order("id DESC").Find(&rewards).Error; err != nil {
		return nil, 0, err
	}
	return rewards, total, nil
}
