package repository

import (
	"errors"
	"strings"

	"github.com/shelfline-next/internal/models"

	"gorm.io/gorm"
)

// OfferRepository 活动与参与规格数据访问接口
type OfferRepository interface {
	Create(offer *models.LoyaltyOffer) error
	Update(offer *models.LoyaltyOffer) error
	GetByID(merchantID string, id uint) (*models.LoyaltyOffer, error)
	List(filter OfferListFilter) ([]models.LoyaltyOffer, int64, error)
	GetActiveOfferForVariation(merchantID, variationID string) (*models.LoyaltyOffer, error)
	GetActiveVariationLink(merchantID, variationID string) (*models.QualifyingVariation, error)
	GetVariationLink(merchantID string, offerID uint, variationID string) (*models.QualifyingVariation, error)
	CreateVariation(link *models.QualifyingVariation) error
	UpdateVariation(link *models.QualifyingVariation) error
	ListVariations(merchantID string, offerID uint, onlyActive bool) ([]models.QualifyingVariation, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormOfferRepository
}

// GormOfferRepository GORM 实现
type GormOfferRepository struct {
	db *gorm.DB
}

// NewOfferRepository 创建活动仓储
func NewOfferRepository(db *gorm.DB) *GormOfferRepository {
	return &GormOfferRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOfferRepository) WithTx(tx *gorm.DB) *GormOfferRepository {
	if tx == nil {
		return r
	}
	return &GormOfferRepository{db: tx}
}

// Transaction 执行事务
func (r *GormOfferRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// Create 创建活动
func (r *GormOfferRepository) Create(offer *models.LoyaltyOffer) error {
	return r.db.Create(offer).Error
}

// Update 更新活动
func (r *GormOfferRepository) Update(offer *models.LoyaltyOffer) error {
	return r.db.Save(offer).Error
}

// GetByID 获取活动
func (r *GormOfferRepository) GetByID(merchantID string, id uint) (*models.LoyaltyOffer, error) {
	if id == 0 {
		return nil, nil
	}
	var offer models.LoyaltyOffer
	if err := scopeMerchant(r.db, merchantID).Where("id = ?", id).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// List 分页查询活动
func (r *GormOfferRepository) List(filter OfferListFilter) ([]models.LoyaltyOffer, int64, error) {
	query := scopeMerchant(r.db.Model(&models.LoyaltyOffer{}), filter.MerchantID)
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	query = searchColumns(query, filter.Search, "name", "brand_name")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	offers := make([]models.LoyaltyOffer, 0)
	if err := query.Order("id DESC").Find(&offers).Error; err != nil {
		return nil, 0, err
	}
	return offers, total, nil
}

// GetActiveOfferForVariation 查询规格当前关联的启用活动
func (r *GormOfferRepository) GetActiveOfferForVariation(merchantID, variationID string) (*models.LoyaltyOffer, error) {
	variationID = strings.TrimSpace(variationID)
	if variationID == "" {
		return nil, nil
	}
	var offer models.LoyaltyOffer
	err := r.db.Model(&models.LoyaltyOffer{}).
		Joins("JOIN loyalty_qualifying_variations v ON v.offer_id = loyalty_offers.id AND v.merchant_id = loyalty_offers.merchant_id").
		Where("loyalty_offers.merchant_id = ?", strings.TrimSpace(merchantID)).
		Where("loyalty_offers.is_active = ?", true).
		Where("v.variation_id = ? AND v.is_active = ?", variationID, true).
		Order("loyalty_offers.id ASC").
		First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// GetActiveVariationLink 查询规格的启用关联（用于冲突校验）
func (r *GormOfferRepository) GetActiveVariationLink(merchantID, variationID string) (*models.QualifyingVariation, error) {
	var link models.QualifyingVariation
	err := r.db.Model(&models.QualifyingVariation{}).
		Preload("Offer").
		Joins("JOIN loyalty_offers o ON o.id = loyalty_qualifying_variations.offer_id AND o.is_active = ?", true).
		Where("loyalty_qualifying_variations.merchant_id = ?", strings.TrimSpace(merchantID)).
		Where("loyalty_qualifying_variations.variation_id = ?", strings.TrimSpace(variationID)).
		Where("loyalty_qualifying_variations.is_active = ?", true).
		Order("loyalty_qualifying_variations.id ASC").
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// GetVariationLink 查询指定活动下的规格关联（含已停用）
func (r *GormOfferRepository) GetVariationLink(merchantID string, offerID uint, variationID string) (*models.QualifyingVariation, error) {
	var link models.QualifyingVariation
	err := scopeMerchant(r.db, merchantID).
		Where("offer_id = ? AND variation_id = ?", offerID, strings.TrimSpace(variationID)).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// CreateVariation 创建规格关联
func (r *GormOfferRepository) CreateVariation(link *models.QualifyingVariation) error {
	return r.db.Create(link).Error
}

// UpdateVariation 更新规格关联
func (r *GormOfferRepository) UpdateVariation(link *models.QualifyingVariation) error {
	return r.db.Save(link).Error
}

// ListVariations 查询活动下的规格
func (r *GormOfferRepository) ListVariations(merchantID string, offerID uint, onlyActive bool) ([]models.QualifyingVariation, error) {
	query := scopeMerchant(r.db, merchantID).Where("offer_id = ?", offerID)
	if onlyActive {
		query = query.Where("is_active = ?", true)
	}
	links := make([]models.QualifyingVariation, 0)
	if err := query.Order("id ASC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}
