package repository

import (
	"errors"
	"time"

	"github.com/shelfline-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerSummaryRepository 客户汇总数据访问接口
type CustomerSummaryRepository interface {
	EnsurePair(merchantID, customerID string, offerID uint) error
	GetForUpdate(merchantID, customerID string, offerID uint) (*models.CustomerSummary, error)
	Get(merchantID, customerID string, offerID uint) (*models.CustomerSummary, error)
	Save(summary *models.CustomerSummary) error
	ListByCustomer(merchantID, customerID string) ([]models.CustomerSummary, error)
	List(filter CustomerSummaryListFilter) ([]models.CustomerSummary, int64, error)
	ListPairs(merchantID string) ([]models.CustomerSummary, error)
	WithTx(tx *gorm.DB) *GormCustomerSummaryRepository
}

// GormCustomerSummaryRepository GORM 实现
type GormCustomerSummaryRepository struct {
	db *gorm.DB
}

// NewCustomerSummaryRepository 创建客户汇总仓储
func NewCustomerSummaryRepository(db *gorm.DB) *GormCustomerSummaryRepository {
	return &GormCustomerSummaryRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCustomerSummaryRepository) WithTx(tx *gorm.DB) *GormCustomerSummaryRepository {
	if tx == nil {
		return r
	}
	return &GormCustomerSummaryRepository{db: tx}
}

// EnsurePair 确保汇总行存在（冲突时忽略）
func (r *GormCustomerSummaryRepository) EnsurePair(merchantID, customerID string, offerID uint) error {
	now := time.Now().UTC()
	row := &models.CustomerSummary{
		MerchantID: merchantID,
		CustomerID: customerID,
		OfferID:    offerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "merchant_id"}, {Name: "customer_id"}, {Name: "offer_id"}},
		DoNothing: true,
	}).Create(row).Error
}

// GetForUpdate 加锁获取汇总行，作为（客户，活动）的串行化锁点
func (r *GormCustomerSummaryRepository) GetForUpdate(merchantID, customerID string, offerID uint) (*models.CustomerSummary, error) {
	var summary models.CustomerSummary
	err := forUpdate(scopeMerchant(r.db, merchantID)).
		Where("customer_id = ? AND offer_id = ?", customerID, offerID).
		First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

// Get 获取汇总行
func (r *GormCustomerSummaryRepository) Get(merchantID, customerID string, offerID uint) (*models.CustomerSummary, error) {
	var summary models.CustomerSummary
	err := scopeMerchant(r.db, merchantID).
		Where("customer_id = ? AND offer_id = ?", customerID, offerID).
		First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

// Save 保存汇总行
func (r *GormCustomerSummaryRepository) Save(summary *models.CustomerSummary) error {
	return r.db.Save(summary).Error
}

// ListByCustomer 查询客户全部活动的汇总
func (r *GormCustomerSummaryRepository) ListByCustomer(merchantID, customerID string) ([]models.CustomerSummary, error) {
	rows := make([]models.CustomerSummary, 0)
	if err := scopeMerchant(r.db, merchantID).
		Where("customer_id = ?", customerID).
		Order("offer_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List 分页查询汇总
func (r *GormCustomerSummaryRepository) List(filter CustomerSummaryListFilter) ([]models.CustomerSummary, int64, error) {
	query := scopeMerchant(r.db.Model(&models.CustomerSummary{}), filter.MerchantID)
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.OfferID != 0 {
		query = query.Where("offer_id = ?", filter.OfferID)
	}
	if filter.HasEarnedReward != nil {
		query = query.Where("has_earned_reward = ?", *filter.HasEarnedReward)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	rows := make([]models.CustomerSummary, 0)
	if err := query.Order("updated_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListPairs 查询商户下全部（客户，活动）组合
func (r *GormCustomerSummaryRepository) ListPairs(merchantID string) ([]models.CustomerSummary, error) {
	rows := make([]models.CustomerSummary, 0)
	if err := scopeMerchant(r.db, merchantID).
		Select("id", "merchant_id", "customer_id", "offer_id").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
