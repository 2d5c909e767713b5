package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/repository"

	"gorm.io/gorm"
)

// LoyaltyService 常客奖励核心：累计、冲正、兑换与客户汇总
type LoyaltyService struct {
	db             *gorm.DB
	offers         OfferLookup
	offerRepo      repository.OfferRepository
	eventRepo      repository.PurchaseEventRepository
	rewardRepo     repository.RewardRepository
	redemptionRepo repository.RedemptionRepository
	summaryRepo    repository.CustomerSummaryRepository
	audit          *AuditService
	outbox         *OutboxService
	clock          Clock
}

// NewLoyaltyService 创建常客奖励服务
func NewLoyaltyService(
	db *gorm.DB,
	offers OfferLookup,
	offerRepo repository.OfferRepository,
	eventRepo repository.PurchaseEventRepository,
	rewardRepo repository.RewardRepository,
	redemptionRepo repository.RedemptionRepository,
	summaryRepo repository.CustomerSummaryRepository,
	audit *AuditService,
	outbox *OutboxService,
) *LoyaltyService {
	return &LoyaltyService{
		db:             db,
		offers:         offers,
		offerRepo:      offerRepo,
		eventRepo:      eventRepo,
		rewardRepo:     rewardRepo,
		redemptionRepo: redemptionRepo,
		summaryRepo:    summaryRepo,
		audit:          audit,
		outbox:         outbox,
	}
}

// lockPair 锁定（客户，活动）汇总行，首次累计也在此串行化
func (s *LoyaltyService) lockPair(tx *gorm.DB, merchantID, customerID string, offerID uint) error {
	summaryRepo := s.summaryRepo.WithTx(tx)
	if err := summaryRepo.EnsurePair(merchantID, customerID, offerID); err != nil {
		return fmt.Errorf("ensure loyalty pair: %w", err)
	}
	row, err := summaryRepo.GetForUpdate(merchantID, customerID, offerID)
	if err != nil {
		return fmt.Errorf("lock loyalty pair: %w", err)
	}
	if row == nil {
		return fmt.Errorf("lock loyalty pair: summary row missing for customer %s offer %d", customerID, offerID)
	}
	return nil
}

// loadOffer 按ID读取活动（含已停用），历史记录仍需其规则
func (s *LoyaltyService) loadOffer(tx *gorm.DB, merchantID string, offerID uint) (*models.LoyaltyOffer, error) {
	offer, err := s.offerRepo.WithTx(tx).GetByID(merchantID, offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}
	return offer, nil
}

// isUniqueViolation 识别幂等键唯一约束冲突（postgres 与 sqlite）
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
