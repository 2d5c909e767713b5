package service

import (
	"fmt"
	"strings"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/repository"

	"gorm.io/gorm"
)

// rebuildSummaryTx 由事件与奖励整体重建客户汇总
func (s *LoyaltyService) rebuildSummaryTx(tx *gorm.DB, offer *models.LoyaltyOffer, customerID string) (*models.CustomerSummary, error) {
	merchantID := offer.MerchantID
	summaryRepo := s.summaryRepo.WithTx(tx)
	now := s.clock.now()

	row, err := summaryRepo.Get(merchantID, customerID, offer.ID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = &models.CustomerSummary{
			MerchantID: merchantID,
			CustomerID: customerID,
			OfferID:    offer.ID,
			CreatedAt:  now,
		}
	}

	events, err := s.eventRepo.WithTx(tx).ListByPair(merchantID, customerID, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("list pair events: %w", err)
	}
	rewards, err := s.rewardRepo.WithTx(tx).ListByPair(merchantID, customerID, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("list pair rewards: %w", err)
	}

	today := startOfDay(now)
	current := 0
	purchased, refunded := 0, 0
	var spend int64
	var lastPurchase *models.PurchaseEvent
	for i := range events {
		event := &events[i]
		if event.RewardID == nil && !event.WindowEndDate.Before(today) {
			current += event.Quantity
		}
		if event.SplitFromID != nil {
			continue
		}
		spend += int64(event.Quantity) * event.UnitPriceCents
		if event.IsRefund {
			refunded -= event.Quantity
			continue
		}
		purchased += event.Quantity
		if lastPurchase == nil || event.PurchasedAt.After(lastPurchase.PurchasedAt) {
			lastPurchase = event
		}
	}

	row.CurrentQuantity = clampQuantity(current)
	row.RequiredQuantity = offer.RequiredQuantity
	row.WindowStartDate = nil
	row.WindowEndDate = nil
	row.EarnedRewardCount = 0
	row.TotalRewardsEarned = 0
	row.TotalRewardsRedeemed = 0
	row.TotalRewardsRevoked = 0
	for _, reward := range rewards {
		if reward.EarnedAt != nil {
			row.TotalRewardsEarned++
		}
		switch reward.Status {
		case constants.RewardStatusInProgress:
			row.RequiredQuantity = reward.RequiredQuantity
			row.WindowStartDate = reward.WindowStartDate
			row.WindowEndDate = reward.WindowEndDate
		case constants.RewardStatusEarned:
			row.EarnedRewardCount++
		case constants.RewardStatusRedeemed:
			row.TotalRewardsRedeemed++
		case constants.RewardStatusRevoked:
			row.TotalRewardsRevoked++
		}
	}
	row.HasEarnedReward = row.EarnedRewardCount > 0
	row.LifetimePurchasedQuantity = purchased
	row.LifetimeRefundedQuantity = refunded
	row.LifetimeSpendCents = spend
	row.LastPurchaseAt = nil
	if lastPurchase != nil {
		row.LastPurchaseAt = timePtr(lastPurchase.PurchasedAt.UTC())
	}
	row.UpdatedAt = now

	if err := summaryRepo.Save(row); err != nil {
		return nil, fmt.Errorf("save customer summary: %w", err)
	}
	return row, nil
}

// RebuildSummary 重建单个（客户，活动）汇总
func (s *LoyaltyService) RebuildSummary(merchantID, customerID string, offerID uint) (*models.CustomerSummary, error) {
	merchantID = strings.TrimSpace(merchantID)
	customerID = strings.TrimSpace(customerID)
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	if customerID == "" {
		return nil, ErrCustomerRequired
	}
	var summary *models.CustomerSummary
	err := s.db.Transaction(func(tx *gorm.DB) error {
		offer, err := s.loadOffer(tx, merchantID, offerID)
		if err != nil {
			return err
		}
		if err := s.lockPair(tx, merchantID, customerID, offerID); err != nil {
			return err
		}
		summary, err = s.rebuildSummaryTx(tx, offer, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// RebuildAllSummaries 重建商户下全部汇总，返回成功数量；单行失败不影响其他行
func (s *LoyaltyService) RebuildAllSummaries(merchantID string) (int, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return 0, ErrMerchantRequired
	}
	pairs, err := s.summaryRepo.ListPairs(merchantID)
	if err != nil {
		return 0, err
	}
	rebuilt := 0
	for _, pair := range pairs {
		if _, err := s.RebuildSummary(merchantID, pair.CustomerID, pair.OfferID); err != nil {
			logger.Warnw("loyalty_summary_rebuild_failed",
				"merchant_id", merchantID,
				"customer_id", pair.CustomerID,
				"offer_id", pair.OfferID,
				"error", err,
			)
			continue
		}
		rebuilt++
	}
	return rebuilt, nil
}

// GetSummary 获取客户汇总
func (s *LoyaltyService) GetSummary(merchantID, customerID string, offerID uint) (*models.CustomerSummary, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	summary, err := s.summaryRepo.Get(merchantID, strings.TrimSpace(customerID), offerID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, ErrSummaryNotFound
	}
	return summary, nil
}

// ListCustomerSummaries 客户在全部活动下的汇总
func (s *LoyaltyService) ListCustomerSummaries(merchantID, customerID string) ([]models.CustomerSummary, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	return s.summaryRepo.ListByCustomer(merchantID, strings.TrimSpace(customerID))
}

// ListSummaries 汇总分页列表
func (s *LoyaltyService) ListSummaries(filter repository.CustomerSummaryListFilter) ([]models.CustomerSummary, int64, error) {
	if strings.TrimSpace(filter.MerchantID) == "" {
		return nil, 0, ErrMerchantRequired
	}
	return s.summaryRepo.List(filter)
}

// GetReward 获取奖励详情
func (s *LoyaltyService) GetReward(merchantID string, rewardID uint) (*models.Reward, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	reward, err := s.rewardRepo.GetByID(merchantID, rewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return nil, ErrRewardNotFound
	}
	return reward, nil
}

// ListRewards 奖励分页列表
func (s *LoyaltyService) ListRewards(filter repository.RewardListFilter) ([]models.Reward, int64, error) {
	if strings.TrimSpace(filter.MerchantID) == "" {
		return nil, 0, ErrMerchantRequired
	}
	return s.rewardRepo.List(filter)
}

// ListRewardEvents 奖励锁定的事件
func (s *LoyaltyService) ListRewardEvents(merchantID string, rewardID uint) ([]models.PurchaseEvent, error) {
	if _, err := s.GetReward(merchantID, rewardID); err != nil {
		return nil, err
	}
	return s.eventRepo.ListByReward(strings.TrimSpace(merchantID), rewardID)
}

// ListEvents 事件分页列表
func (s *LoyaltyService) ListEvents(filter repository.PurchaseEventListFilter) ([]models.PurchaseEvent, int64, error) {
	if strings.TrimSpace(filter.MerchantID) == "" {
		return nil, 0, ErrMerchantRequired
	}
	return s.eventRepo.List(filter)
}
