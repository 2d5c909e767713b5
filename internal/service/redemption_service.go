package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/models"

	"gorm.io/gorm"
)

// RedemptionInput 兑换请求
type RedemptionInput struct {
	MerchantID          string
	RewardID            uint
	OrderID             string
	CustomerID          string
	RedemptionType      string
	RedeemedVariationID string
	ValueCents          int64
	ActorID             string
	Notes               string
}

// RedemptionResult 兑换结果
type RedemptionResult struct {
	Success    bool               `json:"success"`
	Redemption *models.Redemption `json:"redemption"`
	Reward     *models.Reward     `json:"reward"`
}

// Redeem 兑换已达成的奖励，每个奖励只能兑换一次
func (s *LoyaltyService) Redeem(ctx context.Context, input RedemptionInput) (*RedemptionResult, error) {
	input.MerchantID = strings.TrimSpace(input.MerchantID)
	input.CustomerID = strings.TrimSpace(input.CustomerID)
	if input.MerchantID == "" {
		return nil, ErrMerchantRequired
	}
	if input.RewardID == 0 {
		return nil, ErrRewardIDRequired
	}
	if input.ValueCents < 0 {
		return nil, ErrRedemptionValueBad
	}
	redemptionType := strings.TrimSpace(input.RedemptionType)
	if redemptionType == "" {
		redemptionType = constants.RedemptionTypeManual
	}

	current, err := s.rewardRepo.GetByID(input.MerchantID, input.RewardID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrRedeemRewardMissing
	}

	result := &RedemptionResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		offer, err := s.loadOffer(tx, input.MerchantID, current.OfferID)
		if err != nil {
			return err
		}
		if err := s.lockPair(tx, input.MerchantID, current.CustomerID, current.OfferID); err != nil {
			return err
		}
		rewardRepo := s.rewardRepo.WithTx(tx)
		reward, err := rewardRepo.GetByIDForUpdate(input.MerchantID, input.RewardID)
		if err != nil {
			return err
		}
		if reward == nil {
			return ErrRedeemRewardMissing
		}
		if reward.Status != constants.RewardStatusEarned {
			return ErrRewardNotEarned
		}
		if input.CustomerID != "" && input.CustomerID != reward.CustomerID {
			return ErrRewardCustomerMismatch
		}

		now := s.clock.now()
		redemption := &models.Redemption{
			MerchantID:          input.MerchantID,
			RewardID:            reward.ID,
			OfferID:             reward.OfferID,
			CustomerID:          reward.CustomerID,
			OrderID:             strings.TrimSpace(input.OrderID),
			RedemptionType:      redemptionType,
			RedeemedVariationID: strings.TrimSpace(input.RedeemedVariationID),
			ValueCents:          input.ValueCents,
			ActorID:             strings.TrimSpace(input.ActorID),
			Notes:               strings.TrimSpace(input.Notes),
			RedeemedAt:          now,
			CreatedAt:           now,
		}
		if err := s.redemptionRepo.WithTx(tx).Create(redemption); err != nil {
			if isUniqueViolation(err) {
				return ErrRewardNotEarned
			}
			return fmt.Errorf("create redemption: %w", err)
		}

		reward.Status = constants.RewardStatusRedeemed
		reward.RedeemedAt = timePtr(now)
		reward.RedemptionID = &redemption.ID
		reward.RedemptionOrderID = redemption.OrderID
		reward.UpdatedAt = now
		if err := rewardRepo.Update(reward); err != nil {
			return fmt.Errorf("mark reward redeemed: %w", err)
		}

		s.audit.RecordTx(tx, AuditEntry{
			MerchantID: input.MerchantID,
			EventType:  constants.AuditEventRewardRedeemed,
			CustomerID: reward.CustomerID,
			OfferID:    reward.OfferID,
			RewardID:   reward.ID,
			OrderID:    redemption.OrderID,
			Quantity:   1,
			ActorID:    redemption.ActorID,
			Detail: models.JSON{
				"redemption_id":   redemption.ID,
				"redemption_type": redemptionType,
				"value_cents":     redemption.ValueCents,
				"variation_id":    redemption.RedeemedVariationID,
			},
		})

		if err := s.enqueueTx(tx, reward, constants.OutboxKindDiscountCleanup, models.JSON{
			"customer_id": reward.CustomerID,
			"reason":      "redeemed",
		}); err != nil {
			return err
		}
		if err := s.enqueueRewardEventTx(tx, reward, RewardEventRedeemed, now); err != nil {
			return err
		}
		if _, err := s.rebuildSummaryTx(tx, offer, reward.CustomerID); err != nil {
			return err
		}
		reward.Offer = offer
		result.Success = true
		result.Redemption = redemption
		result.Reward = reward
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("loyalty_reward_redeemed",
		"merchant_id", input.MerchantID,
		"customer_id", result.Reward.CustomerID,
		"offer_id", result.Reward.OfferID,
		"reward_id", result.Reward.ID,
		"order_id", result.Redemption.OrderID,
		"redemption_type", redemptionType,
	)
	return result, nil
}
