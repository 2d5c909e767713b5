package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/pos"
	"github.com/shelfline-next/internal/repository"

	"gorm.io/gorm"
)

const defaultReissueLimit = 200

// DiscountService 处理 outbox 中的折扣发放、清理与奖励事件发布
type DiscountService struct {
	db        *gorm.DB
	rewards   repository.RewardRepository
	offers    *OfferService
	outbox    *OutboxService
	external  ExternalDiscount
	publisher EventPublisher
	clock     Clock
}

// NewDiscountService 创建折扣投递服务；external/publisher 为空时对应消息直接视为完成
func NewDiscountService(db *gorm.DB, rewards repository.RewardRepository, offers *OfferService, outbox *OutboxService, external ExternalDiscount, publisher EventPublisher) *DiscountService {
	return &DiscountService{
		db:        db,
		rewards:   rewards,
		offers:    offers,
		outbox:    outbox,
		external:  external,
		publisher: publisher,
	}
}

// Register 注册 outbox 处理函数
func (s *DiscountService) Register(outbox *OutboxService) {
	outbox.Register(constants.OutboxKindDiscountIssue, s.handleIssue)
	outbox.Register(constants.OutboxKindDiscountCleanup, s.handleCleanup)
	outbox.Register(constants.OutboxKindRewardEvent, s.handleRewardEvent)
}

func (s *DiscountService) handleIssue(ctx context.Context, message *models.OutboxMessage) error {
	reward, err := s.rewards.GetByID(message.MerchantID, message.RewardID)
	if err != nil {
		return err
	}
	if reward == nil {
		logger.Warnw("loyalty_discount_issue_reward_missing", "merchant_id", message.MerchantID, "reward_id", message.RewardID)
		return nil
	}
	if reward.Status != constants.RewardStatusEarned || reward.DiscountIssuedAt != nil {
		return nil
	}
	if s.external == nil {
		logger.Warnw("loyalty_discount_issue_skipped", "merchant_id", reward.MerchantID, "reward_id", reward.ID, "reason", "external_discount_disabled")
		return nil
	}

	variationIDs, err := s.offers.ActiveVariationIDs(reward.MerchantID, reward.OfferID)
	if err != nil {
		return err
	}
	offerName := ""
	if reward.Offer != nil {
		offerName = reward.Offer.Name
	}
	refs, issueErr := s.external.IssueDiscount(ctx, pos.DiscountIssueInput{
		MerchantID:   reward.MerchantID,
		CustomerID:   reward.CustomerID,
		RewardID:     reward.ID,
		OfferID:      reward.OfferID,
		OfferName:    offerName,
		VariationIDs: variationIDs,
	})
	if refs != nil {
		fields := discountRefFields(refs)
		if issueErr == nil {
			fields["discount_issued_at"] = s.clock.now()
		}
		if err := s.rewards.UpdateDiscountRefs(reward.MerchantID, reward.ID, fields); err != nil {
			logger.Errorw("loyalty_discount_refs_save_failed", "merchant_id", reward.MerchantID, "reward_id", reward.ID, "error", err)
			return err
		}
	}
	if issueErr != nil {
		logger.Warnw("loyalty_discount_issue_failed",
			"merchant_id", reward.MerchantID,
			"customer_id", reward.CustomerID,
			"reward_id", reward.ID,
			"error", issueErr,
		)
		return fmt.Errorf("%w: %v", ErrDiscountIssueFailed, issueErr)
	}

	if refs == nil {
		return fmt.Errorf("%w: empty discount references", ErrDiscountIssueFailed)
	}

	// 发放期间奖励可能已被撤销或兑换，此时立即清理
	latest, err := s.rewards.GetByID(reward.MerchantID, reward.ID)
	if err != nil {
		return err
	}
	if latest != nil && latest.Status != constants.RewardStatusEarned {
		return s.cleanup(ctx, latest)
	}
	logger.Infow("loyalty_discount_issued",
		"merchant_id", reward.MerchantID,
		"customer_id", reward.CustomerID,
		"reward_id", reward.ID,
		"discount_id", refs.DiscountID,
	)
	return nil
}

func (s *DiscountService) handleCleanup(ctx context.Context, message *models.OutboxMessage) error {
	reward, err := s.rewards.GetByID(message.MerchantID, message.RewardID)
	if err != nil {
		return err
	}
	if reward == nil {
		return nil
	}
	return s.cleanup(ctx, reward)
}

func (s *DiscountService) cleanup(ctx context.Context, reward *models.Reward) error {
	if reward.DiscountCleanedAt != nil {
		return nil
	}
	refs := pos.DiscountRefs{
		GroupID:       reward.ExternalGroupRef,
		DiscountID:    reward.ExternalDiscountRef,
		ProductSetID:  reward.ExternalProductSetRef,
		PricingRuleID: reward.ExternalPricingRuleRef,
	}
	if refs.GroupID == "" && refs.DiscountID == "" && refs.ProductSetID == "" && refs.PricingRuleID == "" {
		return nil
	}
	if s.external == nil {
		logger.Warnw("loyalty_discount_cleanup_skipped", "merchant_id", reward.MerchantID, "reward_id", reward.ID, "reason", "external_discount_disabled")
		return nil
	}
	if err := s.external.CleanupDiscount(ctx, pos.DiscountCleanupInput{
		MerchantID: reward.MerchantID,
		CustomerID: reward.CustomerID,
		RewardID:   reward.ID,
		Refs:       refs,
	}); err != nil {
		logger.Warnw("loyalty_discount_cleanup_failed",
			"merchant_id", reward.MerchantID,
			"reward_id", reward.ID,
			"discount_id", refs.DiscountID,
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrDiscountCleanupFailed, err)
	}
	return s.rewards.UpdateDiscountRefs(reward.MerchantID, reward.ID, map[string]interface{}{
		"discount_cleaned_at": s.clock.now(),
	})
}

func (s *DiscountService) handleRewardEvent(ctx context.Context, message *models.OutboxMessage) error {
	if s.publisher == nil {
		return nil
	}
	body, err := json.Marshal(message.PayloadJSON.Merge(models.JSON{"message_id": message.MessageID}))
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s:%d", message.MerchantID, message.RewardID)
	if err := s.publisher.Publish(ctx, key, body); err != nil {
		return fmt.Errorf("%w: %v", ErrEventPublishFailed, err)
	}
	return nil
}

// ReissueMissing 为已达成但没有折扣引用的奖励重新登记发放
func (s *DiscountService) ReissueMissing(merchantID string, limit int) (int, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return 0, ErrMerchantRequired
	}
	if limit <= 0 {
		limit = defaultReissueLimit
	}
	rewards, err := s.rewards.ListEarnedWithoutDiscount(merchantID, limit)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, reward := range rewards {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			return s.outbox.EnqueueTx(tx, reward.MerchantID, constants.OutboxKindDiscountIssue, reward.ID, models.JSON{
				"reward_id":   reward.ID,
				"customer_id": reward.CustomerID,
				"offer_id":    reward.OfferID,
				"reissue":     true,
			})
		})
		if err != nil {
			logger.Warnw("loyalty_discount_reissue_failed", "merchant_id", merchantID, "reward_id", reward.ID, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

func discountRefFields(refs *pos.DiscountRefs) map[string]interface{} {
	fields := map[string]interface{}{}
	if refs.GroupID != "" {
		fields["external_group_ref"] = refs.GroupID
	}
	if refs.DiscountID != "" {
		fields["external_discount_reference"] = refs.DiscountID
	}
	if refs.ProductSetID != "" {
		fields["external_product_set_ref"] = refs.ProductSetID
	}
	if refs.PricingRuleID != "" {
		fields["external_pricing_rule_ref"] = refs.PricingRuleID
	}
	return fields
}
