package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/models"

	"gorm.io/gorm"
)

// RefundInput 一条退款冲正
type RefundInput struct {
	MerchantID      string
	OrderID         string
	CustomerID      string
	VariationID     string
	Quantity        int
	UnitPriceCents  int64
	RefundedAt      time.Time
	OriginalEventID *uint
	RefundID        string
	LocationID      string
	CustomerSource  string
}

// refundIdempotencyKey 冲正幂等键；带退款单号时同一行的多次部分退款互不冲突
func refundIdempotencyKey(orderID, variationID string, quantity int, refundID string) string {
	key := fmt.Sprintf("refund:%s:%s:%d", orderID, variationID, quantity)
	if refundID = strings.TrimSpace(refundID); refundID != "" {
		key += ":" + refundID
	}
	return key
}

// RecordRefund 记录退款冲正；被冲正的购买属于已达成奖励且剩余数量不足时撤销该奖励
func (s *LoyaltyService) RecordRefund(ctx context.Context, input RefundInput) (*ProcessingResult, error) {
	input.MerchantID = strings.TrimSpace(input.MerchantID)
	input.CustomerID = strings.TrimSpace(input.CustomerID)
	input.OrderID = strings.TrimSpace(input.OrderID)
	input.VariationID = strings.TrimSpace(input.VariationID)
	if input.MerchantID == "" {
		return nil, ErrMerchantRequired
	}
	if input.CustomerID == "" {
		return nil, ErrCustomerRequired
	}
	if input.OrderID == "" {
		return nil, ErrOrderRequired
	}
	if input.VariationID == "" {
		return nil, ErrVariationRequired
	}
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	offerID, err := s.resolveRefundOffer(ctx, input)
	if err != nil {
		return nil, err
	}
	if offerID == 0 {
		return skipped(constants.ReasonVariationNotQualifying), nil
	}

	key := refundIdempotencyKey(input.OrderID, input.VariationID, input.Quantity, input.RefundID)
	existing, err := s.eventRepo.GetByIdempotencyKey(input.MerchantID, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &ProcessingResult{Processed: false, Reason: constants.ReasonAlreadyProcessed, Event: existing}, nil
	}

	refundedAt := input.RefundedAt.UTC()
	if input.RefundedAt.IsZero() {
		refundedAt = s.clock.now()
	}

	result := &ProcessingResult{}
	var revoked []*models.Reward
	err = s.db.Transaction(func(tx *gorm.DB) error {
		offer, err := s.loadOffer(tx, input.MerchantID, offerID)
		if err != nil {
			return err
		}
		if err := s.lockPair(tx, input.MerchantID, input.CustomerID, offer.ID); err != nil {
			return err
		}
		eventRepo := s.eventRepo.WithTx(tx)
		dup, err := eventRepo.GetByIdempotencyKey(input.MerchantID, key)
		if err != nil {
			return err
		}
		if dup != nil {
			return errAlreadyRecorded
		}

		target, err := s.findRefundTarget(tx, input, offer.ID)
		if err != nil {
			return err
		}
		parts, err := s.planRefundParts(tx, input, target)
		if err != nil {
			return err
		}

		for i, part := range parts {
			partKey := key
			if i > 0 {
				partKey = fmt.Sprintf("%s:part%d", key, i+1)
			}
			event, rewardRevoked, err := s.recordRefundPartTx(tx, offer, input, part, partKey, refundedAt)
			if err != nil {
				return err
			}
			if result.Event == nil {
				result.Event = event
			}
			if rewardRevoked != nil {
				revoked = append(revoked, rewardRevoked)
			}
		}

		trigger := recomputeTrigger{OrderID: input.OrderID, EventID: result.Event.ID}
		progress, err := s.recomputeTx(tx, offer, input.CustomerID, trigger)
		if err != nil {
			return err
		}
		if _, err := s.rebuildSummaryTx(tx, offer, input.CustomerID); err != nil {
			return err
		}
		result.Processed = true
		result.RewardProgress = progress
		return nil
	})
	if errors.Is(err, errAlreadyRecorded) {
		existing, lookupErr := s.eventRepo.GetByIdempotencyKey(input.MerchantID, key)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return &ProcessingResult{Processed: false, Reason: constants.ReasonAlreadyProcessed, Event: existing}, nil
	}
	if err != nil {
		return nil, err
	}

	for _, reward := range revoked {
		logger.Infow("loyalty_reward_revoked",
			"merchant_id", reward.MerchantID,
			"customer_id", reward.CustomerID,
			"offer_id", reward.OfferID,
			"reward_id", reward.ID,
			"remaining_quantity", reward.CurrentQuantity,
			"order_id", input.OrderID,
		)
	}
	logger.Infow("loyalty_refund_recorded",
		"merchant_id", input.MerchantID,
		"customer_id", input.CustomerID,
		"offer_id", offerID,
		"order_id", input.OrderID,
		"variation_id", input.VariationID,
		"quantity", input.Quantity,
		"reward_status", result.RewardProgress.Status,
	)
	return result, nil
}

// resolveRefundOffer 冲正所属活动：原事件 > 规格当前活动 > 订单内最近的购买事件
func (s *LoyaltyService) resolveRefundOffer(ctx context.Context, input RefundInput) (uint, error) {
	if input.OriginalEventID != nil && *input.OriginalEventID != 0 {
		original, err := s.eventRepo.GetByID(input.MerchantID, *input.OriginalEventID)
		if err != nil {
			return 0, err
		}
		if original != nil {
			return original.OfferID, nil
		}
	}
	offer, err := s.offers.GetOfferForVariation(ctx, input.VariationID, input.MerchantID)
	if err != nil {
		return 0, fmt.Errorf("lookup offer for variation: %w", err)
	}
	if offer != nil {
		return offer.ID, nil
	}
	latest, err := s.eventRepo.FindLatestPurchase(input.MerchantID, input.CustomerID, input.OrderID, input.VariationID)
	if err != nil {
		return 0, err
	}
	if latest != nil {
		return latest.OfferID, nil
	}
	return 0, nil
}

// findRefundTarget 定位被冲正的购买事件，客户或活动不一致时视为无锚点
func (s *LoyaltyService) findRefundTarget(tx *gorm.DB, input RefundInput, offerID uint) (*models.PurchaseEvent, error) {
	eventRepo := s.eventRepo.WithTx(tx)
	var target *models.PurchaseEvent
	var err error
	if input.OriginalEventID != nil && *input.OriginalEventID != 0 {
		target, err = eventRepo.GetByID(input.MerchantID, *input.OriginalEventID)
		if err != nil {
			return nil, err
		}
	}
	if target == nil {
		target, err = eventRepo.FindLatestPurchase(input.MerchantID, input.CustomerID, input.OrderID, input.VariationID)
		if err != nil {
			return nil, err
		}
	}
	if target == nil || target.IsRefund || target.CustomerID != input.CustomerID || target.OfferID != offerID {
		return nil, nil
	}
	return target, nil
}

// refundPart 冲正在一段购买上的份额；target 为 nil 表示无锚点冲正
type refundPart struct {
	target   *models.PurchaseEvent
	quantity int
}

// planRefundParts 购买被拆分过时，冲正从最新的结转部分开始向原始购买回溯分摊，
// 超出各段持有量的部分记在原始购买上
func (s *LoyaltyService) planRefundParts(tx *gorm.DB, input RefundInput, target *models.PurchaseEvent) ([]refundPart, error) {
	if target == nil {
		return []refundPart{{quantity: input.Quantity}}, nil
	}
	events, err := s.eventRepo.WithTx(tx).ListByOrder(input.MerchantID, target.OrderID)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	byID := make(map[uint]*models.PurchaseEvent, len(events))
	for i := range events {
		byID[events[i].ID] = &events[i]
	}
	root := target
	for root.SplitFromID != nil {
		parent, ok := byID[*root.SplitFromID]
		if !ok {
			break
		}
		root = parent
	}
	rootOf := func(event *models.PurchaseEvent) uint {
		for event.SplitFromID != nil {
			parent, ok := byID[*event.SplitFromID]
			if !ok {
				break
			}
			event = parent
		}
		return event.ID
	}

	held := make(map[uint]int)
	var segments []*models.PurchaseEvent
	for i := range events {
		event := &events[i]
		if event.CustomerID != target.CustomerID || event.OfferID != target.OfferID || rootOf(event) != root.ID {
			continue
		}
		switch {
		case event.IsRefund && event.OriginalEventID != nil:
			held[*event.OriginalEventID] += event.Quantity
		case event.IsRefund:
		case event.Quantity > 0:
			held[event.ID] += event.Quantity
			segments = append(segments, event)
		case event.SplitFromID != nil:
			held[*event.SplitFromID] += event.Quantity
		}
	}
	if len(segments) == 0 {
		return []refundPart{{target: target, quantity: input.Quantity}}, nil
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].ID > segments[j].ID })

	left := input.Quantity
	parts := make([]refundPart, 0, len(segments))
	for _, segment := range segments {
		if left == 0 {
			break
		}
		take := min(max(held[segment.ID], 0), left)
		if segment.ID == root.ID {
			take = left
		}
		if take == 0 {
			continue
		}
		parts = append(parts, refundPart{target: segment, quantity: take})
		left -= take
	}
	if left > 0 {
		parts = append(parts, refundPart{target: root, quantity: left})
	}
	return parts, nil
}

// recordRefundPartTx 写入一段冲正；所锁定的已达成奖励剩余数量不足时撤销并返回该奖励
func (s *LoyaltyService) recordRefundPartTx(tx *gorm.DB, offer *models.LoyaltyOffer, input RefundInput, part refundPart, key string, refundedAt time.Time) (*models.PurchaseEvent, *models.Reward, error) {
	eventRepo := s.eventRepo.WithTx(tx)
	target := part.target
	event := &models.PurchaseEvent{
		MerchantID:      input.MerchantID,
		OfferID:         offer.ID,
		CustomerID:      input.CustomerID,
		OrderID:         input.OrderID,
		VariationID:     input.VariationID,
		Quantity:        -part.quantity,
		UnitPriceCents:  input.UnitPriceCents,
		PurchasedAt:     refundedAt,
		WindowStartDate: refundedAt,
		WindowEndDate:   windowEnd(refundedAt, offer.WindowMonths),
		IsRefund:        true,
		RefundID:        strings.TrimSpace(input.RefundID),
		LocationID:      strings.TrimSpace(input.LocationID),
		CustomerSource:  strings.TrimSpace(input.CustomerSource),
		IdempotencyKey:  key,
		CreatedAt:       s.clock.now(),
	}

	var locked *models.Reward
	if target != nil {
		event.OriginalEventID = &target.ID
		event.WindowStartDate = target.WindowStartDate
		event.WindowEndDate = target.WindowEndDate
		if event.UnitPriceCents == 0 {
			event.UnitPriceCents = target.UnitPriceCents
		}
		current, err := eventRepo.GetByID(input.MerchantID, target.ID)
		if err != nil {
			return nil, nil, err
		}
		if current != nil && current.RewardID != nil {
			locked, err = s.rewardRepo.WithTx(tx).GetByIDForUpdate(input.MerchantID, *current.RewardID)
			if err != nil {
				return nil, nil, fmt.Errorf("lock refunded reward: %w", err)
			}
			if locked != nil && (locked.Status == constants.RewardStatusEarned || locked.Status == constants.RewardStatusRedeemed) {
				event.RewardID = &locked.ID
			} else {
				locked = nil
			}
		}
	}

	if err := eventRepo.Create(event); err != nil {
		if isUniqueViolation(err) {
			return nil, nil, errAlreadyRecorded
		}
		return nil, nil, fmt.Errorf("create refund event: %w", err)
	}

	s.audit.RecordTx(tx, AuditEntry{
		MerchantID: input.MerchantID,
		EventType:  constants.AuditEventRefundRecorded,
		CustomerID: input.CustomerID,
		OfferID:    offer.ID,
		RewardID:   rewardIDOf(locked),
		EventID:    event.ID,
		OrderID:    input.OrderID,
		Quantity:   event.Quantity,
		Detail: models.JSON{
			"variation_id":      input.VariationID,
			"refund_id":         event.RefundID,
			"original_event_id": originalIDOf(target),
		},
	})

	if locked == nil || locked.Status != constants.RewardStatusEarned {
		return event, nil, nil
	}
	trigger := recomputeTrigger{OrderID: input.OrderID, EventID: event.ID}
	remaining, err := eventRepo.SumLockedQuantity(input.MerchantID, locked.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("sum locked quantity: %w", err)
	}
	if remaining < locked.RequiredQuantity {
		if err := s.revokeTx(tx, locked, remaining, constants.RevocationReasonRefund, trigger); err != nil {
			return nil, nil, err
		}
		return event, locked, nil
	}
	locked.CurrentQuantity = remaining
	locked.UpdatedAt = s.clock.now()
	if err := s.rewardRepo.WithTx(tx).Update(locked); err != nil {
		return nil, nil, fmt.Errorf("update earned reward quantity: %w", err)
	}
	return event, nil, nil
}

// revokeTx 撤销已达成奖励并释放其锁定的全部事件
func (s *LoyaltyService) revokeTx(tx *gorm.DB, reward *models.Reward, remaining int, reason string, trigger recomputeTrigger) error {
	now := s.clock.now()
	released, err := s.eventRepo.WithTx(tx).UnlockReward(reward.MerchantID, reward.ID)
	if err != nil {
		return fmt.Errorf("unlock reward events: %w", err)
	}
	reward.Status = constants.RewardStatusRevoked
	reward.CurrentQuantity = clampQuantity(remaining)
	reward.RevokedAt = timePtr(now)
	reward.RevocationReason = reason
	reward.UpdatedAt = now
	if err := s.rewardRepo.WithTx(tx).Update(reward); err != nil {
		return fmt.Errorf("mark reward revoked: %w", err)
	}

	s.audit.RecordTx(tx, AuditEntry{
		MerchantID: reward.MerchantID,
		EventType:  constants.AuditEventRewardRevoked,
		CustomerID: reward.CustomerID,
		OfferID:    reward.OfferID,
		RewardID:   reward.ID,
		EventID:    trigger.EventID,
		OrderID:    trigger.OrderID,
		Quantity:   remaining,
		ActorID:    trigger.ActorID,
		Detail:     models.JSON{"reason": reason, "released_events": released, "required_quantity": reward.RequiredQuantity},
	})

	if err := s.enqueueTx(tx, reward, constants.OutboxKindDiscountCleanup, models.JSON{
		"customer_id": reward.CustomerID,
		"reason":      reason,
	}); err != nil {
		return err
	}
	return s.enqueueRewardEventTx(tx, reward, RewardEventRevoked, now)
}

func rewardIDOf(reward *models.Reward) uint {
	if reward == nil {
		return 0
	}
	return reward.ID
}

func originalIDOf(event *models.PurchaseEvent) uint {
	if event == nil {
		return 0
	}
	return event.ID
}
