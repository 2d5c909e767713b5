package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/models"

	"gorm.io/gorm"
)

// 奖励生命周期事件名（reward_event 消息载荷）
const (
	RewardEventEarned   = "reward.earned"
	RewardEventRedeemed = "reward.redeemed"
	RewardEventRevoked  = "reward.revoked"
)

// RewardProgress 一次重算后的（客户，活动）进度
type RewardProgress struct {
	RewardID         uint       `json:"reward_id,omitempty"`
	Status           string     `json:"status"`
	CurrentQuantity  int        `json:"current_quantity"`
	RequiredQuantity int        `json:"required_quantity"`
	WindowStartDate  *time.Time `json:"window_start_date,omitempty"`
	WindowEndDate    *time.Time `json:"window_end_date,omitempty"`
	EarnedRewardIDs  []uint     `json:"earned_reward_ids,omitempty"`
}

// recomputeTrigger 触发重算的来源，仅用于审计
type recomputeTrigger struct {
	OrderID string
	EventID uint
	ActorID string
}

// eventGroup 一笔购买及其冲正，锁定时作为整体
type eventGroup struct {
	events []models.PurchaseEvent
	net    int
}

// recomputeTx 在调用方事务内重算进度并推进状态。调用前必须已持有 lockPair。
// 未锁定且未过期事件的合计达到门槛时按时间顺序锁定事件并转为 earned；
// 跨过门槛的购买只锁定所需数量，超出部分结转；剩余部分仍达到门槛时继续产生新的奖励。
func (s *LoyaltyService) recomputeTx(tx *gorm.DB, offer *models.LoyaltyOffer, customerID string, trigger recomputeTrigger) (*RewardProgress, error) {
	merchantID := offer.MerchantID
	now := s.clock.now()
	eventRepo := s.eventRepo.WithTx(tx)
	rewardRepo := s.rewardRepo.WithTx(tx)

	events, err := eventRepo.ListUnlockedActive(merchantID, customerID, offer.ID, startOfDay(now))
	if err != nil {
		return nil, fmt.Errorf("list unlocked events: %w", err)
	}
	reward, err := rewardRepo.GetInProgressForUpdate(merchantID, customerID, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("lock in-progress reward: %w", err)
	}

	progress := &RewardProgress{
		Status:           constants.RewardStatusInProgress,
		RequiredQuantity: offer.RequiredQuantity,
	}
	var lastEarned *models.Reward
	for {
		quantity := sumQuantity(events)
		start, end := eventWindow(events)

		if reward == nil {
			if quantity <= 0 {
				break
			}
			reward = &models.Reward{
				MerchantID:       merchantID,
				CustomerID:       customerID,
				OfferID:          offer.ID,
				Status:           constants.RewardStatusInProgress,
				CurrentQuantity:  quantity,
				RequiredQuantity: offer.RequiredQuantity,
				WindowStartDate:  start,
				WindowEndDate:    end,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := rewardRepo.Create(reward); err != nil {
				return nil, fmt.Errorf("create reward: %w", err)
			}
			s.audit.RecordTx(tx, AuditEntry{
				MerchantID: merchantID,
				EventType:  constants.AuditEventRewardProgress,
				CustomerID: customerID,
				OfferID:    offer.ID,
				RewardID:   reward.ID,
				EventID:    trigger.EventID,
				OrderID:    trigger.OrderID,
				Quantity:   quantity,
				ActorID:    trigger.ActorID,
				Detail:     models.JSON{"previous_quantity": 0, "current_quantity": quantity, "required_quantity": reward.RequiredQuantity},
			})
		} else {
			previous := reward.CurrentQuantity
			reward.CurrentQuantity = clampQuantity(quantity)
			reward.WindowStartDate = start
			reward.WindowEndDate = end
			reward.UpdatedAt = now
			if err := rewardRepo.Update(reward); err != nil {
				return nil, fmt.Errorf("update reward progress: %w", err)
			}
			if previous != reward.CurrentQuantity {
				s.audit.RecordTx(tx, AuditEntry{
					MerchantID: merchantID,
					EventType:  constants.AuditEventRewardProgress,
					CustomerID: customerID,
					OfferID:    offer.ID,
					RewardID:   reward.ID,
					EventID:    trigger.EventID,
					OrderID:    trigger.OrderID,
					Quantity:   reward.CurrentQuantity,
					ActorID:    trigger.ActorID,
					Detail:     models.JSON{"previous_quantity": previous, "current_quantity": reward.CurrentQuantity, "required_quantity": reward.RequiredQuantity},
				})
			}
		}

		if reward.CurrentQuantity < reward.RequiredQuantity {
			break
		}
		locked, remaining, crossing, lockedSum := selectLockGroups(events, reward.RequiredQuantity)
		if lockedSum < reward.RequiredQuantity {
			break
		}
		if excess := lockedSum - reward.RequiredQuantity; excess > 0 && crossing != nil {
			carry, rest, err := s.splitOvershootTx(tx, *crossing, excess, reward.ID, now)
			if err != nil {
				return nil, err
			}
			locked = append(locked, *carry)
			remaining = append(remaining, *rest)
			sortEventsChronologically(remaining)
			lockedSum = reward.RequiredQuantity
		}
		if err := s.earnTx(tx, offer, reward, locked, lockedSum, trigger, now); err != nil {
			return nil, err
		}
		progress.EarnedRewardIDs = append(progress.EarnedRewardIDs, reward.ID)
		lastEarned = reward
		events = remaining
		reward = nil
	}

	if reward != nil {
		progress.RewardID = reward.ID
		progress.Status = reward.Status
		progress.CurrentQuantity = reward.CurrentQuantity
		progress.RequiredQuantity = reward.RequiredQuantity
		progress.WindowStartDate = reward.WindowStartDate
		progress.WindowEndDate = reward.WindowEndDate
	} else if lastEarned != nil {
		progress.RewardID = lastEarned.ID
		progress.Status = constants.RewardStatusEarned
		progress.CurrentQuantity = lastEarned.CurrentQuantity
		progress.RequiredQuantity = lastEarned.RequiredQuantity
		progress.WindowStartDate = lastEarned.WindowStartDate
		progress.WindowEndDate = lastEarned.WindowEndDate
	}
	return progress, nil
}

// splitOvershootTx 跨过门槛的购买超出部分拆成一对事件：
// 负数部分随奖励锁定，正数部分保持未锁定，沿用原事件的购买时间与窗口
func (s *LoyaltyService) splitOvershootTx(tx *gorm.DB, anchor models.PurchaseEvent, excess int, rewardID uint, now time.Time) (*models.PurchaseEvent, *models.PurchaseEvent, error) {
	eventRepo := s.eventRepo.WithTx(tx)
	key := fmt.Sprintf("split:%d:%d", anchor.ID, rewardID)
	carry := splitEvent(anchor, -excess, key, now)
	if err := eventRepo.Create(carry); err != nil {
		return nil, nil, fmt.Errorf("create split carry event: %w", err)
	}
	rest := splitEvent(anchor, excess, key+":rest", now)
	if err := eventRepo.Create(rest); err != nil {
		return nil, nil, fmt.Errorf("create split remainder event: %w", err)
	}
	return carry, rest, nil
}

func splitEvent(anchor models.PurchaseEvent, quantity int, key string, now time.Time) *models.PurchaseEvent {
	return &models.PurchaseEvent{
		MerchantID:      anchor.MerchantID,
		OfferID:         anchor.OfferID,
		CustomerID:      anchor.CustomerID,
		OrderID:         anchor.OrderID,
		VariationID:     anchor.VariationID,
		Quantity:        quantity,
		UnitPriceCents:  anchor.UnitPriceCents,
		PurchasedAt:     anchor.PurchasedAt,
		WindowStartDate: anchor.WindowStartDate,
		WindowEndDate:   anchor.WindowEndDate,
		SplitFromID:     &anchor.ID,
		LocationID:      anchor.LocationID,
		ReceiptURL:      anchor.ReceiptURL,
		PaymentType:     anchor.PaymentType,
		CustomerSource:  anchor.CustomerSource,
		IdempotencyKey:  key,
		CreatedAt:       now,
	}
}

// earnTx 锁定事件并将奖励转为 earned，同时登记折扣发放与生命周期事件
func (s *LoyaltyService) earnTx(tx *gorm.DB, offer *models.LoyaltyOffer, reward *models.Reward, locked []models.PurchaseEvent, lockedSum int, trigger recomputeTrigger, now time.Time) error {
	ids := make([]uint, 0, len(locked))
	for _, event := range locked {
		ids = append(ids, event.ID)
	}
	if err := s.eventRepo.WithTx(tx).LockToReward(reward.MerchantID, ids, reward.ID); err != nil {
		return fmt.Errorf("lock events to reward: %w", err)
	}

	start, end := eventWindow(locked)
	reward.Status = constants.RewardStatusEarned
	reward.CurrentQuantity = lockedSum
	reward.WindowStartDate = start
	reward.WindowEndDate = end
	reward.EarnedAt = timePtr(now)
	reward.UpdatedAt = now
	if err := s.rewardRepo.WithTx(tx).Update(reward); err != nil {
		return fmt.Errorf("mark reward earned: %w", err)
	}

	s.audit.RecordTx(tx, AuditEntry{
		MerchantID: reward.MerchantID,
		EventType:  constants.AuditEventRewardEarned,
		CustomerID: reward.CustomerID,
		OfferID:    reward.OfferID,
		RewardID:   reward.ID,
		EventID:    trigger.EventID,
		OrderID:    trigger.OrderID,
		Quantity:   lockedSum,
		ActorID:    trigger.ActorID,
		Detail:     models.JSON{"locked_event_ids": ids, "required_quantity": reward.RequiredQuantity},
	})

	if err := s.enqueueTx(tx, reward, constants.OutboxKindDiscountIssue, models.JSON{
		"customer_id": reward.CustomerID,
		"offer_id":    reward.OfferID,
		"offer_name":  offer.Name,
	}); err != nil {
		return err
	}
	return s.enqueueRewardEventTx(tx, reward, RewardEventEarned, now)
}

func (s *LoyaltyService) enqueueTx(tx *gorm.DB, reward *models.Reward, kind string, payload models.JSON) error {
	if s.outbox == nil {
		return nil
	}
	if payload == nil {
		payload = models.JSON{}
	}
	payload["reward_id"] = reward.ID
	return s.outbox.EnqueueTx(tx, reward.MerchantID, kind, reward.ID, payload)
}

func (s *LoyaltyService) enqueueRewardEventTx(tx *gorm.DB, reward *models.Reward, event string, at time.Time) error {
	return s.enqueueTx(tx, reward, constants.OutboxKindRewardEvent, models.JSON{
		"event":             event,
		"merchant_id":       reward.MerchantID,
		"customer_id":       reward.CustomerID,
		"offer_id":          reward.OfferID,
		"status":            reward.Status,
		"current_quantity":  reward.CurrentQuantity,
		"required_quantity": reward.RequiredQuantity,
		"occurred_at":       at.Format(time.RFC3339),
	})
}

// selectLockGroups 按时间顺序整组消耗事件，直到净数量达到 required。
// 冲正与拆分负数部分同其购买同组，避免已退款的数量支撑奖励。
// crossing 为跨过门槛那一组的购买事件，无可拆分的购买时为 nil。
func selectLockGroups(events []models.PurchaseEvent, required int) (locked, remaining []models.PurchaseEvent, crossing *models.PurchaseEvent, lockedSum int) {
	groups := groupEvents(events)
	taken := 0
	for i, group := range groups {
		if lockedSum >= required {
			break
		}
		locked = append(locked, group.events...)
		lockedSum += group.net
		taken = i + 1
		crossing = nil
		if anchor := group.events[0]; !anchor.IsRefund && anchor.Quantity > 0 {
			crossing = &group.events[0]
		}
	}
	for _, group := range groups[taken:] {
		remaining = append(remaining, group.events...)
	}
	sortEventsChronologically(remaining)
	return locked, remaining, crossing, lockedSum
}

// groupEvents 以购买为锚点合并其冲正与拆分负数部分，无锚点的事件单独成组
func groupEvents(events []models.PurchaseEvent) []eventGroup {
	groups := make([]eventGroup, 0, len(events))
	byPurchase := make(map[uint]int, len(events))
	for _, event := range events {
		if parent := groupParent(event); parent != nil {
			if gi, ok := byPurchase[*parent]; ok {
				groups[gi].events = append(groups[gi].events, event)
				groups[gi].net += event.Quantity
				continue
			}
		}
		if !event.IsRefund && event.Quantity > 0 {
			byPurchase[event.ID] = len(groups)
		}
		groups = append(groups, eventGroup{events: []models.PurchaseEvent{event}, net: event.Quantity})
	}
	return groups
}

func groupParent(event models.PurchaseEvent) *uint {
	switch {
	case event.IsRefund:
		return event.OriginalEventID
	case event.Quantity < 0:
		return event.SplitFromID
	}
	return nil
}

func sortEventsChronologically(events []models.PurchaseEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].PurchasedAt.Equal(events[j].PurchasedAt) {
			return events[i].PurchasedAt.Before(events[j].PurchasedAt)
		}
		return events[i].ID < events[j].ID
	})
}

func sumQuantity(events []models.PurchaseEvent) int {
	total := 0
	for _, event := range events {
		total += event.Quantity
	}
	return total
}

// eventWindow 窗口起点取最早购买时间，终点取最晚窗口结束日
func eventWindow(events []models.PurchaseEvent) (*time.Time, *time.Time) {
	var start, end *time.Time
	for _, event := range events {
		if !event.IsRefund && (start == nil || event.PurchasedAt.Before(*start)) {
			start = timePtr(event.PurchasedAt.UTC())
		}
		if end == nil || event.WindowEndDate.After(*end) {
			end = timePtr(event.WindowEndDate.UTC())
		}
	}
	if start == nil && len(events) > 0 {
		start = timePtr(events[0].PurchasedAt.UTC())
	}
	return start, end
}

func clampQuantity(quantity int) int {
	if quantity < 0 {
		return 0
	}
	return quantity
}
