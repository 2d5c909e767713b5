package service

import (
	"context"
	"strings"
	"time"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/repository"
)

// OrderLineInput 订单行（金额均为最小货币单位）
type OrderLineInput struct {
	UID             string
	VariationID     string
	Quantity        int
	UnitPriceCents  int64
	GrossSalesCents int64
	TotalCents      int64
	DiscountIDs     []string
}

// ReturnInput 订单内的退货
type ReturnInput struct {
	SourceOrderID string
	Lines         []OrderLineInput
}

// OrderInput 已完成的订单
type OrderInput struct {
	MerchantID        string
	OrderID           string
	State             string
	CustomerID        string
	TenderCustomerIDs []string
	PaymentType       string
	Contacts          []FulfillmentContact
	LocationID        string
	ReceiptURL        string
	CompletedAt       time.Time
	Lines             []OrderLineInput
	Returns           []ReturnInput
}

// RefundOrderInput 一次退款涉及的订单行
type RefundOrderInput struct {
	MerchantID        string
	OrderID           string
	RefundID          string
	CustomerID        string
	TenderCustomerIDs []string
	Contacts          []FulfillmentContact
	LocationID        string
	RefundedAt        time.Time
	Lines             []OrderLineInput
}

// LineResult 单行处理结果
type LineResult struct {
	LineUID        string          `json:"line_uid,omitempty"`
	VariationID    string          `json:"variation_id,omitempty"`
	Quantity       int             `json:"quantity"`
	Refund         bool            `json:"refund,omitempty"`
	Processed      bool            `json:"processed"`
	Reason         string          `json:"reason,omitempty"`
	Error          string          `json:"error,omitempty"`
	EventID        uint            `json:"event_id,omitempty"`
	RewardProgress *RewardProgress `json:"reward_progress,omitempty"`
}

// OrderResult 订单处理结果
type OrderResult struct {
	MerchantID      string       `json:"merchant_id"`
	OrderID         string       `json:"order_id"`
	CustomerID      string       `json:"customer_id,omitempty"`
	CustomerSource  string       `json:"customer_source,omitempty"`
	Processed       bool         `json:"processed"`
	Reason          string       `json:"reason,omitempty"`
	Lines           []LineResult `json:"lines,omitempty"`
	RedeemedRewards []uint       `json:"redeemed_rewards,omitempty"`
	Errors          []string     `json:"errors,omitempty"`
}

// OrderIntakeService 订单入口：识别客户、过滤行并分派到累计/冲正
type OrderIntakeService struct {
	loyalty    *LoyaltyService
	resolver   *CustomerResolver
	rewards    repository.RewardRepository
	autoRedeem bool
}

// NewOrderIntakeService 创建订单入口服务
func NewOrderIntakeService(loyalty *LoyaltyService, resolver *CustomerResolver, rewards repository.RewardRepository, autoRedeem bool) *OrderIntakeService {
	return &OrderIntakeService{
		loyalty:    loyalty,
		resolver:   resolver,
		rewards:    rewards,
		autoRedeem: autoRedeem,
	}
}

// ProcessOrder 处理已完成订单，单行失败不影响其他行
func (s *OrderIntakeService) ProcessOrder(ctx context.Context, order OrderInput) (*OrderResult, error) {
	order.MerchantID = strings.TrimSpace(order.MerchantID)
	order.OrderID = strings.TrimSpace(order.OrderID)
	if order.MerchantID == "" {
		return nil, ErrMerchantRequired
	}
	if order.OrderID == "" {
		return nil, ErrOrderRequired
	}
	result := &OrderResult{MerchantID: order.MerchantID, OrderID: order.OrderID}
	if state := strings.TrimSpace(order.State); state != "" && !strings.EqualFold(state, constants.PlatformOrderStateCompleted) {
		result.Reason = constants.ReasonOrderNotCompleted
		return result, nil
	}
	if len(order.Lines) == 0 && len(order.Returns) == 0 {
		result.Reason = constants.ReasonNoLineItems
		return result, nil
	}

	customerID, source, err := s.resolver.Resolve(ctx, CustomerHints{
		MerchantID:        order.MerchantID,
		OrderID:           order.OrderID,
		CustomerID:        order.CustomerID,
		TenderCustomerIDs: order.TenderCustomerIDs,
		DiscountIDs:       collectDiscountIDs(order.Lines),
		Contacts:          order.Contacts,
	})
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		result.Reason = constants.ReasonNoCustomer
		logger.Infow("loyalty_order_no_customer", "merchant_id", order.MerchantID, "order_id", order.OrderID)
		return result, nil
	}
	result.CustomerID = customerID
	result.CustomerSource = source

	ownRewards, err := s.rewardsByDiscount(order.MerchantID, order.Lines)
	if err != nil {
		return nil, err
	}

	purchasedAt := order.CompletedAt
	redeemTargets := make([]*models.Reward, 0)
	for _, line := range order.Lines {
		lineResult := LineResult{LineUID: line.UID, VariationID: strings.TrimSpace(line.VariationID), Quantity: line.Quantity}
		if reward := matchOwnReward(line, ownRewards); reward != nil {
			lineResult.Reason = constants.ReasonSelfRedeemed
			redeemTargets = appendReward(redeemTargets, reward)
			result.Lines = append(result.Lines, lineResult)
			continue
		}
		if reason := lineSkipReason(line); reason != "" {
			lineResult.Reason = reason
			result.Lines = append(result.Lines, lineResult)
			continue
		}

		processed, err := s.loyalty.RecordPurchase(ctx, PurchaseInput{
			MerchantID:     order.MerchantID,
			OrderID:        order.OrderID,
			CustomerID:     customerID,
			VariationID:    lineResult.VariationID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			PurchasedAt:    purchasedAt,
			LocationID:     order.LocationID,
			ReceiptURL:     order.ReceiptURL,
			CustomerSource: source,
			PaymentType:    order.PaymentType,
		})
		applyLineOutcome(&lineResult, processed, err)
		if err != nil {
			logger.Warnw("loyalty_order_line_failed",
				"merchant_id", order.MerchantID,
				"order_id", order.OrderID,
				"line_uid", line.UID,
				"variation_id", lineResult.VariationID,
				"error", err,
			)
		}
		result.Lines = append(result.Lines, lineResult)
	}

	for _, ret := range order.Returns {
		sourceOrderID := strings.TrimSpace(ret.SourceOrderID)
		if sourceOrderID == "" {
			continue
		}
		lines := s.refundLines(ctx, RefundOrderInput{
			MerchantID: order.MerchantID,
			OrderID:    sourceOrderID,
			RefundID:   order.OrderID,
			LocationID: order.LocationID,
			RefundedAt: order.CompletedAt,
			Lines:      ret.Lines,
		}, customerID, source)
		result.Lines = append(result.Lines, lines...)
	}

	if s.autoRedeem {
		for _, reward := range redeemTargets {
			s.autoRedeemReward(ctx, order, customerID, reward, result)
		}
	}

	result.Processed = anyProcessed(result.Lines)
	return result, nil
}

// ProcessRefund 处理退款，客户优先取原订单已记录事件中的客户
func (s *OrderIntakeService) ProcessRefund(ctx context.Context, refund RefundOrderInput) (*OrderResult, error) {
	refund.MerchantID = strings.TrimSpace(refund.MerchantID)
	refund.OrderID = strings.TrimSpace(refund.OrderID)
	if refund.MerchantID == "" {
		return nil, ErrMerchantRequired
	}
	if refund.OrderID == "" {
		return nil, ErrOrderRequired
	}
	result := &OrderResult{MerchantID: refund.MerchantID, OrderID: refund.OrderID}
	if len(refund.Lines) == 0 {
		result.Reason = constants.ReasonNoLineItems
		return result, nil
	}

	customerID, source, err := s.resolver.Resolve(ctx, CustomerHints{
		MerchantID:        refund.MerchantID,
		OrderID:           refund.OrderID,
		CustomerID:        refund.CustomerID,
		TenderCustomerIDs: refund.TenderCustomerIDs,
		DiscountIDs:       collectDiscountIDs(refund.Lines),
		Contacts:          refund.Contacts,
		PreferRecorded:    true,
	})
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		result.Reason = constants.ReasonNoCustomer
		return result, nil
	}
	result.CustomerID = customerID
	result.CustomerSource = source
	result.Lines = s.refundLines(ctx, refund, customerID, source)
	result.Processed = anyProcessed(result.Lines)
	return result, nil
}

// refundLines 逐行冲正；免费行与本活动奖励兑换行从未累计，同样跳过
func (s *OrderIntakeService) refundLines(ctx context.Context, refund RefundOrderInput, customerID, source string) []LineResult {
	ownRewards, err := s.rewardsByDiscount(refund.MerchantID, refund.Lines)
	if err != nil {
		logger.Warnw("loyalty_refund_reward_lookup_failed", "merchant_id", refund.MerchantID, "order_id", refund.OrderID, "error", err)
		ownRewards = nil
	}
	results := make([]LineResult, 0, len(refund.Lines))
	for _, line := range refund.Lines {
		lineResult := LineResult{LineUID: line.UID, VariationID: strings.TrimSpace(line.VariationID), Quantity: line.Quantity, Refund: true}
		if matchOwnReward(line, ownRewards) != nil {
			lineResult.Reason = constants.ReasonSelfRedeemed
			results = append(results, lineResult)
			continue
		}
		if reason := lineSkipReason(line); reason != "" {
			lineResult.Reason = reason
			results = append(results, lineResult)
			continue
		}
		processed, err := s.loyalty.RecordRefund(ctx, RefundInput{
			MerchantID:     refund.MerchantID,
			OrderID:        refund.OrderID,
			CustomerID:     customerID,
			VariationID:    lineResult.VariationID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			RefundedAt:     refund.RefundedAt,
			RefundID:       refund.RefundID,
			LocationID:     refund.LocationID,
			CustomerSource: source,
		})
		applyLineOutcome(&lineResult, processed, err)
		if err != nil {
			logger.Warnw("loyalty_refund_line_failed",
				"merchant_id", refund.MerchantID,
				"order_id", refund.OrderID,
				"refund_id", refund.RefundID,
				"variation_id", lineResult.VariationID,
				"error", err,
			)
		}
		results = append(results, lineResult)
	}
	return results
}

func (s *OrderIntakeService) autoRedeemReward(ctx context.Context, order OrderInput, customerID string, reward *models.Reward, result *OrderResult) {
	if reward.Status != constants.RewardStatusEarned {
		return
	}
	redeemed, err := s.loyalty.Redeem(ctx, RedemptionInput{
		MerchantID:     order.MerchantID,
		RewardID:       reward.ID,
		OrderID:        order.OrderID,
		CustomerID:     customerID,
		RedemptionType: constants.RedemptionTypeAutoDetected,
		Notes:          "discount detected on order",
	})
	if err != nil {
		logger.Warnw("loyalty_auto_redeem_failed",
			"merchant_id", order.MerchantID,
			"order_id", order.OrderID,
			"reward_id", reward.ID,
			"error", err,
		)
		result.Errors = append(result.Errors, err.Error())
		return
	}
	result.RedeemedRewards = append(result.RedeemedRewards, redeemed.Reward.ID)
}

func (s *OrderIntakeService) rewardsByDiscount(merchantID string, lines []OrderLineInput) (map[string]*models.Reward, error) {
	ids := collectDiscountIDs(lines)
	if len(ids) == 0 {
		return nil, nil
	}
	rewards, err := s.rewards.ListByExternalDiscountRefs(merchantID, ids)
	if err != nil {
		return nil, err
	}
	byRef := make(map[string]*models.Reward, len(rewards))
	for i := range rewards {
		byRef[rewards[i].ExternalDiscountRef] = &rewards[i]
	}
	return byRef, nil
}

// lineSkipReason 数量非法、缺少规格或 100% 折扣的行不参与累计与冲正
func lineSkipReason(line OrderLineInput) string {
	if line.Quantity <= 0 || strings.TrimSpace(line.VariationID) == "" {
		return constants.ReasonInvalidLine
	}
	if line.GrossSalesCents > 0 && line.TotalCents == 0 {
		return constants.ReasonFreeItem
	}
	return ""
}

func matchOwnReward(line OrderLineInput, byRef map[string]*models.Reward) *models.Reward {
	if len(byRef) == 0 {
		return nil
	}
	for _, id := range line.DiscountIDs {
		if reward, ok := byRef[strings.TrimSpace(id)]; ok {
			return reward
		}
	}
	return nil
}

func applyLineOutcome(line *LineResult, processed *ProcessingResult, err error) {
	if err != nil {
		line.Reason = constants.ReasonLineFailed
		line.Error = err.Error()
		return
	}
	line.Processed = processed.Processed
	line.Reason = processed.Reason
	line.RewardProgress = processed.RewardProgress
	if processed.Event != nil {
		line.EventID = processed.Event.ID
	}
}

func collectDiscountIDs(lines []OrderLineInput) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, line := range lines {
		for _, id := range line.DiscountIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func appendReward(list []*models.Reward, reward *models.Reward) []*models.Reward {
	for _, existing := range list {
		if existing.ID == reward.ID {
			return list
		}
	}
	return append(list, reward)
}

func anyProcessed(lines []LineResult) bool {
	for _, line := range lines {
		if line.Processed {
			return true
		}
	}
	return false
}
