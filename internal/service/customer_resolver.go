package service

import (
	"context"
	"strings"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/repository"
)

// CustomerHints 订单上可用于识别客户的线索
type CustomerHints struct {
	MerchantID        string
	OrderID           string
	CustomerID        string
	TenderCustomerIDs []string
	DiscountIDs       []string
	Contacts          []FulfillmentContact
	// 退款时优先复用原订单已记录事件的客户
	PreferRecorded bool
}

// FulfillmentContact 履约收件人联系方式
type FulfillmentContact struct {
	Phone string
	Email string
}

// CustomerResolver 按顺序回退识别付款客户，命中即停止
type CustomerResolver struct {
	events        repository.PurchaseEventRepository
	rewards       repository.RewardRepository
	redemptions   repository.RedemptionRepository
	loyaltyLookup LoyaltyEventLookup
	contacts      ContactLookup
}

// NewCustomerResolver 创建客户识别器，外部查找器可为空
func NewCustomerResolver(events repository.PurchaseEventRepository, rewards repository.RewardRepository, redemptions repository.RedemptionRepository, loyaltyLookup LoyaltyEventLookup, contacts ContactLookup) *CustomerResolver {
	return &CustomerResolver{
		events:        events,
		rewards:       rewards,
		redemptions:   redemptions,
		loyaltyLookup: loyaltyLookup,
		contacts:      contacts,
	}
}

// Resolve 返回客户ID与来源；无法识别时返回空字符串。
// 顺序：订单客户 > 支付客户 > 积分事件反查 > 订单关联奖励 > 履约联系方式。
// 外部查找失败只记录日志并继续下一步，本地存储错误直接返回。
func (r *CustomerResolver) Resolve(ctx context.Context, hints CustomerHints) (string, string, error) {
	merchantID := strings.TrimSpace(hints.MerchantID)
	orderID := strings.TrimSpace(hints.OrderID)

	if hints.PreferRecorded && orderID != "" {
		recorded, err := r.events.ListByOrder(merchantID, orderID)
		if err != nil {
			return "", "", err
		}
		for _, event := range recorded {
			if event.CustomerID != "" {
				return event.CustomerID, constants.CustomerSourcePriorEvent, nil
			}
		}
	}

	if id := strings.TrimSpace(hints.CustomerID); id != "" {
		return id, constants.CustomerSourceOrder, nil
	}
	for _, tenderCustomer := range hints.TenderCustomerIDs {
		if id := strings.TrimSpace(tenderCustomer); id != "" {
			return id, constants.CustomerSourceTender, nil
		}
	}

	if r.loyaltyLookup != nil && orderID != "" {
		id, err := r.loyaltyLookup.FindCustomerByOrder(ctx, merchantID, orderID)
		if err != nil {
			logger.Warnw("loyalty_customer_lookup_by_order_failed", "merchant_id", merchantID, "order_id", orderID, "error", err)
		} else if id = strings.TrimSpace(id); id != "" {
			return id, constants.CustomerSourceLoyaltyEvent, nil
		}
	}

	if orderID != "" {
		redemption, err := r.redemptions.GetLatestByOrderID(merchantID, orderID)
		if err != nil {
			return "", "", err
		}
		if redemption != nil && redemption.CustomerID != "" {
			return redemption.CustomerID, constants.CustomerSourceReward, nil
		}
	}
	if len(hints.DiscountIDs) > 0 {
		rewards, err := r.rewards.ListByExternalDiscountRefs(merchantID, hints.DiscountIDs)
		if err != nil {
			return "", "", err
		}
		for _, reward := range rewards {
			if reward.CustomerID != "" {
				return reward.CustomerID, constants.CustomerSourceReward, nil
			}
		}
	}

	if r.contacts != nil {
		for _, contact := range hints.Contacts {
			phone := strings.TrimSpace(contact.Phone)
			email := strings.TrimSpace(contact.Email)
			if phone == "" && email == "" {
				continue
			}
			id, err := r.contacts.FindCustomerByContact(ctx, merchantID, phone, email)
			if err != nil {
				logger.Warnw("loyalty_customer_lookup_by_contact_failed", "merchant_id", merchantID, "order_id", orderID, "error", err)
				continue
			}
			if id = strings.TrimSpace(id); id != "" {
				return id, constants.CustomerSourceFulfillment, nil
			}
		}
	}
	return "", "", nil
}
