package service

import (
	"context"

	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/pos"
)

// OfferLookup 规格 -> 启用活动查询
type OfferLookup interface {
	GetOfferForVariation(ctx context.Context, variationID, merchantID string) (*models.LoyaltyOffer, error)
}

// ExternalDiscount 收银平台折扣发放与清理，调用失败只记录日志
type ExternalDiscount interface {
	IssueDiscount(ctx context.Context, input pos.DiscountIssueInput) (*pos.DiscountRefs, error)
	CleanupDiscount(ctx context.Context, input pos.DiscountCleanupInput) error
}

// LoyaltyEventLookup 通过订单反查积分事件对应的客户
type LoyaltyEventLookup interface {
	FindCustomerByOrder(ctx context.Context, merchantID, orderID string) (string, error)
}

// ContactLookup 通过履约联系方式匹配客户
type ContactLookup interface {
	FindCustomerByContact(ctx context.Context, merchantID, phone, email string) (string, error)
}

// EventPublisher 奖励生命周期事件发布
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}
