package models

import "time"

// CustomerSummary 客户进度投影（每次变更后整体重建）
// 说明：同一行也是（客户，活动）并发写入的串行化锁点。
type CustomerSummary struct {
	ID                        uint       `gorm:"primarykey" json:"id"`
	MerchantID                string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_loyalty_summary_pair,priority:1" json:"merchant_id"`
	CustomerID                string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_loyalty_summary_pair,priority:2" json:"customer_id"`
	OfferID                   uint       `gorm:"not null;uniqueIndex:idx_loyalty_summary_pair,priority:3" json:"offer_id"`
	CurrentQuantity           int        `gorm:"not null;default:0" json:"current_quantity"`
	RequiredQuantity          int        `gorm:"not null;default:0" json:"required_quantity"`
	WindowStartDate           *time.Time `json:"window_start_date"`
	WindowEndDate             *time.Time `json:"window_end_date"`
	HasEarnedReward           bool       `gorm:"not null;default:false" json:"has_earned_reward"`
	EarnedRewardCount         int        `gorm:"not null;default:0" json:"earned_reward_count"`
	LifetimePurchasedQuantity int        `gorm:"not null;default:0" json:"lifetime_purchased_quantity"`
	LifetimeRefundedQuantity  int        `gorm:"not null;default:0" json:"lifetime_refunded_quantity"`
	LifetimeSpendCents        int64      `gorm:"not null;default:0" json:"lifetime_spend_cents"`
	TotalRewardsEarned        int        `gorm:"not null;default:0" json:"total_rewards_earned"`
	TotalRewardsRedeemed      int        `gorm:"not null;default:0" json:"total_rewards_redeemed"`
	TotalRewardsRevoked       int        `gorm:"not null;default:0" json:"total_rewards_revoked"`
	LastPurchaseAt            *time.Time `json:"last_purchase_at"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `gorm:"index" json:"updated_at"`
}

// TableName 指定表名
func (CustomerSummary) TableName() string {
	return "loyalty_customer_summaries"
}
