package models

import "time"

// Reward 每个（客户，活动）的奖励状态机实例
type Reward struct {
	ID                uint       `gorm:"primarykey" json:"id"`
	MerchantID        string     `gorm:"type:varchar(64);not null;index:idx_loyalty_reward_pair,priority:1" json:"merchant_id"`
	CustomerID        string     `gorm:"type:varchar(64);not null;index:idx_loyalty_reward_pair,priority:2" json:"customer_id"`
	OfferID           uint       `gorm:"not null;index:idx_loyalty_reward_pair,priority:3" json:"offer_id"`
	Status            string     `gorm:"type:varchar(20);not null;index" json:"status"`
	CurrentQuantity   int        `gorm:"not null;default:0" json:"current_quantity"`
	RequiredQuantity  int        `gorm:"not null" json:"required_quantity"`
	WindowStartDate   *time.Time `json:"window_start_date"`
	WindowEndDate     *time.Time `json:"window_end_date"`
	EarnedAt          *time.Time `json:"earned_at"`
	RedeemedAt        *time.Time `json:"redeemed_at"`
	RevokedAt         *time.Time `json:"revoked_at"`
	RevocationReason  string     `gorm:"type:varchar(100);not null;default:''" json:"revocation_reason,omitempty"`
	RedemptionID      *uint      `json:"redemption_id"`
	RedemptionOrderID string     `gorm:"type:varchar(64);not null;default:''" json:"redemption_order_id,omitempty"`

	// 收银平台折扣对象引用（由异步发放回填）
	ExternalDiscountRef    string     `gorm:"column:external_discount_reference;type:varchar(64);not null;default:'';index" json:"external_discount_reference"`
	ExternalGroupRef       string     `gorm:"type:varchar(64);not null;default:''" json:"external_group_reference"`
	ExternalPricingRuleRef string     `gorm:"type:varchar(64);not null;default:''" json:"external_pricing_rule_reference"`
	ExternalProductSetRef  string     `gorm:"type:varchar(64);not null;default:''" json:"external_product_set_reference"`
	DiscountIssuedAt       *time.Time `json:"discount_issued_at"`
	DiscountCleanedAt      *time.Time `json:"discount_cleaned_at"`

	CreatedAt time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Offer     *LoyaltyOffer `gorm:"foreignKey:OfferID" json:"offer,omitempty"`
}

// TableName 指定表名
func (Reward) TableName() string {
	return "loyalty_rewards"
}
