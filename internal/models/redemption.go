package models

import "time"

// Redemption 奖励兑换记录（不可变）
type Redemption struct {
	ID                  uint      `gorm:"primarykey" json:"id"`
	MerchantID          string    `gorm:"type:varchar(64);index;not null" json:"merchant_id"`
	RewardID            uint      `gorm:"uniqueIndex;not null" json:"reward_id"`
	OfferID             uint      `gorm:"index;not null" json:"offer_id"`
	CustomerID          string    `gorm:"type:varchar(64);index;not null" json:"customer_id"`
	OrderID             string    `gorm:"type:varchar(64);index;not null;default:''" json:"order_id"`
	RedemptionType      string    `gorm:"type:varchar(30);not null" json:"redemption_type"`
	RedeemedVariationID string    `gorm:"type:varchar(64);not null;default:''" json:"redeemed_variation_id,omitempty"`
	ValueCents          int64     `gorm:"not null;default:0" json:"value_cents"`
	ActorID             string    `gorm:"type:varchar(64);not null;default:''" json:"actor_id,omitempty"`
	Notes               string    `gorm:"type:text" json:"notes,omitempty"`
	RedeemedAt          time.Time `gorm:"index" json:"redeemed_at"`
	CreatedAt           time.Time `json:"created_at"`
}

// TableName 指定表名
func (Redemption) TableName() string {
	return "loyalty_redemptions"
}
