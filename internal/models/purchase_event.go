package models

import "time"

// PurchaseEvent 累计或冲正记录
// 说明：除 reward_id 的锁定与解锁外不可修改；数量为负表示退款冲正。
// SplitFromID 非空表示拆分事件：负数部分随奖励锁定，正数部分为结转到下一轮的剩余数量。
type PurchaseEvent struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	MerchantID      string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_loyalty_event_idem,priority:1;index:idx_loyalty_event_pair,priority:1" json:"merchant_id"`
	OfferID         uint      `gorm:"not null;index:idx_loyalty_event_pair,priority:3" json:"offer_id"`
	CustomerID      string    `gorm:"type:varchar(64);not null;index:idx_loyalty_event_pair,priority:2" json:"customer_id"`
	OrderID         string    `gorm:"type:varchar(64);not null;index" json:"order_id"`
	VariationID     string    `gorm:"type:varchar(64);not null" json:"variation_id"`
	Quantity        int       `gorm:"not null" json:"quantity"`
	UnitPriceCents  int64     `gorm:"not null;default:0" json:"unit_price_cents"`
	PurchasedAt     time.Time `gorm:"not null;index" json:"purchased_at"`
	WindowStartDate time.Time `gorm:"not null" json:"window_start_date"`
	WindowEndDate   time.Time `gorm:"not null;index" json:"window_end_date"`
	IsRefund        bool      `gorm:"not null;default:false" json:"is_refund"`
	RewardID        *uint     `gorm:"index" json:"reward_id"`
	OriginalEventID *uint     `json:"original_event_id,omitempty"`
	SplitFromID     *uint     `gorm:"index" json:"split_from_id,omitempty"`
	RefundID        string    `gorm:"type:varchar(64);not null;default:''" json:"refund_id,omitempty"`
	LocationID      string    `gorm:"type:varchar(64);not null;default:''" json:"location_id,omitempty"`
	ReceiptURL      string    `gorm:"type:varchar(512);not null;default:''" json:"receipt_url,omitempty"`
	PaymentType     string    `gorm:"type:varchar(50);not null;default:''" json:"payment_type,omitempty"`
	CustomerSource  string    `gorm:"type:varchar(50);not null;default:''" json:"customer_source,omitempty"`
	IdempotencyKey  string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_loyalty_event_idem,priority:2" json:"idempotency_key"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (PurchaseEvent) TableName() string {
	return "loyalty_purchase_events"
}
