package models

import "time"

// LoyaltyAuditLog 常客奖励审计日志（仅追加）
type LoyaltyAuditLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	MerchantID string    `gorm:"type:varchar(64);index;not null" json:"merchant_id"`
	EventType  string    `gorm:"type:varchar(50);index;not null" json:"event_type"`
	CustomerID string    `gorm:"type:varchar(64);index;not null;default:''" json:"customer_id"`
	OfferID    *uint     `gorm:"index" json:"offer_id,omitempty"`
	RewardID   *uint     `gorm:"index" json:"reward_id,omitempty"`
	EventID    *uint     `json:"event_id,omitempty"`
	OrderID    string    `gorm:"type:varchar(64);not null;default:''" json:"order_id,omitempty"`
	Quantity   int       `gorm:"not null;default:0" json:"quantity"`
	ActorID    string    `gorm:"type:varchar(64);not null;default:''" json:"actor_id,omitempty"`
	DetailJSON JSON      `gorm:"type:json" json:"detail"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (LoyaltyAuditLog) TableName() string {
	return "loyalty_audit_logs"
}
