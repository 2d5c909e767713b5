package models

import "time"

// OutboxMessage 事务外副作用的投递记录（发放折扣、清理折扣、奖励事件）
type OutboxMessage struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	MessageID     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"message_id"`
	MerchantID    string     `gorm:"type:varchar(64);index;not null" json:"merchant_id"`
	Kind          string     `gorm:"type:varchar(40);index;not null" json:"kind"`
	RewardID      uint       `gorm:"index;not null;default:0" json:"reward_id"`
	PayloadJSON   JSON       `gorm:"type:json" json:"payload"`
	Status        string     `gorm:"type:varchar(20);index:idx_loyalty_outbox_due,priority:1;not null" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time  `gorm:"index:idx_loyalty_outbox_due,priority:2;not null" json:"next_attempt_at"`
	LastError     string     `gorm:"type:text" json:"last_error,omitempty"`
	DispatchedAt  *time.Time `json:"dispatched_at"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "loyalty_outbox_messages"
}
