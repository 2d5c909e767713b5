package models

import "time"

// LoyaltyOffer 常客奖励活动（一个品牌 + 一个规格组）
type LoyaltyOffer struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                    // 主键
	MerchantID       string    `gorm:"type:varchar(64);index;not null" json:"merchant_id"`      // 商户（租户）
	Name             string    `gorm:"type:varchar(255);not null" json:"name"`                  // 活动名称
	BrandName        string    `gorm:"type:varchar(255);not null" json:"brand_name"`            // 品牌
	SizeGroup        string    `gorm:"type:varchar(100);not null;default:''" json:"size_group"` // 规格组
	Description      string    `gorm:"type:text" json:"description"`                            // 描述
	RequiredQuantity int       `gorm:"not null" json:"required_quantity"`                       // 达成所需数量
	RewardQuantity   int       `gorm:"not null;default:1" json:"reward_quantity"`               // 奖励数量（固定为 1）
	WindowMonths     int       `gorm:"not null" json:"window_months"`                           // 滚动窗口（月）
	IsActive         bool      `gorm:"not null;default:true;index" json:"is_active"`            // 是否启用
	CreatedBy        string    `gorm:"type:varchar(64);not null;default:''" json:"created_by"`  // 创建人
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt        time.Time `gorm:"index" json:"updated_at"`                                 // 更新时间
}

// TableName 指定表名
func (LoyaltyOffer) TableName() string {
	return "loyalty_offers"
}
