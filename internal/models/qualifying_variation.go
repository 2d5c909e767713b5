package models

import "time"

// QualifyingVariation 参与活动的商品规格
type QualifyingVariation struct {
	ID            uint          `gorm:"primarykey" json:"id"`
	MerchantID    string        `gorm:"type:varchar(64);index:idx_loyalty_variation_lookup,priority:1;not null" json:"merchant_id"`
	OfferID       uint          `gorm:"index;not null" json:"offer_id"`
	VariationID   string        `gorm:"type:varchar(64);index:idx_loyalty_variation_lookup,priority:2;not null" json:"variation_id"`
	ItemID        string        `gorm:"type:varchar(64);not null;default:''" json:"item_id"`
	VariationName string        `gorm:"type:varchar(255);not null;default:''" json:"variation_name"`
	ItemName      string        `gorm:"type:varchar(255);not null;default:''" json:"item_name"`
	IsActive      bool          `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Offer         *LoyaltyOffer `gorm:"foreignKey:OfferID" json:"offer,omitempty"`
}

// TableName 指定表名
func (QualifyingVariation) TableName() string {
	return "loyalty_qualifying_variations"
}
