package migration

import (
	"github.com/shelfline-next/internal/models"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// RewardDiscountRefs 奖励表补充折扣对象引用与发放时间
var RewardDiscountRefs = &gormigrate.Migration{
	ID: "202610081400-reward-discount-refs",
	Migrate: func(db *gorm.DB) error {
		migrator := db.Migrator()
		for _, column := range []string{
			"ExternalGroupRef",
			"ExternalPricingRuleRef",
			"ExternalProductSetRef",
			"DiscountIssuedAt",
			"DiscountCleanedAt",
		} {
			if migrator.HasColumn(&models.Reward{}, column) {
				continue
			}
			if err := migrator.AddColumn(&models.Reward{}, column); err != nil {
				return err
			}
		}
		return nil
	},
	Rollback: func(db *gorm.DB) error {
		migrator := db.Migrator()
		for _, column := range []string{"DiscountCleanedAt", "DiscountIssuedAt"} {
			if migrator.HasColumn(&models.Reward{}, column) {
				if err := migrator.DropColumn(&models.Reward{}, column); err != nil {
					return err
				}
			}
		}
		return nil
	},
}
