package migration

import (
	"github.com/shelfline-next/internal/models"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// LoyaltyCore 活动、参与规格、购买事件、奖励、兑换与客户汇总
var LoyaltyCore = &gormigrate.Migration{
	ID: "202610010900-loyalty-core",
	Migrate: func(db *gorm.DB) error {
		return db.AutoMigrate(
			&models.LoyaltyOffer{},
			&models.QualifyingVariation{},
			&models.PurchaseEvent{},
			&models.Reward{},
			&models.Redemption{},
			&models.CustomerSummary{},
		)
	},
	Rollback: func(db *gorm.DB) error {
		return db.Migrator().DropTable(
			&models.CustomerSummary{},
			&models.Redemption{},
			&models.Reward{},
			&models.PurchaseEvent{},
			&models.QualifyingVariation{},
			&models.LoyaltyOffer{},
		)
	},
}
