package migration

import (
	"github.com/shelfline-next/internal/models"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// EventSplit 购买事件补充拆分来源，达成奖励时超出门槛的数量结转到下一轮
var EventSplit = &gormigrate.Migration{
	ID: "202610141000-event-split",
	Migrate: func(db *gorm.DB) error {
		migrator := db.Migrator()
		if !migrator.HasColumn(&models.PurchaseEvent{}, "SplitFromID") {
			if err := migrator.AddColumn(&models.PurchaseEvent{}, "SplitFromID"); err != nil {
				return err
			}
		}
		if !migrator.HasIndex(&models.PurchaseEvent{}, "SplitFromID") {
			return migrator.CreateIndex(&models.PurchaseEvent{}, "SplitFromID")
		}
		return nil
	},
	Rollback: func(db *gorm.DB) error {
		migrator := db.Migrator()
		if migrator.HasColumn(&models.PurchaseEvent{}, "SplitFromID") {
			return migrator.DropColumn(&models.PurchaseEvent{}, "SplitFromID")
		}
		return nil
	},
}
