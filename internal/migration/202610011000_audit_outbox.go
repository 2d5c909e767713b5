package migration

import (
	"github.com/shelfline-next/internal/models"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// AuditAndOutbox 审计日志与副作用投递表
var AuditAndOutbox = &gormigrate.Migration{
	ID: "202610011000-audit-outbox",
	Migrate: func(db *gorm.DB) error {
		return db.AutoMigrate(&models.LoyaltyAuditLog{}, &models.OutboxMessage{})
	},
	Rollback: func(db *gorm.DB) error {
		return db.Migrator().DropTable(&models.OutboxMessage{}, &models.LoyaltyAuditLog{})
	},
}
