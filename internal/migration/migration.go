package migration

import (
	"github.com/shelfline-next/internal/logger"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// All 按顺序返回全部版本化迁移
func All() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		LoyaltyCore,
		AuditAndOutbox,
		RewardDiscountRefs,
		EventSplit,
	}
}

// Run 执行未应用的迁移
func Run(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, All())
	if err := m.Migrate(); err != nil {
		logger.Errorw("migration_failed", "error", err)
		return err
	}
	logger.Infow("migration_completed", "count", len(All()))
	return nil
}

// RollbackLast 回滚最近一次迁移
func RollbackLast(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, All())
	return m.RollbackLast()
}
