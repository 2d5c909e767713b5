//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/migration"
	"github.com/shelfline-next/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.OutboxMessage{},
		&models.LoyaltyAuditLog{},
		&models.CustomerSummary{},
		&models.Redemption{},
		&models.PurchaseEvent{},
		&models.Reward{},
		&models.QualifyingVariation{},
		&models.LoyaltyOffer{},
		"migrations",
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := migration.Run(db); err != nil {
		t.Fatalf("migrate postgres failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresOfferSearchIsCaseInsensitive(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewOfferRepository(db)

	for _, offer := range []*models.LoyaltyOffer{
		{MerchantID: "pg-m", Name: "Large Latte", BrandName: "House", RequiredQuantity: 10, WindowMonths: 12, IsActive: true},
		{MerchantID: "pg-m", Name: "Bagel 100%", BrandName: "Bakery", RequiredQuantity: 6, WindowMonths: 6, IsActive: true},
		{MerchantID: "pg-other", Name: "Large Latte", BrandName: "House", RequiredQuantity: 10, WindowMonths: 12, IsActive: true},
	} {
		if err := repo.Create(offer); err != nil {
			t.Fatalf("create offer failed: %v", err)
		}
	}

	offers, total, err := repo.List(OfferListFilter{MerchantID: "pg-m", Search: "latte", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list offers failed: %v", err)
	}
	if total != 1 || len(offers) != 1 || offers[0].Name != "Large Latte" {
		t.Fatalf("unexpected search result total=%d offers=%+v", total, offers)
	}

	offers, total, err = repo.List(OfferListFilter{MerchantID: "pg-m", Search: "100%", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list offers with wildcard failed: %v", err)
	}
	if total != 1 || offers[0].BrandName != "Bakery" {
		t.Fatalf("wildcard should match literally, total=%d offers=%+v", total, offers)
	}
}

func TestPostgresPurchaseEventIdempotencyKeyIsUnique(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	offerRepo := NewOfferRepository(db)
	eventRepo := NewPurchaseEventRepository(db)

	offer := &models.LoyaltyOffer{MerchantID: "pg-m", Name: "Latte", BrandName: "House", RequiredQuantity: 3, WindowMonths: 12, IsActive: true}
	if err := offerRepo.Create(offer); err != nil {
		t.Fatalf("create offer failed: %v", err)
	}

	now := time.Now().UTC()
	newEvent := func() *models.PurchaseEvent {
		return &models.PurchaseEvent{
			MerchantID:      "pg-m",
			OfferID:         offer.ID,
			CustomerID:      "cust-1",
			OrderID:         "ord-1",
			VariationID:     "var-1",
			Quantity:        1,
			PurchasedAt:     now,
			WindowStartDate: now,
			WindowEndDate:   now.AddDate(1, 0, 0),
			IdempotencyKey:  "purchase:ord-1:var-1",
		}
	}
	if err := eventRepo.Create(newEvent()); err != nil {
		t.Fatalf("create event failed: %v", err)
	}
	err := eventRepo.Create(newEvent())
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "duplicate key") {
		t.Fatalf("expected duplicate key violation, got %v", err)
	}

	// 同一幂等键在其他商户下允许存在
	other := newEvent()
	other.MerchantID = "pg-other"
	if err := eventRepo.Create(other); err != nil {
		t.Fatalf("create event for other merchant failed: %v", err)
	}
}

func TestPostgresRewardLockingWithinTransaction(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	rewardRepo := NewRewardRepository(db)
	offer := &models.LoyaltyOffer{MerchantID: "pg-m", Name: "Latte", BrandName: "House", RequiredQuantity: 3, WindowMonths: 12, IsActive: true}
	if err := NewOfferRepository(db).Create(offer); err != nil {
		t.Fatalf("create offer failed: %v", err)
	}

	reward := &models.Reward{
		MerchantID:       "pg-m",
		CustomerID:       "cust-1",
		OfferID:          offer.ID,
		Status:           constants.RewardStatusInProgress,
		RequiredQuantity: 3,
	}
	if err := rewardRepo.Create(reward); err != nil {
		t.Fatalf("create reward failed: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := rewardRepo.WithTx(tx).GetInProgressForUpdate("pg-m", "cust-1", offer.ID)
		if err != nil {
			return err
		}
		if locked == nil || locked.ID != reward.ID {
			t.Fatalf("expected locked reward %d, got %+v", reward.ID, locked)
		}
		locked.CurrentQuantity = 2
		return rewardRepo.WithTx(tx).Update(locked)
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	stored, err := rewardRepo.GetByID("pg-m", reward.ID)
	if err != nil || stored == nil || stored.CurrentQuantity != 2 {
		t.Fatalf("unexpected stored reward %+v err=%v", stored, err)
	}
	missing, err := rewardRepo.GetByID("pg-other", reward.ID)
	if err != nil || missing != nil {
		t.Fatalf("reward must be merchant scoped, got %+v err=%v", missing, err)
	}
}
