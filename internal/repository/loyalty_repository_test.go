package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupLoyaltyRepositoryTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:loyalty_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.LoyaltyOffer{},
		&models.QualifyingVariation{},
		&models.PurchaseEvent{},
		&models.Reward{},
		&models.Redemption{},
		&models.CustomerSummary{},
		&models.LoyaltyAuditLog{},
		&models.OutboxMessage{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func createRepoEvent(t *testing.T, db *gorm.DB, merchantID string, offerID uint, key string, qty int, purchasedAt time.Time, windowEnd time.Time) models.PurchaseEvent {
	t.Helper()
	event := models.PurchaseEvent{
		MerchantID:      merchantID,
		OfferID:         offerID,
		CustomerID:      "cust-1",
		OrderID:         "order-" + key,
		VariationID:     "var-1",
		Quantity:        qty,
		PurchasedAt:     purchasedAt,
		WindowStartDate: purchasedAt,
		WindowEndDate:   windowEnd,
		IdempotencyKey:  key,
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("create event failed: %v", err)
	}
	return event
}

func TestOfferRepositoryActiveOfferForVariationIsTenantScoped(t *testing.T) {
	db := setupLoyaltyRepositoryTest(t)
	repo := NewOfferRepository(db)

	offerA := &models.LoyaltyOffer{MerchantID: "m-a", Name: "A", BrandName: "Brand", RequiredQuantity: 12, RewardQuantity: 1, WindowMonths: 6, IsActive: true}
	offerB := &models.LoyaltyOffer{MerchantID: "m-b", Name: "B", BrandName: "Brand", RequiredQuantity: 5, RewardQuantity: 1, WindowMonths: 3, IsActive: true}
	if err := repo.Create(offerA); err != nil {
		t.Fatalf("create offer a failed: %v", err)
	}
	if err := repo.Create(offerB); err != nil {
		t.Fatalf("create offer b failed: %v", err)
	}
	if err := repo.CreateVariation(&models.QualifyingVariation{MerchantID: "m-a", OfferID: offerA.ID, VariationID: "var-1", IsActive: true}); err != nil {
		t.Fatalf("create variation failed: %v", err)
	}

	got, err := repo.GetActiveOfferForVariation("m-a", "var-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got == nil || got.ID != offerA.ID {
		t.Fatalf("expected offer a, got %+v", got)
	}

	other, err := repo.GetActiveOfferForVariation("m-b", "var-1")
	if err != nil {
		t.Fatalf("lookup other tenant failed: %v", err)
	}
	if other != nil {
		t.Fatalf("expected no offer for other tenant, got %+v", other)
	}

	offerA.IsActive = false
	if err := repo.Update(offerA); err != nil {
		t.Fatalf("deactivate offer failed: %v", err)
	}
	inactive, err := repo.GetActiveOfferForVariation("m-a", "var-1")
	if err != nil {
		t.Fatalf("lookup after deactivate failed: %v", err)
	}
	if inactive != nil {
		t.Fatalf("expected nil for inactive offer")
	}
}

func TestPurchaseEventRepositoryListUnlockedActiveOrderAndExpiry(t *testing.T) {
	db := setupLoyaltyRepositoryTest(t)
	repo := NewPurchaseEventRepository(db)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	later := createRepoEvent(t, db, "m-a", 1, "k-later", 2, today.AddDate(0, 0, -1), today.AddDate(0, 6, 0))
	earlier := createRepoEvent(t, db, "m-a", 1, "k-earlier", 3, today.AddDate(0, 0, -5), today.AddDate(0, 6, 0))
	createRepoEvent(t, db, "m-a", 1, "k-expired", 9, today.AddDate(-1, 0, 0), today.AddDate(0, 0, -1))
	createRepoEvent(t, db, "m-b", 1, "k-other", 4, today.AddDate(0, 0, -2), today.AddDate(0, 6, 0))

	events, err := repo.ListUnlockedActive("m-a", "cust-1", 1, today)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 active events, got %d", len(events))
	}
	if events[0].ID != earlier.ID || events[1].ID != later.ID {
		t.Fatalf("unexpected order: %d, %d", events[0].ID, events[1].ID)
	}
}

func TestPurchaseEventRepositoryLockSumAndUnlock(t *testing.T) {
	db := setupLoyaltyRepositoryTest(t)
	repo := NewPurchaseEventRepository(db)
	now := time.Now().UTC()

	first := createRepoEvent(t, db, "m-a", 1, "k-1", 5, now, now.AddDate(0, 6, 0))
	second := createRepoEvent(t, db, "m-a", 1, "k-2", 4, now, now.AddDate(0, 6, 0))
	if err := repo.LockToReward("m-a", []uint{first.ID, second.ID}, 77); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	sum, err := repo.SumLockedQuantity("m-a", 77)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if sum != 9 {
		t.Fatalf("expected locked sum 9, got %d", sum)
	}
	otherTenantSum, err := repo.SumLockedQuantity("m-b", 77)
	if err != nil {
		t.Fatalf("sum other tenant failed: %v", err)
	}
	if otherTenantSum != 0 {
		t.Fatalf("expected 0 for other tenant, got %d", otherTenantSum)
	}

	affected, err := repo.UnlockReward("m-a", 77)
	if err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 unlocked rows, got %d", affected)
	}
	locked, err := repo.ListByReward("m-a", 77)
	if err != nil {
		t.Fatalf("list by reward failed: %v", err)
	}
	if len(locked) != 0 {
		t.Fatalf("expected no locked events after unlock")
	}
}

func TestCustomerSummaryRepositoryEnsurePairIsIdempotent(t *testing.T) {
	db := setupLoyaltyRepositoryTest(t)
	repo := NewCustomerSummaryRepository(db)

	for i := 0; i < 3; i++ {
		if err := repo.EnsurePair("m-a", "cust-1", 1); err != nil {
			t.Fatalf("ensure pair attempt %d failed: %v", i, err)
		}
	}
	var count int64
	if err := db.Model(&models.CustomerSummary{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one summary row, got %d", count)
	}
	row, err := repo.GetForUpdate("m-a", "cust-1", 1)
	if err != nil || row == nil {
		t.Fatalf("get for update failed: %v", err)
	}
}

func TestOutboxRepositoryClaimIsExclusive(t *testing.T) {
	db := setupLoyaltyRepositoryTest(t)
	repo := NewOutboxRepository(db)
	now := time.Now().UTC()

	message := &models.OutboxMessage{
		MessageID:     "msg-1",
		MerchantID:    "m-a",
		Kind:          constants.OutboxKindDiscountIssue,
		RewardID:      1,
		Status:        constants.OutboxStatusPending,
		NextAttemptAt: now.Add(-time.Second),
	}
	if err := repo.Create(message); err != nil {
		t.Fatalf("create message failed: %v", err)
	}

	due, err := repo.ListDue(now, 10)
	if err != nil {
		t.Fatalf("list due failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected one due message, got %d", len(due))
	}

	claimed, err := repo.Claim(message.ID, now, now.Add(time.Minute))
	if err != nil || !claimed {
		t.Fatalf("expected first claim to succeed, claimed=%v err=%v", claimed, err)
	}
	again, err := repo.Claim(message.ID, now, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if again {
		t.Fatalf("expected second claim to be rejected")
	}

	if err := repo.MarkFailed(message.ID, 8, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	reset, err := repo.ResetFailed("m-a", now)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected one reset row, got %d", reset)
	}
}
