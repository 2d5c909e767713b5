package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shelfline-next/internal/models"
)

func TestAssignVariationRejectsConflicts(t *testing.T) {
	f := newLoyaltyFixture(t, 12, 6)
	other := f.createOffer(t, testMerchant, 6, 3)

	_, err := f.offers.AssignVariation(context.Background(), VariationAssignInput{MerchantID: testMerchant, OfferID: other.ID, VariationID: testVariation})
	if !errors.Is(err, ErrVariationConflict) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected variation conflict, got %v", err)
	}

	// 同一活动重复关联视为更新
	link, err := f.offers.AssignVariation(context.Background(), VariationAssignInput{MerchantID: testMerchant, OfferID: f.offer.ID, VariationID: testVariation, VariationName: "12kg bag"})
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	if link.VariationName != "12kg bag" || !link.IsActive {
		t.Fatalf("unexpected link: %+v", link)
	}

	// 其他商户可以使用相同规格 ID
	f.createOffer(t, "merchant-b", 12, 6, testVariation)

	if _, err := f.offers.Deactivate(context.Background(), testMerchant, other.ID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	_, err = f.offers.AssignVariation(context.Background(), VariationAssignInput{MerchantID: testMerchant, OfferID: other.ID, VariationID: "var-2"})
	if !errors.Is(err, ErrOfferInactive) {
		t.Fatalf("expected inactive offer error, got %v", err)
	}
	_, err = f.offers.AssignVariation(context.Background(), VariationAssignInput{MerchantID: testMerchant, OfferID: 9999, VariationID: "var-2"})
	if !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("expected offer not found, got %v", err)
	}
}

func TestOfferLookupCacheFollowsChanges(t *testing.T) {
	f := newLoyaltyFixture(t, 12, 6)
	ctx := context.Background()

	missing, err := f.offers.GetOfferForVariation(ctx, "var-2", testMerchant)
	if err != nil || missing != nil {
		t.Fatalf("expected no offer for unlinked variation, got %+v err=%v", missing, err)
	}
	if _, err := f.offers.AssignVariation(ctx, VariationAssignInput{MerchantID: testMerchant, OfferID: f.offer.ID, VariationID: "var-2"}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	found, err := f.offers.GetOfferForVariation(ctx, "var-2", testMerchant)
	if err != nil || found == nil || found.ID != f.offer.ID {
		t.Fatalf("expected cached miss to be invalidated, got %+v err=%v", found, err)
	}

	// 绕过服务直接改库，缓存命中期间仍返回旧值
	if err := f.db.Model(&models.LoyaltyOffer{}).Where("id = ?", f.offer.ID).Update("name", "renamed").Error; err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	cached, _ := f.offers.GetOfferForVariation(ctx, "var-2", testMerchant)
	if cached == nil || cached.Name == "renamed" {
		t.Fatalf("expected cached offer, got %+v", cached)
	}

	if err := f.offers.RemoveVariation(ctx, testMerchant, f.offer.ID, "var-2"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if removed, _ := f.offers.GetOfferForVariation(ctx, "var-2", testMerchant); removed != nil {
		t.Fatalf("expected removed variation to stop qualifying")
	}
	if err := f.offers.RemoveVariation(ctx, testMerchant, f.offer.ID, "var-missing"); !errors.Is(err, ErrVariationNotFound) {
		t.Fatalf("expected variation not found, got %v", err)
	}

	if _, err := f.offers.Deactivate(ctx, testMerchant, f.offer.ID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if inactive, _ := f.offers.GetOfferForVariation(ctx, testVariation, testMerchant); inactive != nil {
		t.Fatalf("expected inactive offer to stop qualifying")
	}
}

func TestCreateOfferValidatesInput(t *testing.T) {
	f := newLoyaltyFixture(t, 12, 6)
	cases := []struct {
		name  string
		input OfferInput
		want  error
	}{
		{"merchant", OfferInput{Name: "x", BrandName: "y", RequiredQuantity: 1, WindowMonths: 1}, ErrMerchantRequired},
		{"name", OfferInput{MerchantID: testMerchant, BrandName: "y", RequiredQuantity: 1, WindowMonths: 1}, ErrOfferNameRequired},
		{"required", OfferInput{MerchantID: testMerchant, Name: "x", BrandName: "y", WindowMonths: 1}, ErrOfferRequiredQty},
		{"window", OfferInput{MerchantID: testMerchant, Name: "x", BrandName: "y", RequiredQuantity: 1}, ErrOfferWindowInvalid},
	}
	for _, tc := range cases {
		if _, err := f.offers.Create(tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
