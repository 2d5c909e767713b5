package service

import (
	"context"
	"strings"
	"time"

	"github.com/shelfline-next/internal/cache"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/repository"

	"gorm.io/gorm"
)

const defaultOfferCacheTTL = 5 * time.Minute

// OfferService 活动与参与规格管理
type OfferService struct {
	repo     repository.OfferRepository
	store    cache.Store
	cacheTTL time.Duration
	clock    Clock
}

// OfferInput 创建/更新活动输入
type OfferInput struct {
	MerchantID       string
	Name             string
	BrandName        string
	SizeGroup        string
	Description      string
	RequiredQuantity int
	WindowMonths     int
	ActorID          string
}

// VariationAssignInput 规格关联输入
type VariationAssignInput struct {
	MerchantID    string
	OfferID       uint
	VariationID   string
	ItemID        string
	VariationName string
	ItemName      string
}

// cachedOffer 缓存条目；Found=false 表示确认无活动
type cachedOffer struct {
	Found bool                `json:"found"`
	Offer models.LoyaltyOffer `json:"offer"`
}

// NewOfferService 创建活动服务，store 为空时不缓存
func NewOfferService(repo repository.OfferRepository, store cache.Store, cacheTTL time.Duration) *OfferService {
	if cacheTTL <= 0 {
		cacheTTL = defaultOfferCacheTTL
	}
	return &OfferService{repo: repo, store: store, cacheTTL: cacheTTL}
}

// GetOfferForVariation 查询规格当前关联的启用活动，未关联返回 nil
func (s *OfferService) GetOfferForVariation(ctx context.Context, variationID, merchantID string) (*models.LoyaltyOffer, error) {
	merchantID = strings.TrimSpace(merchantID)
	variationID = strings.TrimSpace(variationID)
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	if variationID == "" {
		return nil, nil
	}

	key := cache.OfferForVariationKey(merchantID, variationID)
	if s.store != nil {
		var cached cachedOffer
		hit, err := s.store.GetJSON(ctx, key, &cached)
		if err != nil {
			logger.Warnw("loyalty_offer_cache_get_failed", "merchant_id", merchantID, "variation_id", variationID, "error", err)
		} else if hit {
			if !cached.Found {
				return nil, nil
			}
			offer := cached.Offer
			return &offer, nil
		}
	}

	offer, err := s.repo.GetActiveOfferForVariation(merchantID, variationID)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		entry := cachedOffer{Found: offer != nil}
		if offer != nil {
			entry.Offer = *offer
		}
		if err := s.store.SetJSON(ctx, key, entry, s.cacheTTL); err != nil {
			logger.Warnw("loyalty_offer_cache_set_failed", "merchant_id", merchantID, "variation_id", variationID, "error", err)
		}
	}
	return offer, nil
}

// Create 创建活动
func (s *OfferService) Create(input OfferInput) (*models.LoyaltyOffer, error) {
	if err := validateOfferInput(input); err != nil {
		return nil, err
	}
	now := s.clock.now()
	offer := &models.LoyaltyOffer{
		MerchantID:       strings.TrimSpace(input.MerchantID),
		Name:             strings.TrimSpace(input.Name),
		BrandName:        strings.TrimSpace(input.BrandName),
		SizeGroup:        strings.TrimSpace(input.SizeGroup),
		Description:      strings.TrimSpace(input.Description),
		RequiredQuantity: input.RequiredQuantity,
		RewardQuantity:   1,
		WindowMonths:     input.WindowMonths,
		IsActive:         true,
		CreatedBy:        strings.TrimSpace(input.ActorID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(offer); err != nil {
		return nil, err
	}
	return offer, nil
}

// Update 更新活动（规则变更只影响之后创建的奖励）
func (s *OfferService) Update(ctx context.Context, offerID uint, input OfferInput) (*models.LoyaltyOffer, error) {
	if err := validateOfferInput(input); err != nil {
		return nil, err
	}
	offer, err := s.mustGet(input.MerchantID, offerID)
	if err != nil {
		return nil, err
	}
	offer.Name = strings.TrimSpace(input.Name)
	offer.BrandName = strings.TrimSpace(input.BrandName)
	offer.SizeGroup = strings.TrimSpace(input.SizeGroup)
	offer.Description = strings.TrimSpace(input.Description)
	offer.RequiredQuantity = input.RequiredQuantity
	offer.WindowMonths = input.WindowMonths
	offer.RewardQuantity = 1
	offer.UpdatedAt = s.clock.now()
	if err := s.repo.Update(offer); err != nil {
		return nil, err
	}
	s.invalidateOffer(ctx, offer.MerchantID, offer.ID)
	return offer, nil
}

// Deactivate 停用活动（软删除，历史记录保留）
func (s *OfferService) Deactivate(ctx context.Context, merchantID string, offerID uint) (*models.LoyaltyOffer, error) {
	offer, err := s.mustGet(merchantID, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.IsActive {
		return offer, nil
	}
	offer.IsActive = false
	offer.UpdatedAt = s.clock.now()
	if err := s.repo.Update(offer); err != nil {
		return nil, err
	}
	s.invalidateOffer(ctx, offer.MerchantID, offer.ID)
	return offer, nil
}

// Get 获取活动
func (s *OfferService) Get(merchantID string, offerID uint) (*models.LoyaltyOffer, error) {
	return s.mustGet(merchantID, offerID)
}

// List 活动列表
func (s *OfferService) List(filter repository.OfferListFilter) ([]models.LoyaltyOffer, int64, error) {
	if strings.TrimSpace(filter.MerchantID) == "" {
		return nil, 0, ErrMerchantRequired
	}
	return s.repo.List(filter)
}

// ListVariations 活动下的规格
func (s *OfferService) ListVariations(merchantID string, offerID uint, onlyActive bool) ([]models.QualifyingVariation, error) {
	if _, err := s.mustGet(merchantID, offerID); err != nil {
		return nil, err
	}
	return s.repo.ListVariations(strings.TrimSpace(merchantID), offerID, onlyActive)
}

// AssignVariation 关联规格到活动；规格已关联其他启用活动时拒绝
func (s *OfferService) AssignVariation(ctx context.Context, input VariationAssignInput) (*models.QualifyingVariation, error) {
	merchantID := strings.TrimSpace(input.MerchantID)
	variationID := strings.TrimSpace(input.VariationID)
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	if variationID == "" {
		return nil, ErrVariationRequired
	}

	var result *models.QualifyingVariation
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, err := repo.GetByID(merchantID, input.OfferID)
		if err != nil {
			return err
		}
		if offer == nil {
			return ErrOfferNotFound
		}
		if !offer.IsActive {
			return ErrOfferInactive
		}

		active, err := repo.GetActiveVariationLink(merchantID, variationID)
		if err != nil {
			return err
		}
		if active != nil && active.OfferID != offer.ID {
			return ErrVariationConflict
		}

		now := s.clock.now()
		link, err := repo.GetVariationLink(merchantID, offer.ID, variationID)
		if err != nil {
			return err
		}
		if link == nil {
			link = &models.QualifyingVariation{
				MerchantID:    merchantID,
				OfferID:       offer.ID,
				VariationID:   variationID,
				ItemID:        strings.TrimSpace(input.ItemID),
				VariationName: strings.TrimSpace(input.VariationName),
				ItemName:      strings.TrimSpace(input.ItemName),
				IsActive:      true,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := repo.CreateVariation(link); err != nil {
				return err
			}
			result = link
			return nil
		}

		link.IsActive = true
		if name := strings.TrimSpace(input.VariationName); name != "" {
			link.VariationName = name
		}
		if name := strings.TrimSpace(input.ItemName); name != "" {
			link.ItemName = name
		}
		if itemID := strings.TrimSpace(input.ItemID); itemID != "" {
			link.ItemID = itemID
		}
		link.UpdatedAt = now
		if err := repo.UpdateVariation(link); err != nil {
			return err
		}
		result = link
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateVariation(ctx, merchantID, variationID)
	return result, nil
}

// RemoveVariation 解除规格关联（软删除）
func (s *OfferService) RemoveVariation(ctx context.Context, merchantID string, offerID uint, variationID string) error {
	merchantID = strings.TrimSpace(merchantID)
	variationID = strings.TrimSpace(variationID)
	if merchantID == "" {
		return ErrMerchantRequired
	}
	link, err := s.repo.GetVariationLink(merchantID, offerID, variationID)
	if err != nil {
		return err
	}
	if link == nil {
		return ErrVariationNotFound
	}
	if link.IsActive {
		link.IsActive = false
		link.UpdatedAt = s.clock.now()
		if err := s.repo.UpdateVariation(link); err != nil {
			return err
		}
	}
	s.invalidateVariation(ctx, merchantID, variationID)
	return nil
}

// ActiveVariationIDs 活动当前启用的规格 ID
func (s *OfferService) ActiveVariationIDs(merchantID string, offerID uint) ([]string, error) {
	links, err := s.repo.ListVariations(strings.TrimSpace(merchantID), offerID, true)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.VariationID)
	}
	return ids, nil
}

func (s *OfferService) mustGet(merchantID string, offerID uint) (*models.LoyaltyOffer, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	offer, err := s.repo.GetByID(merchantID, offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}
	return offer, nil
}

func (s *OfferService) invalidateOffer(ctx context.Context, merchantID string, offerID uint) {
	if s.store == nil {
		return
	}
	links, err := s.repo.ListVariations(merchantID, offerID, false)
	if err != nil {
		logger.Warnw("loyalty_offer_cache_invalidate_failed", "merchant_id", merchantID, "offer_id", offerID, "error", err)
		return
	}
	keys := make([]string, 0, len(links))
	for _, link := range links {
		keys = append(keys, cache.OfferForVariationKey(merchantID, link.VariationID))
	}
	if err := s.store.Del(ctx, keys...); err != nil {
		logger.Warnw("loyalty_offer_cache_invalidate_failed", "merchant_id", merchantID, "offer_id", offerID, "error", err)
	}
}

func (s *OfferService) invalidateVariation(ctx context.Context, merchantID, variationID string) {
	if s.store == nil {
		return
	}
	if err := s.store.Del(ctx, cache.OfferForVariationKey(merchantID, variationID)); err != nil {
		logger.Warnw("loyalty_offer_cache_invalidate_failed", "merchant_id", merchantID, "variation_id", variationID, "error", err)
	}
}

func validateOfferInput(input OfferInput) error {
	if strings.TrimSpace(input.MerchantID) == "" {
		return ErrMerchantRequired
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.BrandName) == "" {
		return ErrOfferNameRequired
	}
	if input.RequiredQuantity < 1 {
		return ErrOfferRequiredQty
	}
	if input.WindowMonths < 1 {
		return ErrOfferWindowInvalid
	}
	return nil
}
