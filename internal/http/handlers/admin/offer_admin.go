package admin

import (
	"strings"

	handlershared "github.com/shelfline-next/internal/http/handlers/shared"
	"github.com/shelfline-next/internal/http/response"
	"github.com/shelfline-next/internal/repository"
	"github.com/shelfline-next/internal/service"

	"github.com/gin-gonic/gin"
)

// OfferUpsertRequest 活动创建/更新请求
type OfferUpsertRequest struct {
	Name             string `json:"name" binding:"required"`
	BrandName        string `json:"brand_name" binding:"required"`
	SizeGroup        string `json:"size_group"`
	Description      string `json:"description"`
	RequiredQuantity int    `json:"required_quantity"`
	WindowMonths     int    `json:"window_months"`
}

// VariationAssignRequest 规格关联请求
type VariationAssignRequest struct {
	VariationID   string `json:"variation_id" binding:"required"`
	ItemID        string `json:"item_id"`
	VariationName string `json:"variation_name"`
	ItemName      string `json:"item_name"`
}

func (r OfferUpsertRequest) toInput(merchantID, actorID string) service.OfferInput {
	return service.OfferInput{
		MerchantID:       merchantID,
		Name:             strings.TrimSpace(r.Name),
		BrandName:        strings.TrimSpace(r.BrandName),
		SizeGroup:        strings.TrimSpace(r.SizeGroup),
		Description:      strings.TrimSpace(r.Description),
		RequiredQuantity: r.RequiredQuantity,
		WindowMonths:     r.WindowMonths,
		ActorID:          actorID,
	}
}

// ListOffers 活动列表
func (h *Handler) ListOffers(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.PageQuery(c)
	offers, total, err := h.OfferService.List(repository.OfferListFilter{
		MerchantID: merchantID,
		Page:       page,
		PageSize:   pageSize,
		Search:     strings.TrimSpace(c.Query("search")),
		IsActive:   handlershared.ParseBoolQuery(c, "is_active"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, offers, handlershared.BuildPagination(page, pageSize, total))
}

// GetOffer 活动详情（含启用中的规格）
func (h *Handler) GetOffer(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	offerID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	offer, err := h.OfferService.Get(merchantID, offerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if offer == nil {
		respondServiceError(c, service.ErrOfferNotFound)
		return
	}
	variations, err := h.OfferService.ListVariations(merchantID, offerID, true)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"offer": offer, "variations": variations})
}

// CreateOffer 创建活动
func (h *Handler) CreateOffer(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	var req OfferUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid offer payload", nil)
		return
	}
	offer, err := h.OfferService.Create(req.toInput(merchantID, getAdminID(c)))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_offer_created", "merchant_id", merchantID, "offer_id", offer.ID)
	response.Success(c, offer)
}

// UpdateOffer 更新活动
func (h *Handler) UpdateOffer(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	offerID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req OfferUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid offer payload", nil)
		return
	}
	offer, err := h.OfferService.Update(c.Request.Context(), offerID, req.toInput(merchantID, getAdminID(c)))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, offer)
}

// DeactivateOffer 停用活动
func (h *Handler) DeactivateOffer(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	offerID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	offer, err := h.OfferService.Deactivate(c.Request.Context(), merchantID, offerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_offer_deactivated", "merchant_id", merchantID, "offer_id", offerID, "admin_id", getAdminID(c))
	response.Success(c, offer)
}

// ListOfferVariations 活动规格列表，all=true 时包含已移除的规格
func (h *Handler) ListOfferVariations(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	offerID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	onlyActive := true
	if all := handlershared.ParseBoolQuery(c, "all"); all != nil && *all {
		onlyActive = false
	}
	variations, err := h.OfferService.ListVariations(merchantID, offerID, onlyActive)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, variations)
}

// AssignOfferVariation 关联规格
func (h *Handler) AssignOfferVariation(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	offerID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req VariationAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid variation payload", nil)
		return
	}
	variation, err := h.OfferService.AssignVariation(c.Request.Context(), service.VariationAssignInput{
		MerchantID:    merchantID,
		OfferID:       offerID,
		VariationID:   strings.TrimSpace(req.VariationID),
		ItemID:        strings.TrimSpace(req.ItemID),
		VariationName: strings.TrimSpace(req.VariationName),
		ItemName:      strings.TrimSpace(req.ItemName),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, variation)
}

// RemoveOfferVariation 移除规格关联
func (h *Handler) RemoveOfferVariation(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	offerID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	variationID := strings.TrimSpace(c.Param("variation_id"))
	if err := h.OfferService.RemoveVariation(c.Request.Context(), merchantID, offerID, variationID); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"offer_id": offerID, "variation_id": variationID})
}
