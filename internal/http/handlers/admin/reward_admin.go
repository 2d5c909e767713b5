package admin

import (
	"strings"

	"github.com/shelfline-next/internal/constants"
	handlershared "github.com/shelfline-next/internal/http/handlers/shared"
	"github.com/shelfline-next/internal/http/response"
	"github.com/shelfline-next/internal/pos"
	"github.com/shelfline-next/internal/repository"
	"github.com/shelfline-next/internal/service"

	"github.com/gin-gonic/gin"
)

// RedeemRewardRequest 后台核销请求；value 为小数金额字符串
type RedeemRewardRequest struct {
	CustomerID          string `json:"customer_id"`
	OrderID             string `json:"order_id"`
	RedeemedVariationID string `json:"redeemed_variation_id"`
	Value               string `json:"value"`
	Currency            string `json:"currency"`
	Notes               string `json:"notes"`
}

// ListRewards 奖励列表
func (h *Handler) ListRewards(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.PageQuery(c)
	rewards, total, err := h.LoyaltyService.ListRewards(repository.RewardListFilter{
		MerchantID: merchantID,
		Page:       page,
		PageSize:   pageSize,
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
		OfferID:    handlershared.ParseUintQuery(c, "offer_id"),
		Status:     strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, rewards, handlershared.BuildPagination(page, pageSize, total))
}

// GetReward 奖励详情（含锁定事件）
func (h *Handler) GetReward(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	rewardID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	reward, err := h.LoyaltyService.GetReward(merchantID, rewardID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	events, err := h.LoyaltyService.ListRewardEvents(merchantID, rewardID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"reward": reward, "events": events})
}

// RedeemReward 手工核销奖励
func (h *Handler) RedeemReward(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	rewardID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req RedeemRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid redemption payload", nil)
		return
	}
	var valueCents int64
	if value := strings.TrimSpace(req.Value); value != "" {
		parsed, err := pos.ParseMinorAmount(value, req.Currency)
		if err != nil {
			respondServiceError(c, service.ErrRedemptionValueBad)
			return
		}
		valueCents = parsed
	}
	result, err := h.LoyaltyService.Redeem(c.Request.Context(), service.RedemptionInput{
		MerchantID:          merchantID,
		RewardID:            rewardID,
		OrderID:             strings.TrimSpace(req.OrderID),
		CustomerID:          strings.TrimSpace(req.CustomerID),
		RedemptionType:      constants.RedemptionTypeManual,
		RedeemedVariationID: strings.TrimSpace(req.RedeemedVariationID),
		ValueCents:          valueCents,
		ActorID:             getAdminID(c),
		Notes:               strings.TrimSpace(req.Notes),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_reward_redeemed", "merchant_id", merchantID, "reward_id", rewardID, "admin_id", getAdminID(c))
	response.Success(c, result)
}

// ListEvents 购买/退款事件列表
func (h *Handler) ListEvents(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.PageQuery(c)
	events, total, err := h.LoyaltyService.ListEvents(repository.PurchaseEventListFilter{
		MerchantID: merchantID,
		Page:       page,
		PageSize:   pageSize,
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
		OfferID:    handlershared.ParseUintQuery(c, "offer_id"),
		OrderID:    strings.TrimSpace(c.Query("order_id")),
		RewardID:   handlershared.ParseUintQuery(c, "reward_id"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, events, handlershared.BuildPagination(page, pageSize, total))
}
