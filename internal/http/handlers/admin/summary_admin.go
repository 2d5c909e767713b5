package admin

import (
	"strings"

	handlershared "github.com/shelfline-next/internal/http/handlers/shared"
	"github.com/shelfline-next/internal/http/response"
	"github.com/shelfline-next/internal/repository"
	"github.com/shelfline-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListSummaries 客户汇总列表
func (h *Handler) ListSummaries(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.PageQuery(c)
	summaries, total, err := h.LoyaltyService.ListSummaries(repository.CustomerSummaryListFilter{
		MerchantID:      merchantID,
		Page:            page,
		PageSize:        pageSize,
		CustomerID:      strings.TrimSpace(c.Query("customer_id")),
		OfferID:         handlershared.ParseUintQuery(c, "offer_id"),
		HasEarnedReward: handlershared.ParseBoolQuery(c, "has_earned_reward"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, summaries, handlershared.BuildPagination(page, pageSize, total))
}

// GetCustomerSummary 客户在某活动下的汇总
func (h *Handler) GetCustomerSummary(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	offerID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	customerID := strings.TrimSpace(c.Param("customer_id"))
	if customerID == "" {
		respondServiceError(c, service.ErrCustomerRequired)
		return
	}
	summary, err := h.LoyaltyService.GetSummary(merchantID, customerID, offerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, summary)
}

// RebuildCustomerSummary 按事件与奖励重算单个汇总
func (h *Handler) RebuildCustomerSummary(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	offerID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	customerID := strings.TrimSpace(c.Param("customer_id"))
	summary, err := h.LoyaltyService.RebuildSummary(merchantID, customerID, offerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, summary)
}

// RebuildAllSummaries 重算商户全部汇总
func (h *Handler) RebuildAllSummaries(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	count, err := h.LoyaltyService.RebuildAllSummaries(merchantID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_summaries_rebuilt", "merchant_id", merchantID, "count", count, "admin_id", getAdminID(c))
	response.Success(c, gin.H{"rebuilt": count})
}
