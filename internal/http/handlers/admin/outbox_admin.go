package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/shelfline-next/internal/http/handlers/shared"
	"github.com/shelfline-next/internal/http/response"
	"github.com/shelfline-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListOutbox 折扣与事件投递记录
func (h *Handler) ListOutbox(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.PageQuery(c)
	messages, total, err := h.OutboxService.List(repository.OutboxListFilter{
		MerchantID: merchantID,
		Page:       page,
		PageSize:   pageSize,
		Kind:       strings.TrimSpace(c.Query("kind")),
		Status:     strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, messages, handlershared.BuildPagination(page, pageSize, total))
}

// RetryFailedOutbox 将失败的投递重新置为待投递
func (h *Handler) RetryFailedOutbox(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	count, err := h.OutboxService.RetryFailed(merchantID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_outbox_retry_failed", "merchant_id", merchantID, "count", count, "admin_id", getAdminID(c))
	response.Success(c, gin.H{"reset": count})
}

// ReissueDiscounts 为缺少折扣引用的已达成奖励重新登记发放
func (h *Handler) ReissueDiscounts(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	count, err := h.DiscountService.ReissueMissing(merchantID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_discounts_reissued", "merchant_id", merchantID, "count", count, "admin_id", getAdminID(c))
	response.Success(c, gin.H{"enqueued": count})
}
