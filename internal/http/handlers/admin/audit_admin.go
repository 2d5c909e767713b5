package admin

import (
	"strings"
	"time"

	handlershared "github.com/shelfline-next/internal/http/handlers/shared"
	"github.com/shelfline-next/internal/http/response"
	"github.com/shelfline-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListAuditLogs 审计日志列表
func (h *Handler) ListAuditLogs(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.PageQuery(c)
	createdFrom, err := parseTimeQuery(c, "created_from")
	if err != nil {
		respondError(c, response.CodeBadRequest, "created_from is invalid", nil)
		return
	}
	createdTo, err := parseTimeQuery(c, "created_to")
	if err != nil {
		respondError(c, response.CodeBadRequest, "created_to is invalid", nil)
		return
	}
	logs, total, err := h.AuditService.List(repository.AuditLogListFilter{
		MerchantID:  merchantID,
		Page:        page,
		PageSize:    pageSize,
		EventType:   strings.TrimSpace(c.Query("event_type")),
		CustomerID:  strings.TrimSpace(c.Query("customer_id")),
		OfferID:     handlershared.ParseUintQuery(c, "offer_id"),
		RewardID:    handlershared.ParseUintQuery(c, "reward_id"),
		OrderID:     strings.TrimSpace(c.Query("order_id")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, logs, handlershared.BuildPagination(page, pageSize, total))
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	parsed = parsed.UTC()
	return &parsed, nil
}
