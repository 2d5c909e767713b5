package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shelfline-next/internal/constants"
	handlershared "github.com/shelfline-next/internal/http/handlers/shared"
	"github.com/shelfline-next/internal/http/response"
	"github.com/shelfline-next/internal/pos"
	"github.com/shelfline-next/internal/provider"
	"github.com/shelfline-next/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler 收银平台 webhook 处理器
type Handler struct {
	*provider.Container
}

// New 创建 webhook 处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

// EventRequest webhook 请求体
type EventRequest struct {
	MerchantID string          `json:"merchant_id"`
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
}

// EventResponse webhook 处理结果
type EventResponse struct {
	EventID string                 `json:"event_id,omitempty"`
	Type    string                 `json:"type"`
	Ignored bool                   `json:"ignored"`
	Reason  string                 `json:"reason,omitempty"`
	Results []*service.OrderResult `json:"results,omitempty"`
}

type eventData struct {
	OrderID string         `json:"order_id"`
	Order   *pos.Order     `json:"order"`
	Refund  *RefundPayload `json:"refund"`
}

type eventHandler func(h *Handler, ctx context.Context, merchantID string, data eventData) (*EventResponse, error)

var eventHandlers = map[string]eventHandler{
	constants.WebhookEventOrderCompleted: (*Handler).handleOrder,
	constants.WebhookEventOrderUpdated:   (*Handler).handleOrder,
	constants.WebhookEventRefundCreated:  (*Handler).handleRefund,
	constants.WebhookEventRefundUpdated:  (*Handler).handleRefund,
}

// HandlePOSEvent POST /api/v1/webhooks/pos
func (h *Handler) HandlePOSEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, response.CodeBadRequest, "invalid webhook payload", nil)
		return
	}
	merchantID := strings.TrimSpace(req.MerchantID)
	if merchantID == "" {
		handlershared.RespondServiceError(c, service.ErrMerchantRequired)
		return
	}
	eventType := strings.ToLower(strings.TrimSpace(req.Type))
	if eventType == "" {
		handlershared.RespondServiceError(c, service.ErrWebhookTypeRequired)
		return
	}
	c.Set(handlershared.ContextMerchantID, merchantID)
	c.Set(handlershared.ContextWebhookEvent, eventType)
	log := handlershared.RequestLog(c).With("merchant_id", merchantID, "event_id", req.EventID, "type", eventType)

	handle, ok := eventHandlers[eventType]
	if !ok {
		log.Debugw("webhook_event_ignored")
		response.Success(c, EventResponse{EventID: req.EventID, Type: eventType, Ignored: true, Reason: constants.ReasonEventIgnored})
		return
	}

	var data eventData
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &data); err != nil {
			handlershared.RespondError(c, response.CodeBadRequest, "invalid webhook data", nil)
			return
		}
	}

	result, err := handle(h, c.Request.Context(), merchantID, data)
	if err != nil {
		log.Warnw("webhook_event_failed", "error", err)
		handlershared.RespondServiceError(c, err)
		return
	}
	result.EventID = req.EventID
	result.Type = eventType
	log.Infow("webhook_event_handled", "ignored", result.Ignored, "reason", result.Reason, "results", len(result.Results))
	response.Success(c, result)
}

func (h *Handler) handleOrder(ctx context.Context, merchantID string, data eventData) (*EventResponse, error) {
	order, err := h.loadOrder(ctx, merchantID, data.Order, data.OrderID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(order.State), constants.PlatformOrderStateCompleted) {
		return &EventResponse{Ignored: true, Reason: constants.ReasonOrderNotCompleted}, nil
	}
	result, err := h.OrderIntakeService.ProcessOrder(ctx, orderInputFromPOS(merchantID, order))
	if err != nil {
		return nil, err
	}
	return &EventResponse{Results: []*service.OrderResult{result}}, nil
}

func (h *Handler) handleRefund(ctx context.Context, merchantID string, data eventData) (*EventResponse, error) {
	refund := data.Refund
	if refund == nil {
		return nil, fmt.Errorf("%w: refund is required", service.ErrValidation)
	}
	if !strings.EqualFold(strings.TrimSpace(refund.Status), constants.PlatformRefundStateCompleted) {
		return &EventResponse{Ignored: true, Reason: constants.ReasonRefundNotCompleted}, nil
	}

	if len(refund.ReturnLineItems) > 0 {
		result, err := h.OrderIntakeService.ProcessRefund(ctx, refundInputFromPayload(merchantID, *refund))
		if err != nil {
			return nil, err
		}
		return &EventResponse{Results: []*service.OrderResult{result}}, nil
	}

	// 退款未携带退货行时读取退货订单
	returnOrder, err := h.loadOrder(ctx, merchantID, data.Order, refund.ReturnOrderID)
	if err != nil {
		return nil, err
	}
	inputs := refundInputsFromReturnOrder(merchantID, returnOrder)
	if len(inputs) == 0 {
		return &EventResponse{Ignored: true, Reason: constants.ReasonNoLineItems}, nil
	}
	resp := &EventResponse{}
	for _, input := range inputs {
		result, err := h.OrderIntakeService.ProcessRefund(ctx, input)
		if err != nil {
			return nil, err
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

// loadOrder 优先使用事件内嵌订单，否则向平台查询
func (h *Handler) loadOrder(ctx context.Context, merchantID string, embedded *pos.Order, orderID string) (*pos.Order, error) {
	if embedded != nil && strings.TrimSpace(embedded.ID) != "" {
		return embedded, nil
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, service.ErrOrderRequired
	}
	if h.POSClient == nil {
		return nil, fmt.Errorf("%w: order %s not embedded and platform client disabled", service.ErrValidation, orderID)
	}
	order, err := h.POSClient.RetrieveOrder(ctx, merchantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve order: %w", service.ErrExternalService, err)
	}
	return order, nil
}
