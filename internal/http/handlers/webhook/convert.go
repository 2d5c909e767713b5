package webhook

import (
	"strings"
	"time"

	"github.com/shelfline-next/internal/pos"
	"github.com/shelfline-next/internal/service"
)

// RefundPayload 平台退款事件
type RefundPayload struct {
	ID              string               `json:"id"`
	OrderID         string               `json:"order_id"`
	ReturnOrderID   string               `json:"return_order_id"`
	CustomerID      string               `json:"customer_id"`
	Status          string               `json:"status"`
	CreatedAt       string               `json:"created_at"`
	LocationID      string               `json:"location_id"`
	ReturnLineItems []pos.ReturnLineItem `json:"return_line_items"`
}

// orderInputFromPOS 平台订单转换为订单入口输入
func orderInputFromPOS(merchantID string, order *pos.Order) service.OrderInput {
	input := service.OrderInput{
		MerchantID:  merchantID,
		OrderID:     strings.TrimSpace(order.ID),
		State:       order.State,
		CustomerID:  strings.TrimSpace(order.CustomerID),
		LocationID:  order.LocationID,
		CompletedAt: order.CompletedAt(),
	}
	for _, tender := range order.Tenders {
		if input.PaymentType == "" {
			input.PaymentType = strings.TrimSpace(tender.Type)
		}
		if id := strings.TrimSpace(tender.CustomerID); id != "" {
			input.TenderCustomerIDs = append(input.TenderCustomerIDs, id)
		}
	}
	if phone, email := order.RecipientContact(); phone != "" || email != "" {
		input.Contacts = []service.FulfillmentContact{{Phone: phone, Email: email}}
	}
	for _, item := range order.LineItems {
		input.Lines = append(input.Lines, service.OrderLineInput{
			UID:             item.UID,
			VariationID:     strings.TrimSpace(item.CatalogObjectID),
			Quantity:        pos.ParseQuantity(item.Quantity),
			UnitPriceCents:  item.BasePriceMoney.Amount,
			GrossSalesCents: item.GrossSalesMoney.Amount,
			TotalCents:      item.TotalMoney.Amount,
			DiscountIDs:     order.DiscountCatalogIDs(item.AppliedDiscounts),
		})
	}
	for _, ret := range order.Returns {
		input.Returns = append(input.Returns, service.ReturnInput{
			SourceOrderID: strings.TrimSpace(ret.SourceOrderID),
			Lines:         returnLinesFromPOS(order, ret.ReturnLineItems),
		})
	}
	return input
}

func returnLinesFromPOS(order *pos.Order, items []pos.ReturnLineItem) []service.OrderLineInput {
	lines := make([]service.OrderLineInput, 0, len(items))
	for _, item := range items {
		lines = append(lines, service.OrderLineInput{
			UID:             item.UID,
			VariationID:     strings.TrimSpace(item.CatalogObjectID),
			Quantity:        pos.ParseQuantity(item.Quantity),
			UnitPriceCents:  item.BasePriceMoney.Amount,
			GrossSalesCents: item.GrossReturnMoney.Amount,
			TotalCents:      item.TotalMoney.Amount,
			DiscountIDs:     order.DiscountCatalogIDs(item.AppliedDiscounts),
		})
	}
	return lines
}

// refundKeyID 冲正幂等所用的退款ID：有退货订单时取退货订单ID，
// 与退货订单路径及订单完成事件一致，同一笔退款无论以哪种形态到达只冲正一次
func refundKeyID(refund RefundPayload) string {
	if id := strings.TrimSpace(refund.ReturnOrderID); id != "" {
		return id
	}
	return strings.TrimSpace(refund.ID)
}

// refundInputFromPayload 退款事件自带退货行时直接冲正原订单
func refundInputFromPayload(merchantID string, refund RefundPayload) service.RefundOrderInput {
	refundedAt := pos.ParseTime(refund.CreatedAt)
	if refundedAt.IsZero() {
		refundedAt = time.Now().UTC()
	}
	return service.RefundOrderInput{
		MerchantID: merchantID,
		OrderID:    strings.TrimSpace(refund.OrderID),
		RefundID:   refundKeyID(refund),
		CustomerID: strings.TrimSpace(refund.CustomerID),
		LocationID: refund.LocationID,
		RefundedAt: refundedAt,
		Lines:      returnLinesFromPOS(nil, refund.ReturnLineItems),
	}
}

// refundInputsFromReturnOrder 退货订单中的每笔退货各自冲正其来源订单；
// 退款ID取退货订单ID，与订单完成事件走同一幂等键
func refundInputsFromReturnOrder(merchantID string, order *pos.Order) []service.RefundOrderInput {
	base := orderInputFromPOS(merchantID, order)
	inputs := make([]service.RefundOrderInput, 0, len(base.Returns))
	for _, ret := range base.Returns {
		if ret.SourceOrderID == "" {
			continue
		}
		inputs = append(inputs, service.RefundOrderInput{
			MerchantID:        merchantID,
			OrderID:           ret.SourceOrderID,
			RefundID:          base.OrderID,
			CustomerID:        base.CustomerID,
			TenderCustomerIDs: base.TenderCustomerIDs,
			Contacts:          base.Contacts,
			LocationID:        base.LocationID,
			RefundedAt:        base.CompletedAt,
			Lines:             ret.Lines,
		})
	}
	return inputs
}
