package pos

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Order 平台订单（仅保留积分相关字段）
type Order struct {
	ID           string            `json:"id"`
	LocationID   string            `json:"location_id"`
	CustomerID   string            `json:"customer_id"`
	State        string            `json:"state"`
	CreatedAt    string            `json:"created_at"`
	ClosedAt     string            `json:"closed_at"`
	LineItems    []OrderLineItem   `json:"line_items"`
	Discounts    []OrderDiscount   `json:"discounts"`
	Tenders      []OrderTender     `json:"tenders"`
	Returns      []OrderReturn     `json:"returns"`
	Fulfillments []OrderFulfilment `json:"fulfillments"`
}

// OrderLineItem 订单行
type OrderLineItem struct {
	UID              string            `json:"uid"`
	Name             string            `json:"name"`
	Quantity         string            `json:"quantity"`
	CatalogObjectID  string            `json:"catalog_object_id"`
	BasePriceMoney   Money             `json:"base_price_money"`
	GrossSalesMoney  Money             `json:"gross_sales_money"`
	TotalMoney       Money             `json:"total_money"`
	AppliedDiscounts []AppliedDiscount `json:"applied_discounts"`
}

// AppliedDiscount 行上应用的折扣
type AppliedDiscount struct {
	UID          string `json:"uid"`
	DiscountUID  string `json:"discount_uid"`
	AppliedMoney Money  `json:"applied_money"`
}

// OrderDiscount 订单级折扣定义
type OrderDiscount struct {
	UID             string `json:"uid"`
	CatalogObjectID string `json:"catalog_object_id"`
	PricingRuleID   string `json:"pricing_rule_id"`
	Name            string `json:"name"`
}

// OrderTender 支付记录
type OrderTender struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	CustomerID string `json:"customer_id"`
}

// OrderReturn 退货记录
type OrderReturn struct {
	UID             string           `json:"uid"`
	SourceOrderID   string           `json:"source_order_id"`
	ReturnLineItems []ReturnLineItem `json:"return_line_items"`
}

// ReturnLineItem 退货行
type ReturnLineItem struct {
	UID              string            `json:"uid"`
	SourceLineItemID string            `json:"source_line_item_uid"`
	Quantity         string            `json:"quantity"`
	CatalogObjectID  string            `json:"catalog_object_id"`
	BasePriceMoney   Money             `json:"base_price_money"`
	GrossReturnMoney Money             `json:"gross_return_money"`
	TotalMoney       Money             `json:"total_money"`
	AppliedDiscounts []AppliedDiscount `json:"applied_discounts"`
}

// OrderFulfilment 履约信息
type OrderFulfilment struct {
	Type            string             `json:"type"`
	PickupDetails   *FulfilmentDetails `json:"pickup_details,omitempty"`
	ShipmentDetails *FulfilmentDetails `json:"shipment_details,omitempty"`
	DeliveryDetails *FulfilmentDetails `json:"delivery_details,omitempty"`
}

// FulfilmentDetails 履约收件人
type FulfilmentDetails struct {
	Recipient *FulfilmentRecipient `json:"recipient,omitempty"`
}

// FulfilmentRecipient 收件人联系方式
type FulfilmentRecipient struct {
	DisplayName  string `json:"display_name"`
	PhoneNumber  string `json:"phone_number"`
	EmailAddress string `json:"email_address"`
}

// DiscountCatalogIDs 返回行上折扣对应的目录对象与定价规则 ID
func (o *Order) DiscountCatalogIDs(applied []AppliedDiscount) []string {
	if o == nil || len(applied) == 0 {
		return nil
	}
	byUID := make(map[string]OrderDiscount, len(o.Discounts))
	for _, discount := range o.Discounts {
		byUID[discount.UID] = discount
	}
	ids := make([]string, 0, len(applied))
	for _, item := range applied {
		discount, ok := byUID[item.DiscountUID]
		if !ok {
			continue
		}
		if id := strings.TrimSpace(discount.CatalogObjectID); id != "" {
			ids = append(ids, id)
		}
		if id := strings.TrimSpace(discount.PricingRuleID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// RecipientContact 取第一个带联系方式的履约收件人
func (o *Order) RecipientContact() (phone string, email string) {
	if o == nil {
		return "", ""
	}
	for _, fulfilment := range o.Fulfillments {
		for _, details := range []*FulfilmentDetails{fulfilment.PickupDetails, fulfilment.ShipmentDetails, fulfilment.DeliveryDetails} {
			if details == nil || details.Recipient == nil {
				continue
			}
			phone = strings.TrimSpace(details.Recipient.PhoneNumber)
			email = strings.TrimSpace(details.Recipient.EmailAddress)
			if phone != "" || email != "" {
				return phone, email
			}
		}
	}
	return "", ""
}

// CompletedAt 订单完成时间，缺失时回退到创建时间
func (o *Order) CompletedAt() time.Time {
	if o == nil {
		return time.Time{}
	}
	for _, raw := range []string{o.ClosedAt, o.CreatedAt} {
		if parsed := ParseTime(raw); !parsed.IsZero() {
			return parsed
		}
	}
	return time.Time{}
}

// ParseTime 解析 RFC3339 时间，失败返回零值
func ParseTime(raw string) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

// RetrieveOrder 查询平台订单
func (c *Client) RetrieveOrder(ctx context.Context, merchantID, orderID string) (*Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrConfigInvalid)
	}
	body, err := c.doJSONRequest(ctx, merchantID, http.MethodGet, "/v2/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Order *Order `json:"order"`
	}
	if err := decodeInto(body, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, fmt.Errorf("%w: order missing", ErrResponseInvalid)
	}
	return resp.Order, nil
}
