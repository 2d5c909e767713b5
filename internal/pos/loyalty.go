package pos

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// FindCustomerByOrder 通过订单关联的积分事件反查客户：积分事件 -> 积分账户 -> 客户
func (c *Client) FindCustomerByOrder(ctx context.Context, merchantID, orderID string) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", nil
	}
	body, err := c.doJSONRequest(ctx, merchantID, http.MethodPost, "/v2/loyalty/events/search", map[string]interface{}{
		"query": map[string]interface{}{
			"filter": map[string]interface{}{
				"order_filter": map[string]interface{}{"order_id": orderID},
			},
		},
		"limit": 1,
	})
	if err != nil {
		return "", err
	}
	var events struct {
		Events []struct {
			LoyaltyAccountID string `json:"loyalty_account_id"`
		} `json:"events"`
	}
	if err := decodeInto(body, &events); err != nil {
		return "", err
	}
	if len(events.Events) == 0 || strings.TrimSpace(events.Events[0].LoyaltyAccountID) == "" {
		return "", nil
	}

	body, err = c.doJSONRequest(ctx, merchantID, http.MethodGet, "/v2/loyalty/accounts/"+url.PathEscape(events.Events[0].LoyaltyAccountID), nil)
	if err != nil {
		return "", err
	}
	var account struct {
		LoyaltyAccount struct {
			CustomerID string `json:"customer_id"`
		} `json:"loyalty_account"`
	}
	if err := decodeInto(body, &account); err != nil {
		return "", err
	}
	return strings.TrimSpace(account.LoyaltyAccount.CustomerID), nil
}
