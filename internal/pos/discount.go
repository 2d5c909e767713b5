package pos

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	clientDiscountID    = "#reward-discount"
	clientProductSetID  = "#reward-products"
	clientPricingRuleID = "#reward-rule"
)

// DiscountIssueInput 发放客户专属折扣的输入
type DiscountIssueInput struct {
	MerchantID   string
	CustomerID   string
	RewardID     uint
	OfferID      uint
	OfferName    string
	VariationIDs []string
}

// DiscountRefs 平台侧折扣相关对象 ID
type DiscountRefs struct {
	GroupID       string `json:"group_id"`
	DiscountID    string `json:"discount_id"`
	ProductSetID  string `json:"product_set_id"`
	PricingRuleID string `json:"pricing_rule_id"`
}

// DiscountCleanupInput 清理折扣的输入
type DiscountCleanupInput struct {
	MerchantID string
	CustomerID string
	RewardID   uint
	Refs       DiscountRefs
}

type catalogObject struct {
	Type            string                 `json:"type"`
	ID              string                 `json:"id"`
	DiscountData    map[string]interface{} `json:"discount_data,omitempty"`
	ProductSetData  map[string]interface{} `json:"product_set_data,omitempty"`
	PricingRuleData map[string]interface{} `json:"pricing_rule_data,omitempty"`
}

type idMapping struct {
	ClientObjectID string `json:"client_object_id"`
	ObjectID       string `json:"object_id"`
}

// IssueDiscount 创建客户组并绑定一次性 100% 折扣：客户组 -> 加入客户 -> 目录批量写入折扣、商品集合与定价规则
func (c *Client) IssueDiscount(ctx context.Context, input DiscountIssueInput) (*DiscountRefs, error) {
	if strings.TrimSpace(input.CustomerID) == "" || input.RewardID == 0 {
		return nil, fmt.Errorf("%w: customer and reward are required", ErrConfigInvalid)
	}
	if len(input.VariationIDs) == 0 {
		return nil, fmt.Errorf("%w: offer has no qualifying variations", ErrConfigInvalid)
	}
	rewardKey := strconv.FormatUint(uint64(input.RewardID), 10)
	name := c.discountName(input)

	groupID, err := c.createCustomerGroup(ctx, input.MerchantID, name, rewardKey)
	if err != nil {
		return nil, err
	}
	if err := c.addCustomerToGroup(ctx, input.MerchantID, input.CustomerID, groupID); err != nil {
		return &DiscountRefs{GroupID: groupID}, err
	}

	objects := []catalogObject{
		{
			Type: "DISCOUNT",
			ID:   clientDiscountID,
			DiscountData: map[string]interface{}{
				"name":          name,
				"discount_type": "FIXED_PERCENTAGE",
				"percentage":    "100",
			},
		},
		{
			Type: "PRODUCT_SET",
			ID:   clientProductSetID,
			ProductSetData: map[string]interface{}{
				"name":            name,
				"product_ids_any": input.VariationIDs,
				"quantity_exact":  1,
			},
		},
		{
			Type: "PRICING_RULE",
			ID:   clientPricingRuleID,
			PricingRuleData: map[string]interface{}{
				"name":                   name,
				"discount_id":            clientDiscountID,
				"match_products_id":      clientProductSetID,
				"customer_group_ids_any": []string{groupID},
			},
		},
	}
	body, err := c.doJSONRequest(ctx, input.MerchantID, http.MethodPost, "/v2/catalog/batch-upsert", map[string]interface{}{
		"idempotency_key": idempotencyKey(input.MerchantID, "reward", rewardKey, "catalog"),
		"batches":         []map[string]interface{}{{"objects": objects}},
	})
	if err != nil {
		return &DiscountRefs{GroupID: groupID}, err
	}
	var resp struct {
		IDMappings []idMapping `json:"id_mappings"`
	}
	if err := decodeInto(body, &resp); err != nil {
		return &DiscountRefs{GroupID: groupID}, err
	}

	refs := &DiscountRefs{GroupID: groupID}
	for _, mapping := range resp.IDMappings {
		switch mapping.ClientObjectID {
		case clientDiscountID:
			refs.DiscountID = mapping.ObjectID
		case clientProductSetID:
			refs.ProductSetID = mapping.ObjectID
		case clientPricingRuleID:
			refs.PricingRuleID = mapping.ObjectID
		}
	}
	if refs.DiscountID == "" || refs.PricingRuleID == "" {
		return refs, fmt.Errorf("%w: catalog id mappings incomplete", ErrResponseInvalid)
	}
	return refs, nil
}

// CleanupDiscount 删除折扣目录对象与客户组，已不存在的对象视为成功
func (c *Client) CleanupDiscount(ctx context.Context, input DiscountCleanupInput) error {
	objectIDs := make([]string, 0, 3)
	for _, id := range []string{input.Refs.PricingRuleID, input.Refs.ProductSetID, input.Refs.DiscountID} {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			objectIDs = append(objectIDs, trimmed)
		}
	}
	if len(objectIDs) > 0 {
		if _, err := c.doJSONRequest(ctx, input.MerchantID, http.MethodPost, "/v2/catalog/batch-delete", map[string]interface{}{
			"object_ids": objectIDs,
		}); err != nil && !isNotFound(err) {
			return err
		}
	}
	if groupID := strings.TrimSpace(input.Refs.GroupID); groupID != "" {
		if _, err := c.doJSONRequest(ctx, input.MerchantID, http.MethodDelete, "/v2/customers/groups/"+url.PathEscape(groupID), nil); err != nil && !isNotFound(err) {
			return err
		}
	}
	return nil
}

func (c *Client) createCustomerGroup(ctx context.Context, merchantID, name, rewardKey string) (string, error) {
	body, err := c.doJSONRequest(ctx, merchantID, http.MethodPost, "/v2/customers/groups", map[string]interface{}{
		"idempotency_key": idempotencyKey(merchantID, "reward", rewardKey, "group"),
		"group":           map[string]interface{}{"name": name},
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		Group struct {
			ID string `json:"id"`
		} `json:"group"`
	}
	if err := decodeInto(body, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Group.ID) == "" {
		return "", fmt.Errorf("%w: customer group id missing", ErrResponseInvalid)
	}
	return resp.Group.ID, nil
}

func (c *Client) addCustomerToGroup(ctx context.Context, merchantID, customerID, groupID string) error {
	path := fmt.Sprintf("/v2/customers/%s/groups/%s", url.PathEscape(customerID), url.PathEscape(groupID))
	_, err := c.doJSONRequest(ctx, merchantID, http.MethodPut, path, nil)
	return err
}

func (c *Client) discountName(input DiscountIssueInput) string {
	name := c.cfg.DiscountNamePrefix
	if offer := strings.TrimSpace(input.OfferName); offer != "" {
		name = name + " - " + offer
	}
	return fmt.Sprintf("%s #%d", name, input.RewardID)
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "status=404")
}
