package cache

import (
	"fmt"
	"strings"
)

// OfferForVariationKey 规格 -> 活动查询缓存键
func OfferForVariationKey(merchantID, variationID string) string {
	return fmt.Sprintf("loyalty:offer_variation:%s:%s", strings.TrimSpace(merchantID), strings.TrimSpace(variationID))
}

// ContactCustomerKey 联系方式 -> 客户查询缓存键
func ContactCustomerKey(merchantID, kind, value string) string {
	return fmt.Sprintf("loyalty:contact:%s:%s:%s", strings.TrimSpace(merchantID), kind, strings.ToLower(strings.TrimSpace(value)))
}
