package pos

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shelfline-next/internal/cache"
	"github.com/shelfline-next/internal/logger"
)

// ContactLookup 按联系方式查找客户，结果写入可注入缓存
type ContactLookup struct {
	client *Client
	store  cache.Store
	ttl    time.Duration
}

// NewContactLookup 创建联系方式查找器，store 为空时不缓存
func NewContactLookup(client *Client, store cache.Store, ttl time.Duration) *ContactLookup {
	return &ContactLookup{client: client, store: store, ttl: ttl}
}

type cachedContact struct {
	CustomerID string `json:"customer_id"`
}

// FindCustomerByContact 先按手机号精确匹配，再按邮箱精确匹配
func (l *ContactLookup) FindCustomerByContact(ctx context.Context, merchantID, phone, email string) (string, error) {
	for _, candidate := range []struct {
		kind  string
		value string
	}{
		{kind: "phone_number", value: strings.TrimSpace(phone)},
		{kind: "email_address", value: strings.TrimSpace(email)},
	} {
		if candidate.value == "" {
			continue
		}
		customerID, err := l.lookup(ctx, merchantID, candidate.kind, candidate.value)
		if err != nil {
			return "", err
		}
		if customerID != "" {
			return customerID, nil
		}
	}
	return "", nil
}

func (l *ContactLookup) lookup(ctx context.Context, merchantID, kind, value string) (string, error) {
	key := cache.ContactCustomerKey(merchantID, kind, value)
	if l.store != nil {
		var cached cachedContact
		hit, err := l.store.GetJSON(ctx, key, &cached)
		if err != nil {
			logger.Warnw("pos_contact_cache_get_failed", "merchant_id", merchantID, "error", err)
		} else if hit {
			return cached.CustomerID, nil
		}
	}

	customerID, err := l.client.SearchCustomer(ctx, merchantID, kind, value)
	if err != nil {
		return "", err
	}
	if l.store != nil && customerID != "" {
		if err := l.store.SetJSON(ctx, key, cachedContact{CustomerID: customerID}, l.ttl); err != nil {
			logger.Warnw("pos_contact_cache_set_failed", "merchant_id", merchantID, "error", err)
		}
	}
	return customerID, nil
}

// SearchCustomer 按单个联系方式字段精确搜索客户
func (c *Client) SearchCustomer(ctx context.Context, merchantID, field, value string) (string, error) {
	body, err := c.doJSONRequest(ctx, merchantID, http.MethodPost, "/v2/customers/search", map[string]interface{}{
		"query": map[string]interface{}{
			"filter": map[string]interface{}{
				field: map[string]interface{}{"exact": value},
			},
		},
		"limit": 1,
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		Customers []struct {
			ID string `json:"id"`
		} `json:"customers"`
	}
	if err := decodeInto(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Customers) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Customers[0].ID), nil
}
