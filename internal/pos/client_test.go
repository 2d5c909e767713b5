package pos

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shelfline-next/internal/cache"
)

type recordedRequest struct {
	Method string
	Path   string
	Token  string
	Body   map[string]interface{}
}

type fakePlatform struct {
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]func(w http.ResponseWriter, body map[string]interface{})
}

func newFakePlatform(t *testing.T) (*fakePlatform, *Client) {
	t.Helper()
	platform := &fakePlatform{handlers: map[string]func(http.ResponseWriter, map[string]interface{}){}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body := map[string]interface{}{}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}
		platform.mu.Lock()
		platform.requests = append(platform.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Token:  strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
			Body:   body,
		})
		handler, ok := platform.handlers[r.Method+" "+r.URL.Path]
		platform.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[{"code":"NOT_FOUND"}]}`))
			return
		}
		handler(w, body)
	}))
	t.Cleanup(server.Close)
	client := NewClient(Config{
		BaseURL:      server.URL,
		AccessToken:  "default-token",
		AccessTokens: map[string]string{"merchant-b": "token-b"},
		Timeout:      2 * time.Second,
	})
	return platform, client
}

func (p *fakePlatform) on(method, path, response string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[method+" "+path] = func(w http.ResponseWriter, body map[string]interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}
}

func (p *fakePlatform) paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.requests))
	for _, req := range p.requests {
		out = append(out, req.Method+" "+req.Path)
	}
	return out
}

func TestIssueDiscountCreatesGroupAndCatalogObjects(t *testing.T) {
	platform, client := newFakePlatform(t)
	platform.on(http.MethodPost, "/v2/customers/groups", `{"group":{"id":"grp-1"}}`)
	platform.on(http.MethodPut, "/v2/customers/cust-1/groups/grp-1", `{}`)
	platform.on(http.MethodPost, "/v2/catalog/batch-upsert", `{"id_mappings":[
		{"client_object_id":"#reward-discount","object_id":"disc-1"},
		{"client_object_id":"#reward-products","object_id":"set-1"},
		{"client_object_id":"#reward-rule","object_id":"rule-1"}]}`)

	refs, err := client.IssueDiscount(context.Background(), DiscountIssueInput{
		MerchantID:   "merchant-a",
		CustomerID:   "cust-1",
		RewardID:     42,
		OfferName:    "Dog food 12kg",
		VariationIDs: []string{"var-1", "var-2"},
	})
	if err != nil {
		t.Fatalf("issue discount failed: %v", err)
	}
	want := DiscountRefs{GroupID: "grp-1", DiscountID: "disc-1", ProductSetID: "set-1", PricingRuleID: "rule-1"}
	if *refs != want {
		t.Fatalf("unexpected refs: %+v", refs)
	}

	paths := platform.paths()
	if len(paths) != 3 || paths[0] != "POST /v2/customers/groups" || paths[2] != "POST /v2/catalog/batch-upsert" {
		t.Fatalf("unexpected request sequence: %v", paths)
	}
	first := platform.requests[0]
	if first.Token != "default-token" {
		t.Fatalf("expected default token, got %s", first.Token)
	}
	group := first.Body["group"].(map[string]interface{})
	if group["name"] != "Frequent Buyer Reward - Dog food 12kg #42" {
		t.Fatalf("unexpected group name %v", group["name"])
	}
	if first.Body["idempotency_key"] != idempotencyKey("merchant-a", "reward", "42", "group") {
		t.Fatalf("expected stable idempotency key, got %v", first.Body["idempotency_key"])
	}
}

func TestIssueDiscountReturnsPartialRefsOnFailure(t *testing.T) {
	platform, client := newFakePlatform(t)
	platform.on(http.MethodPost, "/v2/customers/groups", `{"group":{"id":"grp-1"}}`)
	platform.on(http.MethodPut, "/v2/customers/cust-1/groups/grp-1", `{}`)

	refs, err := client.IssueDiscount(context.Background(), DiscountIssueInput{
		MerchantID:   "merchant-a",
		CustomerID:   "cust-1",
		RewardID:     42,
		VariationIDs: []string{"var-1"},
	})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected request failure, got %v", err)
	}
	if refs == nil || refs.GroupID != "grp-1" || refs.DiscountID != "" {
		t.Fatalf("expected group ref kept for cleanup, got %+v", refs)
	}

	if _, err := client.IssueDiscount(context.Background(), DiscountIssueInput{MerchantID: "merchant-a", CustomerID: "cust-1", RewardID: 42}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config error without variations, got %v", err)
	}
}

func TestCleanupDiscountToleratesMissingObjects(t *testing.T) {
	platform, client := newFakePlatform(t)
	platform.on(http.MethodPost, "/v2/catalog/batch-delete", `{"deleted_object_ids":["rule-1","disc-1"]}`)

	err := client.CleanupDiscount(context.Background(), DiscountCleanupInput{
		MerchantID: "merchant-b",
		RewardID:   42,
		Refs:       DiscountRefs{GroupID: "grp-gone", DiscountID: "disc-1", PricingRuleID: "rule-1"},
	})
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	paths := platform.paths()
	if len(paths) != 2 || paths[1] != "DELETE /v2/customers/groups/grp-gone" {
		t.Fatalf("unexpected cleanup requests: %v", paths)
	}
	if platform.requests[0].Token != "token-b" {
		t.Fatalf("expected merchant specific token, got %s", platform.requests[0].Token)
	}
	ids := platform.requests[0].Body["object_ids"].([]interface{})
	if len(ids) != 2 || ids[0] != "rule-1" {
		t.Fatalf("unexpected deleted ids: %v", ids)
	}
}

func TestFindCustomerByOrderFollowsLoyaltyAccount(t *testing.T) {
	platform, client := newFakePlatform(t)
	platform.on(http.MethodPost, "/v2/loyalty/events/search", `{"events":[{"loyalty_account_id":"acct-1"}]}`)
	platform.on(http.MethodGet, "/v2/loyalty/accounts/acct-1", `{"loyalty_account":{"customer_id":"cust-9"}}`)

	customerID, err := client.FindCustomerByOrder(context.Background(), "merchant-a", "order-1")
	if err != nil || customerID != "cust-9" {
		t.Fatalf("expected cust-9, got %q err=%v", customerID, err)
	}

	platform.on(http.MethodPost, "/v2/loyalty/events/search", `{"events":[]}`)
	customerID, err = client.FindCustomerByOrder(context.Background(), "merchant-a", "order-2")
	if err != nil || customerID != "" {
		t.Fatalf("expected no customer, got %q err=%v", customerID, err)
	}
}

func TestContactLookupCachesMatches(t *testing.T) {
	platform, client := newFakePlatform(t)
	platform.on(http.MethodPost, "/v2/customers/search", `{"customers":[{"id":"cust-5"}]}`)
	lookup := NewContactLookup(client, cache.NewMemoryStore(10), time.Minute)

	for i := 0; i < 2; i++ {
		customerID, err := lookup.FindCustomerByContact(context.Background(), "merchant-a", "+15550100", "")
		if err != nil || customerID != "cust-5" {
			t.Fatalf("expected cust-5, got %q err=%v", customerID, err)
		}
	}
	if n := len(platform.paths()); n != 1 {
		t.Fatalf("expected cached second lookup, got %d requests", n)
	}
	filter := platform.requests[0].Body["query"].(map[string]interface{})["filter"].(map[string]interface{})
	if _, ok := filter["phone_number"]; !ok {
		t.Fatalf("expected phone filter, got %v", filter)
	}
}

func TestRetrieveOrderParsesLoyaltyFields(t *testing.T) {
	platform, client := newFakePlatform(t)
	platform.on(http.MethodGet, "/v2/orders/order-1", `{"order":{
		"id":"order-1","state":"COMPLETED","closed_at":"2026-03-10T15:04:05Z",
		"line_items":[{"uid":"l1","quantity":"2","catalog_object_id":"var-1","applied_discounts":[{"discount_uid":"d1"}]}],
		"discounts":[{"uid":"d1","catalog_object_id":"disc-1","pricing_rule_id":"rule-1"}],
		"fulfillments":[{"type":"PICKUP","pickup_details":{"recipient":{"phone_number":" +15550100 "}}}]}}`)

	order, err := client.RetrieveOrder(context.Background(), "merchant-a", "order-1")
	if err != nil {
		t.Fatalf("retrieve order failed: %v", err)
	}
	if got := order.CompletedAt(); !got.Equal(time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected completed at %s", got)
	}
	ids := order.DiscountCatalogIDs(order.LineItems[0].AppliedDiscounts)
	if len(ids) != 2 || ids[0] != "disc-1" || ids[1] != "rule-1" {
		t.Fatalf("unexpected discount ids %v", ids)
	}
	if phone, _ := order.RecipientContact(); phone != "+15550100" {
		t.Fatalf("unexpected recipient phone %q", phone)
	}
	if ParseQuantity(order.LineItems[0].Quantity) != 2 {
		t.Fatalf("unexpected quantity")
	}

	if _, err := client.RetrieveOrder(context.Background(), "merchant-a", "order-missing"); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected request failure for missing order, got %v", err)
	}
}

func TestMinorAmountConversion(t *testing.T) {
	if got := FormatMinorAmount(1250, "USD"); got != "12.50" {
		t.Fatalf("unexpected usd format %s", got)
	}
	if got := FormatMinorAmount(1250, "JPY"); got != "1250" {
		t.Fatalf("unexpected jpy format %s", got)
	}
	minor, err := ParseMinorAmount("12.5", "USD")
	if err != nil || minor != 1250 {
		t.Fatalf("unexpected parse %d err=%v", minor, err)
	}
	if _, err := ParseMinorAmount("1.234", "USD"); err == nil {
		t.Fatalf("expected precision error")
	}
}
