package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shelfline-next/internal/authz"
	"github.com/shelfline-next/internal/config"
	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/migration"
	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/provider"
	"github.com/shelfline-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	routerTestSecret   = "router-test-secret"
	routerTestIssuer   = "merchant-console"
	routerTestMerchant = "m-router"
)

type apiResponse struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupRouterTest(t *testing.T, signatureKey string) (*gin.Engine, *provider.Container) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:router_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := migration.Run(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Server.Mode = "debug"
	cfg.AdminJWT = config.JWTConfig{SecretKey: routerTestSecret, Issuer: routerTestIssuer}
	cfg.Loyalty.OutboxMaxAttempts = 3
	cfg.Webhook.SignatureKey = signatureKey

	c, err := provider.NewContainer(cfg, db)
	if err != nil {
		t.Fatalf("new container failed: %v", err)
	}
	t.Cleanup(c.Close)
	return SetupRouter(cfg, c), c
}

func adminToken(t *testing.T, roles ...string) string {
	t.Helper()
	token, err := authz.SignAdminToken(routerTestSecret, routerTestIssuer, authz.AdminClaims{
		MerchantID: routerTestMerchant,
		AdminID:    "admin-1",
		Roles:      roles,
	}, time.Minute)
	if err != nil {
		t.Fatalf("sign admin token failed: %v", err)
	}
	return token
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body []byte, headers map[string]string) apiResponse {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s %s: http status want 200 got %d body=%s", method, path, w.Code, w.Body.String())
	}
	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func seedOffer(t *testing.T, c *provider.Container, variationID string) *models.LoyaltyOffer {
	t.Helper()
	offer, err := c.OfferService.Create(service.OfferInput{
		MerchantID:       routerTestMerchant,
		Name:             "Coffee card",
		BrandName:        "House",
		SizeGroup:        "12oz",
		RequiredQuantity: 3,
		WindowMonths:     12,
		ActorID:          "seed",
	})
	if err != nil {
		t.Fatalf("create offer failed: %v", err)
	}
	if _, err := c.OfferService.AssignVariation(context.Background(), service.VariationAssignInput{
		MerchantID:  routerTestMerchant,
		OfferID:     offer.ID,
		VariationID: variationID,
	}); err != nil {
		t.Fatalf("assign variation failed: %v", err)
	}
	return offer
}

func orderEvent(t *testing.T, orderID, variationID string, quantity int) []byte {
	t.Helper()
	payload := map[string]interface{}{
		"merchant_id": routerTestMerchant,
		"event_id":    "evt-" + orderID,
		"type":        constants.WebhookEventOrderCompleted,
		"data": map[string]interface{}{
			"order": map[string]interface{}{
				"id":          orderID,
				"state":       "COMPLETED",
				"customer_id": "cust-1",
				"closed_at":   time.Now().UTC().Format(time.RFC3339),
				"line_items": []map[string]interface{}{{
					"uid":               "line-1",
					"quantity":          fmt.Sprintf("%d", quantity),
					"catalog_object_id": variationID,
					"base_price_money":  map[string]interface{}{"amount": 450, "currency": "USD"},
					"gross_sales_money": map[string]interface{}{"amount": 450 * quantity, "currency": "USD"},
					"total_money":       map[string]interface{}{"amount": 450 * quantity, "currency": "USD"},
				}},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal event failed: %v", err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	r, _ := setupRouterTest(t, "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"database":"ok"`) {
		t.Fatalf("healthz want 200 with database ok, got %d %s", w.Code, w.Body.String())
	}
}

func TestWebhookOrderCompletedAccruesPurchase(t *testing.T) {
	r, c := setupRouterTest(t, "")
	offer := seedOffer(t, c, "var-latte")

	resp := doJSON(t, r, http.MethodPost, "/api/v1/webhooks/pos", "", orderEvent(t, "ord-1", "var-latte", 2), nil)
	if resp.StatusCode != 0 {
		t.Fatalf("webhook status_code want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
	var data struct {
		Ignored bool `json:"ignored"`
		Results []struct {
			Processed bool `json:"processed"`
		} `json:"results"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal data failed: %v", err)
	}
	if data.Ignored || len(data.Results) != 1 || !data.Results[0].Processed {
		t.Fatalf("unexpected webhook result: %s", string(resp.Data))
	}

	summary, err := c.LoyaltyService.GetSummary(routerTestMerchant, "cust-1", offer.ID)
	if err != nil {
		t.Fatalf("get summary failed: %v", err)
	}
	if summary == nil || summary.CurrentQuantity != 2 {
		t.Fatalf("summary quantity want 2 got %+v", summary)
	}

	// 重复投递不重复累计
	doJSON(t, r, http.MethodPost, "/api/v1/webhooks/pos", "", orderEvent(t, "ord-1", "var-latte", 2), nil)
	summary, err = c.LoyaltyService.GetSummary(routerTestMerchant, "cust-1", offer.ID)
	if err != nil || summary.CurrentQuantity != 2 {
		t.Fatalf("duplicate delivery changed summary: %+v err=%v", summary, err)
	}
}

func TestWebhookIgnoresUnknownEventType(t *testing.T) {
	r, _ := setupRouterTest(t, "")
	body := []byte(`{"merchant_id":"m-router","event_id":"e-1","type":"catalog.version.updated","data":{}}`)
	resp := doJSON(t, r, http.MethodPost, "/api/v1/webhooks/pos", "", body, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d", resp.StatusCode)
	}
	var data struct {
		Ignored bool   `json:"ignored"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal data failed: %v", err)
	}
	if !data.Ignored || data.Reason != constants.ReasonEventIgnored {
		t.Fatalf("unexpected ignore result %+v", data)
	}
}

func TestWebhookRequiresMerchant(t *testing.T) {
	r, _ := setupRouterTest(t, "")
	resp := doJSON(t, r, http.MethodPost, "/api/v1/webhooks/pos", "", []byte(`{"type":"order.completed"}`), nil)
	if resp.StatusCode != 400 {
		t.Fatalf("status_code want 400 got %d", resp.StatusCode)
	}
}

func TestWebhookSignature(t *testing.T) {
	r, c := setupRouterTest(t, "hook-key")
	seedOffer(t, c, "var-latte")
	body := orderEvent(t, "ord-sig", "var-latte", 1)

	resp := doJSON(t, r, http.MethodPost, "/api/v1/webhooks/pos", "", body, nil)
	if resp.StatusCode != 401 {
		t.Fatalf("unsigned delivery want 401 got %d", resp.StatusCode)
	}
	resp = doJSON(t, r, http.MethodPost, "/api/v1/webhooks/pos", "", body, map[string]string{SignatureHeader: "deadbeef"})
	if resp.StatusCode != 401 {
		t.Fatalf("bad signature want 401 got %d", resp.StatusCode)
	}
	resp = doJSON(t, r, http.MethodPost, "/api/v1/webhooks/pos", "", body, map[string]string{SignatureHeader: SignWebhookBody("hook-key", body)})
	if resp.StatusCode != 0 {
		t.Fatalf("signed delivery want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
}

func TestAdminRoutesEnforceRoles(t *testing.T) {
	r, c := setupRouterTest(t, "")
	offer := seedOffer(t, c, "var-latte")

	resp := doJSON(t, r, http.MethodGet, "/api/v1/admin/offers", "", nil, nil)
	if resp.StatusCode != 401 {
		t.Fatalf("missing token want 401 got %d", resp.StatusCode)
	}

	viewer := adminToken(t, constants.RoleLoyaltyViewer)
	resp = doJSON(t, r, http.MethodGet, "/api/v1/admin/offers", viewer, nil, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("viewer list offers want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
	resp = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/admin/offers/%d/deactivate", offer.ID), viewer, nil, nil)
	if resp.StatusCode != 403 {
		t.Fatalf("viewer deactivate want 403 got %d", resp.StatusCode)
	}

	manager := adminToken(t, constants.RoleLoyaltyManager)
	create := []byte(`{"name":"Bagel card","brand_name":"House","size_group":"single","required_quantity":5,"window_months":6}`)
	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/offers", manager, create, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("manager create offer want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
	resp = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/admin/offers/%d/deactivate", offer.ID), manager, nil, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("manager deactivate want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/admin/offers/999999", manager, nil, nil)
	if resp.StatusCode != 404 {
		t.Fatalf("missing offer want 404 got %d", resp.StatusCode)
	}
}

func TestAdminPermissionCatalog(t *testing.T) {
	r, _ := setupRouterTest(t, "")
	resp := doJSON(t, r, http.MethodGet, "/api/v1/admin/authz/permissions", adminToken(t, constants.RoleLoyaltyViewer), nil, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("catalog want 0 got %d", resp.StatusCode)
	}
	var entries []permissionEntry
	if err := json.Unmarshal(resp.Data, &entries); err != nil {
		t.Fatalf("unmarshal catalog failed: %v", err)
	}
	var redeem *permissionEntry
	for i := range entries {
		if entries[i].Permission == "POST:/admin/rewards/:id/redeem" {
			redeem = &entries[i]
		}
	}
	if redeem == nil || redeem.Module != "rewards" {
		t.Fatalf("redeem permission missing from catalog: %+v", entries)
	}
	if strings.Join(redeem.Roles, ",") != "role:loyalty_manager,role:loyalty_operator" {
		t.Fatalf("unexpected redeem roles %v", redeem.Roles)
	}
}

func TestPermissionModule(t *testing.T) {
	cases := map[string]string{
		"/admin/rewards/:id/redeem": "rewards",
		"/admin/offers":             "offers",
		"/admin/":                   "admin",
	}
	for object, want := range cases {
		if got := permissionModule(object); got != want {
			t.Fatalf("permissionModule(%q) want %q got %q", object, want, got)
		}
	}
}
