package router

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shelfline-next/internal/authz"
	"github.com/shelfline-next/internal/config"
	handlershared "github.com/shelfline-next/internal/http/handlers/shared"
	"github.com/shelfline-next/internal/http/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCORSPolicyAllowOrigin(t *testing.T) {
	wildcard := newCORSPolicy(config.CORSConfig{AllowedOrigins: []string{"*"}})
	if got := wildcard.allowOrigin("https://backoffice.example.com"); got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	withCredentials := newCORSPolicy(config.CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true})
	if got := withCredentials.allowOrigin("https://backoffice.example.com"); got != "https://backoffice.example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	listed := newCORSPolicy(config.CORSConfig{AllowedOrigins: []string{"https://A.example.com", "https://b.example.com"}})
	if got := listed.allowOrigin("https://a.example.com"); got != "https://a.example.com" {
		t.Fatalf("allow-list should match case-insensitively, got %s", got)
	}
	if got := listed.allowOrigin("https://x.example.com"); got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
	if got := listed.allowOrigin(""); got != "" {
		t.Fatalf("missing origin should be empty, got %s", got)
	}
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(config.CORSConfig{AllowedOrigins: []string{"https://backoffice.example.com"}, MaxAge: 600}))
	r.GET("/api/v1/admin/offers", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/admin/offers", nil)
	req.Header.Set("Origin", "https://backoffice.example.com")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status want 204 got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://backoffice.example.com" {
		t.Fatalf("unexpected allow origin %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if w.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("unexpected max age %q", w.Header().Get("Access-Control-Max-Age"))
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		err    error
	}{
		{header: "", err: errAuthorizationMissing},
		{header: "Basic abc", err: errAuthorizationInvalid},
		{header: "Bearer", err: errAuthorizationInvalid},
		{header: "bearer  abc.def ", token: "abc.def"},
	}
	for _, tc := range cases {
		token, err := bearerToken(tc.header)
		if err != tc.err || token != tc.token {
			t.Fatalf("bearerToken(%q) want (%q, %v) got (%q, %v)", tc.header, tc.token, tc.err, token, err)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	generated := w2.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatalf("generated request id should not be empty")
	}
	if generated == "req-123" {
		t.Fatalf("generated request id should be fresh")
	}

	w3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req3.Header.Set(requestIDHeader, strings.Repeat("x", 200))
	r.ServeHTTP(w3, req3)
	if got := w3.Header().Get(requestIDHeader); len(got) > 128 {
		t.Fatalf("oversized request id should be replaced, got %d chars", len(got))
	}
}

func TestLoggerMiddlewareLevelFollowsBusinessCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggerMiddleware(zap.New(core)))
	r.POST("/hook", func(c *gin.Context) {
		c.Set(handlershared.ContextMerchantID, "m-1")
		response.Error(c, response.CodeBadGateway, "platform unavailable")
	})
	r.GET("/ok", func(c *gin.Context) { response.Success(c, nil) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/hook", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 2 {
		t.Fatalf("expected two access log entries, got %d", len(entries))
	}
	failed := entries[0]
	if failed.Level != zapcore.ErrorLevel {
		t.Fatalf("502 business code should log at error, got %s", failed.Level)
	}
	fields := failed.ContextMap()
	if fields["code"] != int64(response.CodeBadGateway) || fields["merchant_id"] != "m-1" || fields["route"] != "/hook" {
		t.Fatalf("unexpected access log fields %v", fields)
	}
	if entries[1].Level != zapcore.InfoLevel {
		t.Fatalf("success should log at info, got %s", entries[1].Level)
	}
}

func TestAdminJWTMiddlewareMissingSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(AdminJWTMiddleware(config.JWTConfig{}))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("status_code want 401 got %d", resp.StatusCode)
	}
}

func TestAdminJWTMiddlewareSetsContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.JWTConfig{SecretKey: "jwt-secret", Issuer: "console"}
	r := gin.New()
	r.Use(AdminJWTMiddleware(cfg))
	r.GET("/admin/ping", func(c *gin.Context) {
		merchantID, _ := handlershared.GetMerchantID(c)
		c.JSON(http.StatusOK, gin.H{
			"merchant_id": merchantID,
			"admin_id":    handlershared.GetAdminID(c),
			"roles":       contextRoles(c),
		})
	})

	token, err := authz.SignAdminToken(cfg.SecretKey, cfg.Issuer, authz.AdminClaims{
		MerchantID: "m-1",
		AdminID:    "a-1",
		Roles:      []string{"loyalty_viewer"},
	}, time.Minute)
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	var resp struct {
		MerchantID string   `json:"merchant_id"`
		AdminID    string   `json:"admin_id"`
		Roles      []string `json:"roles"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.MerchantID != "m-1" || resp.AdminID != "a-1" || len(resp.Roles) != 1 {
		t.Fatalf("unexpected context values: %+v", resp)
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req2.Header.Set("Authorization", "Token "+token)
	r.ServeHTTP(w2, req2)
	if !strings.Contains(w2.Body.String(), `"status_code":401`) {
		t.Fatalf("non-bearer scheme should be rejected, got %s", w2.Body.String())
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"merchant_id":"m-1"}`)
	hexSig := SignWebhookBody("k", body)
	if !verifySignature([]byte("k"), body, hexSig) {
		t.Fatalf("hex signature should verify")
	}
	raw, err := hex.DecodeString(hexSig)
	if err != nil {
		t.Fatalf("decode hex failed: %v", err)
	}
	if !verifySignature([]byte("k"), body, base64.StdEncoding.EncodeToString(raw)) {
		t.Fatalf("base64 signature should verify")
	}
	if verifySignature([]byte("other"), body, hexSig) {
		t.Fatalf("signature with wrong key should fail")
	}
	if verifySignature([]byte("k"), body, "") {
		t.Fatalf("empty signature should fail")
	}
}

func TestWebhookSignatureMiddlewareRestoresBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(WebhookSignatureMiddleware("k"))
	r.POST("/hook", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	})

	body := `{"type":"order.completed"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	req.Header.Set(SignatureHeader, SignWebhookBody("k", []byte(body)))
	r.ServeHTTP(w, req)
	if w.Body.String() != body {
		t.Fatalf("body want %s got %s", body, w.Body.String())
	}
}
