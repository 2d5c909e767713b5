package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	return body
}

func TestErrorCarriesRequestIDAndRetryHint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(RequestIDKey, "req-1")

	Error(c, CodeBadGateway, "platform unavailable")
	if w.Code != http.StatusOK {
		t.Fatalf("http status want 200 got %d", w.Code)
	}
	body := decode(t, w)
	if body["status_code"] != float64(CodeBadGateway) || body["request_id"] != "req-1" || body["retryable"] != true {
		t.Fatalf("unexpected error body %v", body)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	BadRequest(c, "merchant id is required")
	body = decode(t, w)
	if _, ok := body["retryable"]; ok {
		t.Fatalf("validation errors must not be retryable: %v", body)
	}
	if _, ok := body["request_id"]; ok {
		t.Fatalf("request_id should be omitted when absent: %v", body)
	}
}

func TestSuccessWithPageFlattensEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SuccessWithPage(c, []string{"a"}, Pagination{Page: 1, PageSize: 20, Total: 1, TotalPage: 1})
	body := decode(t, w)
	if body["status_code"] != float64(0) || body["msg"] != "success" {
		t.Fatalf("unexpected page envelope %v", body)
	}
	if _, ok := body["pagination"].(map[string]interface{}); !ok {
		t.Fatalf("pagination missing: %v", body)
	}
}

func TestAppErrorRetryable(t *testing.T) {
	cause := errors.New("timeout")
	err := WrapError(CodeInternal, "internal error", cause)
	if !err.Retryable() || !errors.Is(err, cause) {
		t.Fatalf("internal errors wrap their cause and are retryable")
	}
	if WrapError(CodeConflict, "reward is not earned", nil).Retryable() {
		t.Fatalf("state conflicts are not retryable")
	}
}
