package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConfigInvalid   = errors.New("pos config invalid")
	ErrRequestFailed   = errors.New("pos request failed")
	ErrResponseInvalid = errors.New("pos response invalid")
)

const (
	defaultAPIBaseURL  = "https://connect.squareup.com"
	defaultAPIVersion  = "2025-01-23"
	defaultTimeout     = 12 * time.Second
	defaultNamePrefix  = "Frequent Buyer Reward"
	maxErrorBodyLength = 512
)

// Config 收银平台接入配置
type Config struct {
	BaseURL            string
	APIVersion         string
	AccessToken        string
	AccessTokens       map[string]string
	Timeout            time.Duration
	DiscountNamePrefix string
}

// Client 收银平台 REST 客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建客户端
func NewClient(cfg Config) *Client {
	cfg.normalize()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// WithHTTPClient 替换底层 HTTP 客户端
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		return c
	}
	return &Client{cfg: c.cfg, httpClient: httpClient}
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultAPIBaseURL
	}
	c.APIVersion = strings.TrimSpace(c.APIVersion)
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	c.DiscountNamePrefix = strings.TrimSpace(c.DiscountNamePrefix)
	if c.DiscountNamePrefix == "" {
		c.DiscountNamePrefix = defaultNamePrefix
	}
}

func (c *Client) tokenFor(merchantID string) (string, error) {
	if token := strings.TrimSpace(c.cfg.AccessTokens[strings.TrimSpace(merchantID)]); token != "" {
		return token, nil
	}
	if token := strings.TrimSpace(c.cfg.AccessToken); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("%w: access token missing for merchant %s", ErrConfigInvalid, merchantID)
}

// doJSONRequest 发送 JSON 请求并返回响应体；非 2xx 视为失败
func (c *Client) doJSONRequest(ctx context.Context, merchantID, method, path string, payload interface{}) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	token, err := c.tokenFor(merchantID)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request failed", ErrRequestFailed)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Square-Version", c.cfg.APIVersion)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s status=%d body=%s", ErrRequestFailed, method, path, resp.StatusCode, truncate(string(body), maxErrorBodyLength))
	}
	return body, nil
}

func decodeInto(body []byte, dest interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return nil
}

// idempotencyKey 根据业务键生成稳定的幂等键，重试时平台返回同一对象
func idempotencyKey(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("shelfline:"+strings.Join(parts, ":"))).String()
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
