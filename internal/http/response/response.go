package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// gin 上下文键
const (
	RequestIDKey  = "request_id"
	StatusCodeKey = "status_code" // 本次响应的业务码，供访问日志读取
)

// Response 统一响应结构
type Response struct {
	StatusCode int         `json:"status_code"`
	Msg        string      `json:"msg"`
	Data       interface{} `json:"data"`
	RequestID  string      `json:"request_id,omitempty"`
	Retryable  bool        `json:"retryable,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	Response
	Pagination Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, CodeOK, build(c, CodeOK, "success", data))
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, data interface{}, pagination Pagination) {
	write(c, CodeOK, PageResponse{
		Response:   build(c, CodeOK, "success", data),
		Pagination: pagination,
	})
}

// Error 错误响应
func Error(c *gin.Context, statusCode int, msg string) {
	write(c, statusCode, build(c, statusCode, msg, nil))
}

// Unauthorized 401响应
func Unauthorized(c *gin.Context, msg string) {
	Error(c, CodeUnauthorized, msg)
}

// Forbidden 403响应
func Forbidden(c *gin.Context, msg string) {
	Error(c, CodeForbidden, msg)
}

// BadRequest 400响应
func BadRequest(c *gin.Context, msg string) {
	Error(c, CodeBadRequest, msg)
}

// StatusCode 读取已写出的业务码，未写出时返回 false
func StatusCode(c *gin.Context) (int, bool) {
	if c == nil {
		return 0, false
	}
	value, ok := c.Get(StatusCodeKey)
	if !ok {
		return 0, false
	}
	code, ok := value.(int)
	return code, ok
}

func write(c *gin.Context, code int, body interface{}) {
	c.Set(StatusCodeKey, code)
	c.JSON(http.StatusOK, body)
}

func build(c *gin.Context, code int, msg string, data interface{}) Response {
	return Response{
		StatusCode: code,
		Msg:        msg,
		Data:       data,
		RequestID:  requestID(c),
		Retryable:  code != CodeOK && IsRetryable(code),
	}
}

func requestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Get(RequestIDKey); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
