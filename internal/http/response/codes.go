package response

// 业务状态码沿用 HTTP 语义，HTTP 状态始终为 200
const (
	CodeOK              = 0
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeTooManyRequests = 429
	CodeInternal        = 500
	CodeBadGateway      = 502
)

// IsRetryable 平台回调方据此决定是否重投：限流与服务端故障可重试，业务拒绝不可重试
func IsRetryable(code int) bool {
	return code == CodeTooManyRequests || code >= CodeInternal
}
