package shared

import (
	"errors"

	"github.com/shelfline-next/internal/http/response"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get(response.RequestIDKey); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"retryable", appErr.Retryable(),
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondServiceError 按错误类别映射业务码；业务类错误直接返回错误信息。
func RespondServiceError(c *gin.Context, err error) {
	code, known := ServiceErrorCode(err)
	if !known {
		RespondError(c, code, "internal error", err)
		return
	}
	RequestLog(c).Infow("handler_business_error", "code", code, "error", err)
	response.Error(c, code, err.Error())
}

// ServiceErrorCode 错误类别对应的业务码，第二个返回值表示是否为已知类别
func ServiceErrorCode(err error) (int, bool) {
	switch {
	case err == nil:
		return response.CodeOK, true
	case errors.Is(err, service.ErrValidation):
		return response.CodeBadRequest, true
	case errors.Is(err, service.ErrState):
		return response.CodeConflict, true
	case errors.Is(err, service.ErrNotFound):
		return response.CodeNotFound, true
	case errors.Is(err, service.ErrConflict):
		return response.CodeConflict, true
	case errors.Is(err, service.ErrExternalService):
		return response.CodeBadGateway, true
	default:
		return response.CodeInternal, false
	}
}
