package admin

import (
	handlershared "github.com/shelfline-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondServiceError(c *gin.Context, err error) {
	handlershared.RespondServiceError(c, err)
}

func getMerchantID(c *gin.Context) (string, bool) {
	return handlershared.GetMerchantID(c)
}

func getAdminID(c *gin.Context) string {
	return handlershared.GetAdminID(c)
}
