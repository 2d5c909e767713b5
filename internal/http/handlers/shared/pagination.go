package shared

import (
	"strconv"
	"strings"

	"github.com/shelfline-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageQuery 读取 page / page_size，非法值回退默认，page_size 上限 100
func PageQuery(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.Query("page"))
	pageSize, _ = strconv.Atoi(c.Query("page_size"))
	page = max(page, 1)
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return page, min(pageSize, maxPageSize)
}

// BuildPagination 组装分页信息
func BuildPagination(page, pageSize int, total int64) response.Pagination {
	pages := int64(0)
	if pageSize > 0 {
		pages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return response.Pagination{Page: page, PageSize: pageSize, Total: total, TotalPage: pages}
}

// ParseUintParam 解析路径中的正整数 ID
func ParseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		RespondError(c, response.CodeBadRequest, name+" is invalid", nil)
		return 0, false
	}
	return uint(value), true
}

// ParseUintQuery 解析可选的正整数查询参数，缺失返回 0
func ParseUintQuery(c *gin.Context, name string) uint {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(value)
}

// ParseBoolQuery 解析可选的布尔查询参数
func ParseBoolQuery(c *gin.Context, name string) *bool {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &value
}
