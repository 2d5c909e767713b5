package admin

import "github.com/shelfline-next/internal/provider"

// Handler 后台管理接口处理器入口
// 说明：商户由令牌决定，所有查询都限定在该商户内。
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
