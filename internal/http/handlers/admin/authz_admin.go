package admin

import (
	"errors"
	"strings"

	"github.com/shelfline-next/internal/authz"
	"github.com/shelfline-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListAuthzRoles 已登记的角色、继承关系与直接策略
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.DescribeRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "list roles failed", err)
		return
	}
	response.Success(c, roles)
}

// GetAuthzRolePolicies 角色策略
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	role := strings.TrimSpace(c.Param("role"))
	if role == "" {
		respondError(c, response.CodeBadRequest, "role is required", nil)
		return
	}
	policies, err := h.AuthzService.GetRolePolicies(role)
	switch {
	case err == nil:
		response.Success(c, policies)
	case errors.Is(err, authz.ErrRoleInvalid):
		respondError(c, response.CodeBadRequest, "role invalid", err)
	default:
		respondError(c, response.CodeInternal, "get role policies failed", err)
	}
}
