package router

import (
	"sort"
	"strings"

	"github.com/shelfline-next/internal/authz"

	"github.com/gin-gonic/gin"
)

const adminRoutePrefix = "/api/v1/admin/"

// permissionEntry 后台接口权限目录项，Roles 为当前允许访问的角色
type permissionEntry struct {
	Module     string   `json:"module"`
	Method     string   `json:"method"`
	Object     string   `json:"object"`
	Permission string   `json:"permission"`
	Roles      []string `json:"roles"`
}

type roleResolver interface {
	RolesGranting(obj, act string) ([]string, error)
}

func buildPermissionCatalog(routes gin.RoutesInfo, resolver roleResolver) ([]permissionEntry, error) {
	seen := make(map[string]struct{}, len(routes))
	entries := make([]permissionEntry, 0, len(routes))
	for _, route := range routes {
		method := strings.ToUpper(route.Method)
		if method == "OPTIONS" || method == "HEAD" || !strings.HasPrefix(route.Path, adminRoutePrefix) {
			continue
		}
		object := authz.NormalizeObject(route.Path)
		permission := method + ":" + object
		if _, ok := seen[permission]; ok {
			continue
		}
		seen[permission] = struct{}{}

		roles := []string{}
		if resolver != nil {
			granted, err := resolver.RolesGranting(object, method)
			if err != nil {
				return nil, err
			}
			roles = granted
		}
		entries = append(entries, permissionEntry{
			Module:     permissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
			Roles:      roles,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Object != b.Object {
			return a.Object < b.Object
		}
		return a.Method < b.Method
	})
	return entries, nil
}

// permissionModule /admin/rewards/:id/redeem -> rewards
func permissionModule(object string) string {
	rest := strings.TrimPrefix(object, "/admin/")
	module, _, _ := strings.Cut(rest, "/")
	if module == "" {
		return "admin"
	}
	return module
}
