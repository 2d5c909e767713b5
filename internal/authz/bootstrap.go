package authz

import (
	"fmt"

	"github.com/shelfline-next/internal/constants"
)

// RoleSeed 预置角色定义；Immutable 的策略启动时写入且不可撤销
type RoleSeed struct {
	Role      string
	Inherits  []string
	Policies  []Policy
	Immutable bool
}

// BuiltinRoleSeeds 系统预置角色矩阵
// viewer 只读；operator 可核销奖励、重算单个汇总；manager 管理活动与投递
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role:      constants.RoleLoyaltyViewer,
			Policies:  []Policy{{Object: "/admin/*", Action: "GET"}},
			Immutable: true,
		},
		{
			Role:     constants.RoleLoyaltyOperator,
			Inherits: []string{constants.RoleLoyaltyViewer},
			Policies: []Policy{
				{Object: "/admin/rewards/:id/redeem", Action: "POST"},
				{Object: "/admin/offers/:id/customers/:customer_id/summary/rebuild", Action: "POST"},
			},
			Immutable: true,
		},
		{
			Role:     constants.RoleLoyaltyManager,
			Inherits: []string{constants.RoleLoyaltyOperator},
			Policies: []Policy{
				{Object: "/admin/offers", Action: "*"},
				{Object: "/admin/offers/:id", Action: "*"},
				{Object: "/admin/offers/:id/deactivate", Action: "POST"},
				{Object: "/admin/offers/:id/variations", Action: "*"},
				{Object: "/admin/offers/:id/variations/:variation_id", Action: "DELETE"},
				{Object: "/admin/summaries/rebuild", Action: "POST"},
				{Object: "/admin/outbox/retry-failed", Action: "POST"},
				{Object: "/admin/discounts/reissue", Action: "POST"},
			},
			Immutable: true,
		},
	}
}

type seedPolicyKey struct {
	role, object, action string
}

func builtinSeedIndex() map[string]RoleSeed {
	index := make(map[string]RoleSeed)
	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			continue
		}
		index[role] = seed
	}
	return index
}

func builtinPolicyKeys() map[seedPolicyKey]struct{} {
	keys := make(map[seedPolicyKey]struct{})
	for role, seed := range builtinSeedIndex() {
		if !seed.Immutable {
			continue
		}
		for _, policy := range seed.Policies {
			keys[seedPolicyKey{role, NormalizeObject(policy.Object), NormalizeAction(policy.Action)}] = struct{}{}
		}
	}
	return keys
}

func isBuiltinPolicy(role, object, action string) bool {
	_, ok := builtinPolicyKeys()[seedPolicyKey{role, object, action}]
	return ok
}

// BootstrapBuiltinRoles 写入预置角色、继承关系与默认策略，可重复执行
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return fmt.Errorf("create builtin role failed: %w", err)
		}
		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
