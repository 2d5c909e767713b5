package authz

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	policyTable     = "loyalty_admin_policies"
	rolePrefix      = "role:"
	roleAnchor      = "role:__anchor__"
)

// 令牌只携带角色，不为单个操作人落库策略，因此请求主体即角色
const defaultRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

var (
	ErrUnavailable      = errors.New("authz service unavailable")
	ErrRoleInvalid      = errors.New("role name invalid")
	ErrActionRequired   = errors.New("policy action is required")
	ErrBuiltinProtected = errors.New("builtin role policy cannot be revoked")
)

var roleNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,62}$`)

// Policy 权限策略
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// RoleInfo 角色及其直接策略
type RoleInfo struct {
	Role     string   `json:"role"`
	Builtin  bool     `json:"builtin"`
	Inherits []string `json:"inherits"`
	Policies []Policy `json:"policies"`
}

// Service 后台角色授权，策略持久化在 loyalty_admin_policies 表
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 加载策略表并创建 enforcer，策略变更自动落库
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, ErrUnavailable
	}

	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", policyTable)
	if err != nil {
		return nil, fmt.Errorf("authz: open policy table: %w", err)
	}
	m, err := model.NewModelFromString(defaultRBACModel)
	if err != nil {
		return nil, fmt.Errorf("authz: parse model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("authz: build enforcer: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("authz: load policies: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	return nil
}

// EnforceRoles 令牌携带的任一角色允许即放行，无法识别的角色名直接忽略
func (s *Service) EnforceRoles(roles []string, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	object, action := NormalizeObject(obj), NormalizeAction(act)
	for _, role := range roles {
		normalized, err := NormalizeRole(role)
		if err != nil {
			continue
		}
		allow, err := s.enforcer.Enforce(normalized, object, action)
		if err != nil {
			return false, err
		}
		if allow {
			return true, nil
		}
	}
	return false, nil
}

// RolesGranting 返回允许该操作的全部角色（含继承）
func (s *Service) RolesGranting(obj, act string) ([]string, error) {
	roles, err := s.ListRoles()
	if err != nil {
		return nil, err
	}
	granted := make([]string, 0, len(roles))
	for _, role := range roles {
		allow, err := s.enforcer.Enforce(role, NormalizeObject(obj), NormalizeAction(act))
		if err != nil {
			return nil, err
		}
		if allow {
			granted = append(granted, role)
		}
	}
	return granted, nil
}

// ReloadPolicy 重新加载策略（其他实例修改策略后调用）
func (s *Service) ReloadPolicy() error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.enforcer.LoadPolicy()
}

// EnsureRole 确保角色存在，返回规范化角色名
func (s *Service) EnsureRole(role string) (string, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return "", err
	}
	if err := s.ready(); err != nil {
		return "", err
	}
	if _, err := s.enforcer.AddNamedGroupingPolicy("g", normalized, roleAnchor); err != nil {
		return "", fmt.Errorf("authz: register role: %w", err)
	}
	return normalized, nil
}

// ListRoles 已登记的角色，按名称排序
func (s *Service) ListRoles() ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	links, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 0)
	if err != nil {
		return nil, fmt.Errorf("authz: list roles: %w", err)
	}
	seen := make(map[string]bool)
	var roles []string
	for _, link := range links {
		for _, name := range link {
			if strings.HasPrefix(name, rolePrefix) && name != roleAnchor && !seen[name] {
				seen[name] = true
				roles = append(roles, name)
			}
		}
	}
	sort.Strings(roles)
	return roles, nil
}

// DescribeRoles 角色、继承关系与直接策略
func (s *Service) DescribeRoles() ([]RoleInfo, error) {
	roles, err := s.ListRoles()
	if err != nil {
		return nil, err
	}
	builtin := builtinSeedIndex()
	infos := make([]RoleInfo, 0, len(roles))
	for _, role := range roles {
		policies, err := s.GetRolePolicies(role)
		if err != nil {
			return nil, err
		}
		links, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 0, role)
		if err != nil {
			return nil, fmt.Errorf("authz: list inheritance: %w", err)
		}
		inherits := make([]string, 0, len(links))
		for _, link := range links {
			if len(link) >= 2 && link[1] != roleAnchor {
				inherits = append(inherits, link[1])
			}
		}
		sort.Strings(inherits)
		_, isBuiltin := builtin[role]
		infos = append(infos, RoleInfo{Role: role, Builtin: isBuiltin, Inherits: inherits, Policies: policies})
	}
	return infos, nil
}

// GrantRolePolicy 为角色授予策略，角色不存在时自动创建
func (s *Service) GrantRolePolicy(role, object, action string) error {
	subject, err := s.EnsureRole(role)
	if err != nil {
		return err
	}
	act := NormalizeAction(action)
	if act == "" {
		return ErrActionRequired
	}
	if _, err := s.enforcer.AddPolicy(subject, NormalizeObject(object), act); err != nil {
		return fmt.Errorf("authz: grant: %w", err)
	}
	return nil
}

// RevokeRolePolicy 撤销角色策略；预置角色的默认策略不可撤销，否则下次启动会被重新写入
func (s *Service) RevokeRolePolicy(role, object, action string) error {
	subject, err := NormalizeRole(role)
	if err != nil {
		return err
	}
	obj, act := NormalizeObject(object), NormalizeAction(action)
	if act == "" {
		return ErrActionRequired
	}
	if err := s.ready(); err != nil {
		return err
	}
	if isBuiltinPolicy(subject, obj, act) {
		return ErrBuiltinProtected
	}
	if _, err := s.enforcer.RemovePolicy(subject, obj, act); err != nil {
		return fmt.Errorf("authz: revoke: %w", err)
	}
	return nil
}

// GetRolePolicies 角色的直接策略，不含继承而来的
func (s *Service) GetRolePolicies(role string) ([]Policy, error) {
	subject, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.enforcer.GetFilteredPolicy(0, subject)
	if err != nil {
		return nil, fmt.Errorf("authz: role policies: %w", err)
	}
	out := make([]Policy, 0, len(rows))
	for _, row := range rows {
		if len(row) >= 3 {
			out = append(out, Policy{Subject: row[0], Object: NormalizeObject(row[1]), Action: NormalizeAction(row[2])})
		}
	}
	return out, nil
}

// NormalizeRole 统一为 role:<name>，名称只允许小写字母、数字与 _ . -
func NormalizeRole(role string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(role))
	name = strings.TrimPrefix(name, rolePrefix)
	name = strings.ReplaceAll(name, " ", "_")
	if !roleNamePattern.MatchString(name) || rolePrefix+name == roleAnchor {
		return "", fmt.Errorf("%w: %q", ErrRoleInvalid, role)
	}
	return rolePrefix + name, nil
}

// NormalizeObject 资源路径以 / 开头并去掉 /api/v1 前缀，与路由注册的 FullPath 对齐
func NormalizeObject(object string) string {
	path := strings.TrimSpace(object)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path == apiV1Prefix {
		return "/"
	}
	if strings.HasPrefix(path, apiV1Prefix+"/") {
		return strings.TrimPrefix(path, apiV1Prefix)
	}
	return path
}

// NormalizeAction HTTP 方法大写
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
