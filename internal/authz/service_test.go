package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceRolesWithRolePolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/rewards/:id", "GET"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}

	allow, err := svc.EnforceRoles([]string{"ops"}, "/api/v1/admin/rewards/42", "get")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceRoles([]string{"ops"}, "/api/v1/admin/rewards/42", "POST")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}

	allow, err = svc.EnforceRoles([]string{"", "__anchor__", "unknown"}, "/admin/rewards/42", "GET")
	if err != nil || allow {
		t.Fatalf("expected unknown roles denied, allow=%v err=%v", allow, err)
	}
}

func TestRevokeRolePolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/offers", "POST"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	policies, err := svc.GetRolePolicies("ops")
	if err != nil || len(policies) != 1 || policies[0].Object != "/admin/offers" || policies[0].Action != "POST" {
		t.Fatalf("unexpected policies %+v err=%v", policies, err)
	}
	if err := svc.RevokeRolePolicy("ops", "/admin/offers", "post"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	allow, err := svc.EnforceRoles([]string{"role:ops"}, "/admin/offers", "POST")
	if err != nil || allow {
		t.Fatalf("expected revoked policy denied, allow=%v err=%v", allow, err)
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/rewards/:id", want: "/admin/rewards/:id"},
		{in: "/admin/rewards/:id", want: "/admin/rewards/:id"},
		{in: "admin/rewards", want: "/admin/rewards"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap should be a no-op, got %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	wantRoles := map[string]bool{
		"role:loyalty_viewer":   true,
		"role:loyalty_operator": true,
		"role:loyalty_manager":  true,
	}
	for _, role := range roles {
		delete(wantRoles, role)
	}
	if len(wantRoles) != 0 {
		t.Fatalf("builtin roles missing: %v", wantRoles)
	}

	checks := []struct {
		role   string
		object string
		action string
		want   bool
	}{
		{role: "loyalty_viewer", object: "/api/v1/admin/rewards", action: "GET", want: true},
		{role: "loyalty_viewer", object: "/api/v1/admin/rewards/7/redeem", action: "POST", want: false},
		{role: "loyalty_operator", object: "/api/v1/admin/rewards/7/redeem", action: "POST", want: true},
		{role: "loyalty_operator", object: "/api/v1/admin/offers", action: "POST", want: false},
		{role: "loyalty_operator", object: "/api/v1/admin/audit-logs", action: "GET", want: true},
		{role: "loyalty_manager", object: "/api/v1/admin/offers/3", action: "PUT", want: true},
		{role: "loyalty_manager", object: "/api/v1/admin/offers/3/variations/var-9", action: "DELETE", want: true},
		{role: "loyalty_manager", object: "/api/v1/admin/rewards/7/redeem", action: "POST", want: true},
	}
	for _, item := range checks {
		allow, err := svc.EnforceRoles([]string{item.role}, item.object, item.action)
		if err != nil {
			t.Fatalf("enforce %s %s %s failed: %v", item.role, item.action, item.object, err)
		}
		if allow != item.want {
			t.Fatalf("enforce %s %s %s: want %v got %v", item.role, item.action, item.object, item.want, allow)
		}
	}
}

func TestNormalizeRole(t *testing.T) {
	valid := map[string]string{
		"Loyalty_Viewer": "role:loyalty_viewer",
		"role:ops":       "role:ops",
		" night shift ":  "role:night_shift",
	}
	for in, want := range valid {
		got, err := NormalizeRole(in)
		if err != nil || got != want {
			t.Fatalf("normalize role %q want %q got %q err=%v", in, want, got, err)
		}
	}
	for _, in := range []string{"", "role:", "__anchor__", "ops/admin", "-ops"} {
		if _, err := NormalizeRole(in); !errors.Is(err, ErrRoleInvalid) {
			t.Fatalf("role %q should be invalid, got %v", in, err)
		}
	}
}

func TestBuiltinPolicyCannotBeRevoked(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	err := svc.RevokeRolePolicy("loyalty_operator", "/api/v1/admin/rewards/:id/redeem", "post")
	if !errors.Is(err, ErrBuiltinProtected) {
		t.Fatalf("expected builtin protected error, got %v", err)
	}

	// 预置角色上额外授予的策略可以撤销
	if err := svc.GrantRolePolicy("loyalty_operator", "/admin/outbox/retry-failed", "POST"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if err := svc.RevokeRolePolicy("loyalty_operator", "/admin/outbox/retry-failed", "POST"); err != nil {
		t.Fatalf("extra policy should be revocable: %v", err)
	}
	if err := svc.GrantRolePolicy("ops", "/admin/offers", " "); !errors.Is(err, ErrActionRequired) {
		t.Fatalf("expected action required, got %v", err)
	}
}

func TestDescribeRolesAndRolesGranting(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if err := svc.GrantRolePolicy("auditor", "/admin/audit-logs", "GET"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	infos, err := svc.DescribeRoles()
	if err != nil {
		t.Fatalf("describe roles failed: %v", err)
	}
	byRole := make(map[string]RoleInfo, len(infos))
	for _, info := range infos {
		byRole[info.Role] = info
	}
	manager := byRole["role:loyalty_manager"]
	if !manager.Builtin || len(manager.Inherits) != 1 || manager.Inherits[0] != "role:loyalty_operator" {
		t.Fatalf("unexpected manager info %+v", manager)
	}
	auditor := byRole["role:auditor"]
	if auditor.Builtin || len(auditor.Inherits) != 0 || len(auditor.Policies) != 1 {
		t.Fatalf("unexpected auditor info %+v", auditor)
	}

	granted, err := svc.RolesGranting("/api/v1/admin/rewards/:id/redeem", "POST")
	if err != nil {
		t.Fatalf("roles granting failed: %v", err)
	}
	want := []string{"role:loyalty_manager", "role:loyalty_operator"}
	if strings.Join(granted, ",") != strings.Join(want, ",") {
		t.Fatalf("roles granting want %v got %v", want, granted)
	}
}

func TestNilServiceUnavailable(t *testing.T) {
	var svc *Service
	if _, err := svc.EnforceRoles([]string{"ops"}, "/admin/offers", "GET"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := svc.ListRoles(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
