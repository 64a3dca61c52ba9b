package flockgate

import (
	"context"
	"testing"

	"github.com/flockhq/flockgate/route"
)

func TestCanNavigateAnonymous(t *testing.T) {
	f := newTestGate(t, nil)

	cases := []struct {
		path     string
		allowed  bool
		redirect string
	}{
		{"/", true, ""},
		{"/login", true, ""},
		{"/dashboard", false, "/"},
		{"/admin", false, "/"},
		{"/admin/users", false, "/"},
		{"/nowhere", false, "/"},
	}
	for _, tc := range cases {
		d := f.gate.CanNavigate(tc.path)
		if d.Allowed != tc.allowed || d.RedirectTo != tc.redirect {
			t.Errorf("anonymous %q: got {%v %q}, want {%v %q}",
				tc.path, d.Allowed, d.RedirectTo, tc.allowed, tc.redirect)
		}
	}
}

func TestCanNavigateMember(t *testing.T) {
	f := newTestGate(t, nil)
	mustSignIn(t, f, "member@example.com")

	if d := f.gate.CanNavigate("/dashboard"); !d.Allowed {
		t.Fatalf("member denied /dashboard: %+v", d)
	}
	if d := f.gate.CanNavigate("/dashboard/giving"); !d.Allowed {
		t.Fatalf("member denied nested dashboard path: %+v", d)
	}
	if d := f.gate.CanNavigate("/admin"); d.Allowed || d.RedirectTo != "/" {
		t.Fatalf("member must be denied /admin with redirect to /, got %+v", d)
	}
}

func TestCanNavigateAdmin(t *testing.T) {
	f := newTestGate(t, nil)
	mustSignIn(t, f, "admin@example.com")

	for _, path := range []string{"/", "/dashboard", "/admin", "/admin/users"} {
		if d := f.gate.CanNavigate(path); !d.Allowed {
			t.Fatalf("admin denied %q: %+v", path, d)
		}
	}
}

func TestCanNavigateIdempotent(t *testing.T) {
	f := newTestGate(t, nil)
	mustSignIn(t, f, "member@example.com")

	first := f.gate.CanNavigate("/admin")
	for i := 0; i < 5; i++ {
		if got := f.gate.CanNavigate("/admin"); got != first {
			t.Fatalf("decision drifted on repeat: %+v vs %+v", got, first)
		}
	}
	if !f.gate.CanNavigate("/dashboard").Allowed {
		t.Fatal("evaluating a denied path must not mutate session state")
	}
}

func TestRoleForPathIsTotal(t *testing.T) {
	f := newTestGate(t, nil)

	cases := []struct {
		path string
		want route.RequiredRole
	}{
		{"/", route.RequirePublic},
		{"/login", route.RequirePublic},
		{"/dashboard", route.RequireMember},
		{"/dashboard/", route.RequireMember},
		{"/admin/users?tab=2", route.RequireAdmin},
		{"/unknown/deep/path", route.RequirePublic},
		{"", route.RequirePublic},
		{"no-leading-slash", route.RequirePublic},
	}
	for _, tc := range cases {
		if got := f.gate.RoleForPath(tc.path); got != tc.want {
			t.Errorf("RoleForPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestRoleForPathIndependentOfSession(t *testing.T) {
	f := newTestGate(t, nil)

	before := f.gate.RoleForPath("/admin")
	mustSignIn(t, f, "admin@example.com")
	if after := f.gate.RoleForPath("/admin"); after != before {
		t.Fatalf("RoleForPath changed with session: %v vs %v", after, before)
	}
	f.gate.SignOut(context.Background())
	if after := f.gate.RoleForPath("/admin"); after != before {
		t.Fatalf("RoleForPath changed after sign-out: %v vs %v", after, before)
	}
}

func TestCustomRouteTable(t *testing.T) {
	rules := []route.Rule{
		{PathPrefix: "/", RequiredRole: route.RequirePublic},
		{PathPrefix: "/members", RequiredRole: route.RequireMember, RedirectOnDeny: "/join"},
	}
	f := newTestGate(t, func(c *Config) {
		c.Routes.Rules = rules
		c.Routes.FallbackRedirect = "/join"
	})

	if d := f.gate.CanNavigate("/members/directory"); d.Allowed || d.RedirectTo != "/join" {
		t.Fatalf("expected deny with custom redirect, got %+v", d)
	}

	mustSignIn(t, f, "member@example.com")
	if d := f.gate.CanNavigate("/members"); !d.Allowed {
		t.Fatalf("member denied custom member area: %+v", d)
	}
}
