package route

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Role is the access tier held by the current session.
type Role uint8

const (
	// RoleAnonymous is the tier of a context with no authenticated session.
	RoleAnonymous Role = iota
	// RoleMember is the tier of an authenticated congregation member.
	RoleMember
	// RoleAdmin is the tier of an authenticated church administrator.
	RoleAdmin
)

// String returns the wire/claim representation of the role.
func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}

// ParseRole maps a provider role claim to a [Role]. Unrecognized or empty
// claims resolve to [RoleAnonymous] so an unexpected claim value can never
// grant access.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "member":
		return RoleMember, nil
	case "admin":
		return RoleAdmin, nil
	case "", "anonymous":
		return RoleAnonymous, nil
	default:
		return RoleAnonymous, fmt.Errorf("unknown role claim %q", s)
	}
}

// RequiredRole is the minimum tier a rule demands for its area.
type RequiredRole uint8

const (
	// RequirePublic admits every role, including anonymous.
	RequirePublic RequiredRole = iota
	// RequireMember admits member and admin.
	RequireMember
	// RequireAdmin admits admin only.
	RequireAdmin
)

// String returns a stable name for the required tier.
func (rr RequiredRole) String() string {
	switch rr {
	case RequireMember:
		return "member"
	case RequireAdmin:
		return "admin"
	default:
		return "public"
	}
}

// Admits reports whether a session holding role may enter an area guarded
// at this tier. Admin satisfies member-tier areas; the reverse never holds.
func (rr RequiredRole) Admits(r Role) bool {
	switch rr {
	case RequirePublic:
		return true
	case RequireMember:
		return r == RoleMember || r == RoleAdmin
	case RequireAdmin:
		return r == RoleAdmin
	default:
		return false
	}
}

// Rule is the access policy for one navigable area.
type Rule struct {
	PathPrefix     string
	RequiredRole   RequiredRole
	RedirectOnDeny string
}

// Decision is the outcome of a guard evaluation. A denied decision is a
// normal control-flow result, never an error.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

// Table is the immutable set of guard rules plus a fallback for paths no
// rule covers.
type Table struct {
	rules    []Rule
	fallback Rule
}

// NewTable validates and indexes the given rules. Rules are sorted by
// descending prefix length so Match resolves by longest prefix. fallback
// applies to paths outside every prefix; its RedirectOnDeny is also the
// redirect target for unmatched paths.
func NewTable(rules []Rule, fallback Rule) (*Table, error) {
	if fallback.RedirectOnDeny == "" {
		return nil, errors.New("fallback rule requires a redirect target")
	}

	seen := make(map[string]struct{}, len(rules))
	sorted := make([]Rule, 0, len(rules))

	for _, r := range rules {
		if !strings.HasPrefix(r.PathPrefix, "/") {
			return nil, fmt.Errorf("rule prefix %q must start with /", r.PathPrefix)
		}
		if r.PathPrefix != "/" && strings.HasSuffix(r.PathPrefix, "/") {
			return nil, fmt.Errorf("rule prefix %q must not end with /", r.PathPrefix)
		}
		if _, dup := seen[r.PathPrefix]; dup {
			return nil, fmt.Errorf("duplicate rule prefix %q", r.PathPrefix)
		}
		if r.RequiredRole != RequirePublic && r.RedirectOnDeny == "" {
			return nil, fmt.Errorf("gated rule %q requires a redirect target", r.PathPrefix)
		}
		seen[r.PathPrefix] = struct{}{}
		sorted = append(sorted, r)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].PathPrefix) > len(sorted[j].PathPrefix)
	})

	return &Table{rules: sorted, fallback: fallback}, nil
}

// Match resolves path to exactly one rule. It is total: paths outside every
// prefix return the fallback rule.
func (t *Table) Match(path string) Rule {
	path = normalize(path)
	for _, r := range t.rules {
		if covers(r.PathPrefix, path) {
			return r
		}
	}
	return t.fallback
}

// Evaluate answers whether a session holding role may navigate to path.
// It never errors; denial carries the matched rule's redirect target.
// Paths outside every prefix always redirect to the fallback target, for
// any role: an area nobody declared is an area nobody may enter.
func (t *Table) Evaluate(role Role, path string) Decision {
	path = normalize(path)
	for _, r := range t.rules {
		if covers(r.PathPrefix, path) {
			if r.RequiredRole.Admits(role) {
				return Decision{Allowed: true}
			}
			return Decision{Allowed: false, RedirectTo: r.RedirectOnDeny}
		}
	}
	return Decision{Allowed: false, RedirectTo: t.fallback.RedirectOnDeny}
}

// Rules returns a copy of the indexed rules, longest prefix first.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Fallback returns the rule applied to unmatched paths.
func (t *Table) Fallback() Rule {
	return t.fallback
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

// covers reports whether prefix matches path at a segment boundary.
// The root prefix "/" covers the root path only; everything else falls
// through to the table fallback.
func covers(prefix, path string) bool {
	if prefix == "/" {
		return path == "/"
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
