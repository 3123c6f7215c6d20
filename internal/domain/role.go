package domain

import "fmt"

// Role is the caller's platform role carried in the access token.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// ParseRole validates a role claim.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleStaff, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// RoleSet is the exact set of roles a route accepts. An empty set accepts any
// authenticated caller.
type RoleSet map[Role]struct{}

// Roles builds a RoleSet.
func Roles(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has reports exact membership.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}
