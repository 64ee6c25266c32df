package domain

import "fmt"

// Role identifies the kind of actor invoking an operation.
//
// Usage: construct via ParseRole at trust boundaries to enforce the allowlist;
// direct casting bypasses validation.
type Role string

const (
	RolePensioner Role = "PENSIONER"
	RoleNotary    Role = "NOTARY"
	RoleAdmin     Role = "ADMIN"
)

var validRoles = map[Role]bool{
	RolePensioner: true,
	RoleNotary:    true,
	RoleAdmin:     true,
}

// ParseRole constructs a Role from external input (JWT claims, requests).
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// IsValid checks the role against the allowlist.
func (r Role) IsValid() bool { return validRoles[r] }

func (r Role) String() string { return string(r) }
