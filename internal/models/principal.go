package models

import "github.com/golang-jwt/jwt/v5"

// Role represents the roles a principal may carry.
type Role string

const (
	RoleStudent        Role = "STUDENT"
	RoleInstructor     Role = "INSTRUCTOR"
	RoleStaff          Role = "STAFF"
	RoleDepartmentHead Role = "DEPARTMENT_HEAD"
	RoleAdmin          Role = "ADMIN"
)

// Principal is the request-scoped identity handed to every core operation.
type Principal struct {
	ID    string `json:"id"`
	Roles []Role `json:"roles"`
}

// HasRole reports whether the principal carries role.
func (p *Principal) HasRole(role Role) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the principal carries at least one of roles.
func (p *Principal) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

// IsStaff covers registrar staff and administrators.
func (p *Principal) IsStaff() bool {
	return p.HasAnyRole(RoleStaff, RoleAdmin)
}

// AccessClaims is the JWT payload issued by the identity provider.
type AccessClaims struct {
	UserID string `json:"user_id"`
	Roles  []Role `json:"roles"`
	jwt.RegisteredClaims
}

// Principal converts verified claims to a Principal.
func (c *AccessClaims) Principal() *Principal {
	if c == nil {
		return nil
	}
	roles := make([]Role, len(c.Roles))
	copy(roles, c.Roles)
	return &Principal{ID: c.UserID, Roles: roles}
}
