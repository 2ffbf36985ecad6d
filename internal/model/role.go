package model

import "strings"

// Role is a user's permission level. Roles form a strict hierarchy:
// admin ⊇ manager ⊇ user.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// roleRank orders roles once; a higher rank satisfies every lower one.
var roleRank = map[Role]int{
	RoleUser:    1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Satisfies reports whether a holder of r passes a check requiring required.
// Unknown roles satisfy nothing.
func (r Role) Satisfies(required Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	need, ok := roleRank[required]
	if !ok {
		return false
	}
	return have >= need
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}
