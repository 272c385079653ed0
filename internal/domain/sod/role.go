// Package sod implements segregation-of-duties rules: maker/checker
// separation and amount-tiered approval authority.
package sod

import "strings"

// Role is an approval role. Roles are ranked; a higher rank satisfies any
// requirement for a lower one.
type Role string

const (
	RoleStaff    Role = "STAFF"
	RoleManager  Role = "MANAGER"
	RoleDirector Role = "DIRECTOR"
	RoleVP       Role = "VP"
	RoleCFO      Role = "CFO"
)

var roleRanks = map[Role]int{
	RoleStaff:    1,
	RoleManager:  2,
	RoleDirector: 3,
	RoleVP:       4,
	RoleCFO:      5,
}

// orderedRoles lists roles from lowest to highest rank.
var orderedRoles = []Role{RoleStaff, RoleManager, RoleDirector, RoleVP, RoleCFO}

// ParseRole normalizes a role name.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := roleRanks[r]
	return r, ok
}

// Rank returns the seniority of the role, 0 for unknown roles.
func (r Role) Rank() int {
	return roleRanks[r]
}

// Satisfies reports whether r meets a requirement for min.
func (r Role) Satisfies(min Role) bool {
	return r.Rank() > 0 && r.Rank() >= min.Rank()
}

// AtLeast returns min and every more senior role.
func AtLeast(min Role) []Role {
	out := make([]Role, 0, len(orderedRoles))
	for _, r := range orderedRoles {
		if r.Rank() >= min.Rank() {
			out = append(out, r)
		}
	}
	return out
}

// Highest returns the most senior role in roles.
func Highest(roles []Role) Role {
	var best Role
	for _, r := range roles {
		if r.Rank() > best.Rank() {
			best = r
		}
	}
	return best
}
