package auth

import "strings"

// Role levels form a total order: a caller's level must dominate the
// required minimum for every threshold check. LevelInvalid marks a
// presented-but-rejected credential and never satisfies any minimum.
const (
	LevelInvalid  = -1
	LevelPublic   = 0
	LevelResident = 1
	LevelStaff    = 2
	LevelAdmin    = 3
	LevelService  = 4
)

const (
	RolePublic    = "public"
	RoleResident  = "resident"
	RoleAssociate = "associate"
	RoleStaff     = "staff"
	RoleAdmin     = "admin"
	RoleService   = "service"
)

var roleLevels = map[string]int{
	RolePublic:    LevelPublic,
	RoleResident:  LevelResident,
	RoleAssociate: LevelResident,
	RoleStaff:     LevelStaff,
	RoleAdmin:     LevelAdmin,
	RoleService:   LevelService,
}

// LevelForRole maps a role name to its level. Unknown roles resolve to
// LevelInvalid rather than public.
func LevelForRole(role string) int {
	role = strings.TrimSpace(strings.ToLower(role))
	if lvl, ok := roleLevels[role]; ok {
		return lvl
	}
	return LevelInvalid
}

// KnownRole reports whether the role name participates in the hierarchy.
func KnownRole(role string) bool {
	_, ok := roleLevels[strings.TrimSpace(strings.ToLower(role))]
	return ok
}
