package auth

// Method records how the caller authenticated.
type Method string

const (
	MethodNone       Method = "none"
	MethodServiceKey Method = "service_key"
	MethodBearer     Method = "bearer"
	MethodAPIKey     Method = "api_key"
)

// Identity is the resolved caller for one request. It is built per request
// and never persisted by the gateway.
type Identity struct {
	UserID   string
	PersonID string
	Role     string
	Level    int
	Method   Method
}

// Public returns the anonymous identity.
func Public() Identity {
	return Identity{Role: RolePublic, Level: LevelPublic, Method: MethodNone}
}

// Service returns the trusted identity used by internal callers.
func Service() Identity {
	return Identity{Role: RoleService, Level: LevelService, Method: MethodServiceKey}
}

// Invalid marks a presented credential that failed verification. It is
// distinct from Public: level -1 never satisfies any permission threshold.
func Invalid(method Method) Identity {
	return Identity{Level: LevelInvalid, Method: method}
}

// Authenticated reports whether the identity carries a verified credential.
func (i Identity) Authenticated() bool {
	return i.Level > LevelPublic
}

// StaffOrAbove reports whether row scoping is bypassed for this identity.
func (i Identity) StaffOrAbove() bool {
	return i.Level >= LevelStaff
}
