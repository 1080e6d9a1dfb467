package gateway

// Role is the privilege tier of a caller.
type Role int

const (
	RoleStandard Role = iota
	RolePrivileged
)

func (r Role) String() string {
	if r == RolePrivileged {
		return "privileged"
	}
	return "standard"
}

// Label is the advisory annotation appended to the system prompt.
func (r Role) Label() string {
	if r == RolePrivileged {
		return "MASTER"
	}
	return "GUEST"
}

// ResolveRole returns RolePrivileged iff callerID exactly matches a
// configured privilegedID. An empty privilegedID promotes nobody.
func ResolveRole(callerID, privilegedID string) Role {
	if privilegedID != "" && callerID == privilegedID {
		return RolePrivileged
	}
	return RoleStandard
}
