package access

import "scrumboard/internal/roles"

// Session is the identity an access decision is made for. It is passed
// explicitly into every evaluation; a nil *Session means nobody is signed in.
type Session struct {
	UserID     string           `json:"user_id"`
	GlobalRole roles.GlobalRole `json:"global_role"`
}

// Can reports whether the session's global role grants permission.
func (s *Session) Can(permission roles.Permission) bool {
	if s == nil {
		return false
	}
	return roles.HasGlobalPermission(s.GlobalRole, permission)
}

// IsAtLeast reports whether the session's global role is at or above minRole.
func (s *Session) IsAtLeast(minRole roles.GlobalRole) bool {
	if s == nil {
		return false
	}
	return roles.IsAtLeast(s.GlobalRole, minRole)
}
