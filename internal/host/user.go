package host

// DefaultPublicRoleID is the role of anonymous callers.
const DefaultPublicRoleID = 10

// User is the acting user passed to row-store writes for authorization and
// ownership checks. Lower role ids are more privileged.
type User struct {
	ID     string
	Email  string
	RoleID int
}

// PublicUser returns the anonymous user with the given public role.
func PublicUser(roleID int) *User {
	if roleID <= 0 {
		roleID = DefaultPublicRoleID
	}
	return &User{RoleID: roleID}
}

// Scope returns the user as a formula variable.
func (u *User) Scope() map[string]any {
	if u == nil {
		return map[string]any{"id": nil, "role_id": int64(DefaultPublicRoleID), "email": ""}
	}
	var id any
	if u.ID != "" {
		id = u.ID
	}
	return map[string]any{"id": id, "role_id": int64(u.RoleID), "email": u.Email}
}

// CanWrite is the write predicate shared by the mutation handlers: the user's
// role is at least as privileged as the table's minimum write role, or the
// table lets row owners write.
func CanWrite(u *User, t *Table) bool {
	role := DefaultPublicRoleID
	if u != nil {
		role = u.RoleID
	}
	return role <= t.MinRoleWrite || t.HasOwnership()
}
