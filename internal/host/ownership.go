package host

import "fmt"

// Scope returns the formula variables for a row: every field bound by name,
// the row itself as "row" and the acting user as "user".
func (r Row) Scope(u *User) map[string]any {
	scope := make(map[string]any, len(r)+2)
	for k, v := range r {
		scope[k] = v
	}
	scope["row"] = map[string]any(r.Clone())
	scope["user"] = u.Scope()
	return scope
}

// CheckOwnership allows a write to an existing row when the user is
// privileged for the table or owns the row.
func CheckOwnership(eval Evaluator, t *Table, row Row, u *User) error {
	if u != nil && u.RoleID <= t.MinRoleWrite {
		return nil
	}
	if u == nil || u.ID == "" {
		return ErrNotOwner
	}
	if t.OwnershipField != "" && KeyString(row[t.OwnershipField]) == u.ID {
		return nil
	}
	if t.OwnershipFormula != "" && eval != nil {
		ok, err := eval.Truthy(t.OwnershipFormula, row.Scope(u))
		if err != nil {
			return fmt.Errorf("ownership formula: %w", err)
		}
		if ok {
			return nil
		}
	}
	return ErrNotOwner
}

// StampOwner sets the ownership field of a new row to the acting user when
// the caller did not set it.
func StampOwner(t *Table, values Row, u *User) {
	if t.OwnershipField == "" || u == nil || u.ID == "" {
		return
	}
	if v, ok := values[t.OwnershipField]; ok && !IsNull(v) {
		return
	}
	values[t.OwnershipField] = u.ID
}

// CheckInsert allows an insert when the user may write the table at all.
func CheckInsert(t *Table, u *User) error {
	if CanWrite(u, t) {
		return nil
	}
	return ErrNotOwner
}
