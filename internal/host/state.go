package host

import (
	"fmt"
	"sort"
)

// Where is a conjunction of equality filters, field name to value.
type Where map[string]any

// Keys returns the filter field names in a stable order.
func (w Where) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches reports whether row satisfies every filter.
func (w Where) Matches(row Row) bool {
	for k, v := range w {
		rv, ok := row[k]
		if v == nil {
			if ok && !IsNull(rv) {
				return false
			}
			continue
		}
		if !ok || KeyString(rv) != KeyString(v) {
			return false
		}
	}
	return true
}

// ReadState coerces raw query-string state to the types of the table's
// fields. Keys that are not fields of the table are passed through untouched
// so view-level flags (such as expansion toggles) survive.
func ReadState(state map[string]string, t *Table) (map[string]any, error) {
	out := make(map[string]any, len(state))
	for k, raw := range state {
		f, err := t.Field(k)
		if err != nil {
			out[k] = raw
			continue
		}
		v, err := f.Coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("reading state: %w", err)
		}
		out[k] = v
	}
	return out, nil
}

// StateToWhere turns coerced state into equality filters. Every non-key
// field of the table is an optional state field; other keys are ignored, as
// are empty values.
func StateToWhere(t *Table, state map[string]any) Where {
	where := Where{}
	pk := t.PKName()
	for _, f := range t.Fields {
		if f.Name == pk {
			continue
		}
		v, ok := state[f.Name]
		if !ok || IsNull(v) {
			continue
		}
		where[f.Name] = v
	}
	return where
}
