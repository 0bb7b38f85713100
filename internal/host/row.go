package host

import (
	"fmt"
	"strconv"
	"strings"
)

// Row is one table record keyed by field name.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	cp := make(Row, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// IsNull reports whether a field value counts as an absent reference.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

// KeyString returns the canonical string form of a key value, so that
// int64(5), float64(5) and "5" compare equal.
func KeyString(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case int:
		return strconv.Itoa(k)
	case int64:
		return strconv.FormatInt(k, 10)
	case int32:
		return strconv.FormatInt(int64(k), 10)
	case float64:
		if k == float64(int64(k)) {
			return strconv.FormatInt(int64(k), 10)
		}
		return strconv.FormatFloat(k, 'f', -1, 64)
	case []byte:
		return string(k)
	default:
		return fmt.Sprint(k)
	}
}

// SameKey compares two key values by canonical form.
func SameKey(a, b any) bool {
	if IsNull(a) || IsNull(b) {
		return false
	}
	return KeyString(a) == KeyString(b)
}

// Display renders a field value as text for labels and badges.
func Display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, Display(e))
		}
		return strings.Join(parts, ", ")
	default:
		return KeyString(v)
	}
}
