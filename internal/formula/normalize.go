package formula

import (
	"strings"
	"unicode"
)

// Normalize rewrites object-literal syntax CEL does not accept. Unquoted
// map keys ({x: parent.x}) are quoted and strict equality operators are
// reduced to their CEL forms. String literals are left untouched.
func Normalize(expr string) string {
	var b strings.Builder
	b.Grow(len(expr) + 8)

	var stack []byte
	expectKey := false
	runes := []rune(expr)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '"' || r == '\'' {
			end := skipString(runes, i)
			b.WriteString(string(runes[i:end]))
			i = end - 1
			expectKey = false
			continue
		}

		if expectKey {
			if unicode.IsSpace(r) {
				b.WriteRune(r)
				continue
			}
			if isIdentStart(r) {
				j := i
				for j < len(runes) && isIdentPart(runes[j]) {
					j++
				}
				k := j
				for k < len(runes) && unicode.IsSpace(runes[k]) {
					k++
				}
				if k < len(runes) && runes[k] == ':' {
					b.WriteByte('"')
					b.WriteString(string(runes[i:j]))
					b.WriteByte('"')
					i = j - 1
					expectKey = false
					continue
				}
			}
			expectKey = false
		}

		switch r {
		case '{':
			stack = append(stack, '{')
			expectKey = true
		case '[', '(':
			stack = append(stack, byte(r))
		case '}', ']', ')':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ',':
			expectKey = len(stack) > 0 && stack[len(stack)-1] == '{'
		case '=', '!':
			if i+2 < len(runes) && runes[i+1] == '=' && runes[i+2] == '=' {
				b.WriteRune(r)
				b.WriteString("=")
				i += 2
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// skipString returns the index just past the string literal starting at i.
func skipString(runes []rune, i int) int {
	quote := runes[i]
	for j := i + 1; j < len(runes); j++ {
		switch runes[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return len(runes)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
