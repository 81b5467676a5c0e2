package forms

import "strings"

// SpaceClass lists the characters browsers treat as whitespace, both for
// the regexp \s class and for String.prototype.trim, as the body of an RE2
// character class. Go's \s and strings.TrimSpace cover a different set.
const SpaceClass = `\t\n\v\f\r \x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}`

// IsSpace reports whether r is in SpaceClass.
func IsSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00a0', '\u1680', '\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}

// TrimSpace trims SpaceClass characters from both ends of s.
func TrimSpace(s string) string {
	return strings.TrimFunc(s, IsSpace)
}
