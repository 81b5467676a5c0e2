package forms

import (
	"strings"
	"unicode/utf8"
)

// Mask rewrites raw keyboard input into its stored form.
type Mask func(raw string) string

// Digits keeps ASCII digits only and truncates to max characters.
func Digits(max int) Mask {
	return func(raw string) string {
		return filter(raw, max, isDigit)
	}
}

// UpperAlnum upper-cases the input, keeps only A-Z and 0-9,
// and truncates to max characters.
func UpperAlnum(max int) Mask {
	return func(raw string) string {
		return filter(strings.ToUpper(raw), max, func(r rune) bool {
			return isDigit(r) || (r >= 'A' && r <= 'Z')
		})
	}
}

func filter(raw string, max int, keep func(rune) bool) string {
	var sb strings.Builder
	sb.Grow(min(len(raw), max))

	n := 0
	for len(raw) > 0 && n < max {
		r, size := utf8.DecodeRuneInString(raw)
		raw = raw[size:]
		if keep(r) {
			sb.WriteRune(r)
			n++
		}
	}
	return sb.String()
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
