package forms

import (
	"regexp"
	"testing"
)

func TestDigits(t *testing.T) {
	mask := Digits(10)

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"98765 43210", "9876543210"},
		{"+91-98765-43210", "9198765432"},
		{"abc", ""},
		{"１２３", ""}, // full-width digits are not ASCII
	}

	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Errorf("Digits(10)(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUpperAlnum(t *testing.T) {
	mask := UpperAlnum(10)

	tests := []struct {
		in   string
		want string
	}{
		{"abcde1234f", "ABCDE1234F"},
		{"ab-cd e1234f99", "ABCDE1234F"},
		{"émile", "MILE"},
	}

	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Errorf("UpperAlnum(10)(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMasks_Bounded(t *testing.T) {
	upper := regexp.MustCompile(`^[A-Z0-9]*$`)
	digits := regexp.MustCompile(`^[0-9]*$`)

	inputs := []string{
		"",
		"0000000000000000000000",
		"a1b2c3d4e5f6g7h8i9j0k",
		"!@#$%^&*()_+",
		"日本語 text 123 ＡＢＣ",
		"\x00\xff\xfe broken utf8",
	}

	for _, in := range inputs {
		if got := Digits(6)(in); len(got) > 6 || !digits.MatchString(got) {
			t.Errorf("Digits(6)(%q) = %q violates mask", in, got)
		}
		if got := UpperAlnum(11)(in); len(got) > 11 || !upper.MatchString(got) {
			t.Errorf("UpperAlnum(11)(%q) = %q violates mask", in, got)
		}
	}
}
