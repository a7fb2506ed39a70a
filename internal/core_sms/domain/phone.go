package domain

import "strings"

const (
	countryCode     = "88"
	countryCodeZero = "880"
	canonicalLength = 13
)

// NormalizePhone converts a Bangladeshi phone number in any of the common
// local formats to the 13 digit form the gateway expects (8801XXXXXXXXX).
//
// Malformed input is never rejected: it comes back stripped to digits so a
// single bad record cannot fail a bulk send. NormalizePhone is idempotent.
func NormalizePhone(raw string) string {
	digits := digitsOnly(raw)

	switch {
	case strings.HasPrefix(digits, countryCodeZero) && len(digits) >= canonicalLength:
		return digits[:canonicalLength]
	case len(digits) == 11 && digits[0] == '0':
		return countryCode + digits
	case len(digits) == 10 && digits[0] != '0':
		return countryCodeZero + digits
	case strings.HasPrefix(digits, countryCode) && len(digits) > canonicalLength:
		return digits[:canonicalLength]
	default:
		return digits
	}
}

// IsCanonicalPhone reports whether s is already in the 13 digit 880 form.
func IsCanonicalPhone(s string) bool {
	return len(s) == canonicalLength && strings.HasPrefix(s, countryCodeZero) && digitsOnly(s) == s
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
