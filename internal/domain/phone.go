package domain

import "strings"

// NormalizePhone canonicalizes a phone number to +91XXXXXXXXXX form for
// comparison and storage. It strips spaces, dashes and parentheses, and
// fills in the Indian country code for bare 10-digit numbers. Numbers that
// cannot be brought into canonical form are returned stripped, so callers
// can still log them.
func NormalizePhone(phone string) string {
	if phone == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	switch {
	case len(digits) == 10:
		// Bare national number.
		return "+91" + digits
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return "+" + digits
	case len(digits) == 13 && strings.HasPrefix(digits, "910"):
		// Extra trunk zero after the country code, a common entry mistake.
		return "+91" + digits[3:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		// Trunk prefix form 0XXXXXXXXXX.
		return "+91" + digits[1:]
	}

	// Not an Indian number we recognize; keep the digits as-is.
	return "+" + digits
}

// SamePhone reports whether two phone numbers refer to the same line after
// normalization. Empty numbers never match anything.
func SamePhone(a, b string) bool {
	na, nb := NormalizePhone(a), NormalizePhone(b)
	return na != "" && na == nb
}
