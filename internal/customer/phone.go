package customer

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned when a number cannot be canonicalized
var ErrInvalidPhone = errors.New("customer: invalid phone number")

const (
	// DefaultCountryCode is used when the caller does not dial an international prefix
	DefaultCountryCode = "357"

	nationalLength = 8
	maxE164Digits  = 15
)

// CanonicalPhone converts a dialed number into +<country code><national number>.
//
//	"99123456"       -> "+35799123456"
//	"+357-99-123456" -> "+35799123456"
//	"0035799123456"  -> "+35799123456"
//	"35799123456"    -> "+35799123456"
//
// Numbers dialed with an explicit '+' or "00" prefix and a foreign country code
// are kept as-is once stripped of formatting.
func CanonicalPhone(raw, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	trimmed := strings.TrimSpace(raw)
	international := strings.HasPrefix(trimmed, "+")

	var b strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if !international && strings.HasPrefix(digits, "00") {
		digits = digits[2:]
		international = true
	}

	switch {
	case digits == "":
		return "", ErrInvalidPhone
	case len(digits) == nationalLength && !international:
		return "+" + countryCode + digits, nil
	case len(digits) == len(countryCode)+nationalLength && strings.HasPrefix(digits, countryCode):
		return "+" + digits, nil
	case international && len(digits) > nationalLength && len(digits) <= maxE164Digits:
		return "+" + digits, nil
	default:
		return "", ErrInvalidPhone
	}
}
