package service

import "strings"

const subscriberDigits = 9

// NormalizePhone strips everything but ASCII digits ("+380 (50) 123-45-67" -> "380501234567").
func NormalizePhone(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidPhone expects country code followed by exactly nine subscriber digits.
func ValidPhone(digits, countryCode string) bool {
	return len(digits) == len(countryCode)+subscriberDigits && strings.HasPrefix(digits, countryCode)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
