package wizard

import (
	"strings"
	"unicode"
)

const PhoneDigits = 10

// NormalizePhone strips every non-digit and requires exactly ten digits.
func NormalizePhone(input string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, input)
	if len(digits) != PhoneDigits {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// MaskPhone keeps the last four digits for logs.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

func trimContact(name, email string) (string, string) {
	return strings.TrimFunc(name, unicode.IsSpace), strings.TrimFunc(email, unicode.IsSpace)
}
