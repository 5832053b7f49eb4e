package cipher

import "strings"

const (
	maskChar    = '*'
	visibleTail = 4
)

// MaskCardNumber keeps the last four digits and masks everything before them.
func MaskCardNumber(cardNumber string) string {
	digits := digitsOnly(cardNumber)
	if len(digits) <= visibleTail {
		return digits
	}
	return strings.Repeat(string(maskChar), len(digits)-visibleTail) + digits[len(digits)-visibleTail:]
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
