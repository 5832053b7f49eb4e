// Package validation holds the pure input checks applied to a payment request
// before anything is encrypted, scored or stored.
//
// Every function takes the raw field, returns the normalized value and a nil
// error when the field is acceptable, and is safe for concurrent use.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCardNumber = errors.New("invalid card number")
	ErrInvalidCVV        = errors.New("invalid cvv")
	ErrInvalidExpiry     = errors.New("card has expired")
	ErrInvalidFormat     = errors.New("expiry date must be in MM/YY format")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidName       = errors.New("invalid cardholder name")
	ErrInvalidCurrency   = errors.New("invalid currency")
)

const (
	DefaultCurrency = "USD"

	minCardDigits = 13
	maxCardDigits = 19
	minNameLength = 2
	maxNameLength = 100
)

// MaxAmount is the largest amount the transactions table can hold.
var MaxAmount = decimal.RequireFromString("999999999.99")

var (
	cvvPattern      = regexp.MustCompile(`^[0-9]{3,4}$`)
	expiryPattern   = regexp.MustCompile(`^([0-9]{2})/([0-9]{2})$`)
	amountPattern   = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,2})?$`)
	currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

// FieldError ties a sentinel error to the request field that produced it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ValidateCardNumber strips separators and checks length and the Luhn checksum.
func ValidateCardNumber(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, raw)

	if len(digits) < minCardDigits || len(digits) > maxCardDigits {
		return "", ErrInvalidCardNumber
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", ErrInvalidCardNumber
		}
	}
	if !Luhn(digits) {
		return "", ErrInvalidCardNumber
	}
	return digits, nil
}

// Luhn reports whether an all-digit string passes the mod-10 checksum.
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func ValidateCVV(raw string) (string, error) {
	cvv := strings.TrimSpace(raw)
	if !cvvPattern.MatchString(cvv) {
		return "", ErrInvalidCVV
	}
	return cvv, nil
}

// ValidateExpiryDate checks a strict MM/YY value. The card stays valid until the
// last day of the encoded month. The normalized value is returned unchanged.
func ValidateExpiryDate(raw string, now time.Time) (string, error) {
	m := expiryPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", ErrInvalidFormat
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return "", ErrInvalidFormat
	}

	now = now.UTC()
	firstOfNextMonth := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !today.Before(firstOfNextMonth) {
		return "", ErrInvalidExpiry
	}
	return raw, nil
}

// ValidateAmount parses a positive amount with at most two fraction digits.
func ValidateAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if !amountPattern.MatchString(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.IsPositive() || amount.GreaterThan(MaxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

func ValidateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		return "", ErrInvalidName
	}
	for _, r := range name {
		if unicode.IsLetter(r) {
			return name, nil
		}
	}
	return "", ErrInvalidName
}

// ValidateCurrency upper-cases a three letter code. Empty means DefaultCurrency.
func ValidateCurrency(raw string) (string, error) {
	c := strings.TrimSpace(raw)
	if c == "" {
		return DefaultCurrency, nil
	}
	if !currencyPattern.MatchString(c) {
		return "", ErrInvalidCurrency
	}
	return strings.ToUpper(c), nil
}
