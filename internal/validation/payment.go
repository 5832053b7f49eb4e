package validation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Input is a payment submission exactly as received.
type Input struct {
	CardNumber     string
	CVV            string
	ExpiryDate     string
	Amount         string
	CardholderName string
	Currency       string
}

// Payment is an Input that passed every check, in normalized form.
type Payment struct {
	CardNumber     string
	CVV            string
	ExpiryDate     string
	Amount         decimal.Decimal
	CardholderName string
	Currency       string
}

// Errors lists every failing field of one submission.
type Errors []*FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the field sentinels to errors.Is.
func (e Errors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, fe := range e {
		errs[i] = fe
	}
	return errs
}

// Validate runs all field validators and reports every failure, not just the first.
func Validate(in Input, now time.Time) (Payment, error) {
	var (
		p    Payment
		errs Errors
		err  error
	)

	if p.CardNumber, err = ValidateCardNumber(in.CardNumber); err != nil {
		errs = append(errs, &FieldError{Field: "cardNumber", Err: err})
	}
	if p.CVV, err = ValidateCVV(in.CVV); err != nil {
		errs = append(errs, &FieldError{Field: "cvv", Err: err})
	}
	if p.ExpiryDate, err = ValidateExpiryDate(in.ExpiryDate, now); err != nil {
		errs = append(errs, &FieldError{Field: "expiryDate", Err: err})
	}
	if p.Amount, err = ValidateAmount(in.Amount); err != nil {
		errs = append(errs, &FieldError{Field: "amount", Err: err})
	}
	if p.CardholderName, err = ValidateName(in.CardholderName); err != nil {
		errs = append(errs, &FieldError{Field: "cardholderName", Err: err})
	}
	if p.Currency, err = ValidateCurrency(in.Currency); err != nil {
		errs = append(errs, &FieldError{Field: "currency", Err: err})
	}

	if len(errs) > 0 {
		return Payment{}, errs
	}
	return p, nil
}
