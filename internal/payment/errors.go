package payment

import (
	"errors"

	"github.com/Attaullahwazir/Payzenix/internal/validation"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("payment validation failed")
	// ErrRateLimited means the caller exceeded the per-user attempt budget. No record is created.
	ErrRateLimited = errors.New("too many payment attempts")
	// ErrFraudBlocked is the decline reason for transactions stored as FRAUD.
	ErrFraudBlocked = errors.New("payment blocked by risk screening")
	// ErrSettlementFailed is the decline reason for transactions stored as FAILED.
	ErrSettlementFailed = errors.New("payment declined during settlement")
	// ErrProcessing covers every internal failure after validation. Nothing is persisted.
	ErrProcessing = errors.New("payment could not be processed")
)

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields validation.Errors
}

func (e *ValidationError) Error() string {
	return e.Fields.Error()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Unwrap exposes the per-field sentinels, e.g. validation.ErrInvalidCardNumber.
func (e *ValidationError) Unwrap() error {
	return e.Fields
}
