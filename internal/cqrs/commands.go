package cqrs

// ProcessPaymentCommand carries one payment submission. Card fields are raw
// and must never be logged.
type ProcessPaymentCommand struct {
	UserID         string
	CardNumber     string
	CVV            string
	ExpiryDate     string
	Amount         string
	CardholderName string
	Currency       string
	IPAddress      string
	UserAgent      string
}
