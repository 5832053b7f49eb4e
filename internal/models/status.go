package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// TransactionStatus is the closed set of states a transaction can be in.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "PENDING"
	StatusSuccess TransactionStatus = "SUCCESS"
	StatusFailed  TransactionStatus = "FAILED"
	StatusFraud   TransactionStatus = "FRAUD"
)

// ParseTransactionStatus rejects anything outside the enumeration.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(s); st {
	case StatusPending, StatusSuccess, StatusFailed, StatusFraud:
		return st, nil
	}
	return "", fmt.Errorf("unknown transaction status %q", s)
}

// IsTerminal reports whether no further transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusFraud
}

// Settled reports whether processed_at is expected to be set.
func (s TransactionStatus) Settled() bool {
	return s == StatusSuccess || s == StatusFailed
}

func (s TransactionStatus) String() string {
	return string(s)
}

// Value implements driver.Valuer.
func (s TransactionStatus) Value() (driver.Value, error) {
	if _, err := ParseTransactionStatus(string(s)); err != nil {
		return nil, err
	}
	return string(s), nil
}

// Scan implements sql.Scanner and refuses unknown values coming out of storage.
func (s *TransactionStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into TransactionStatus", src)
	}
	st, err := ParseTransactionStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s *TransactionStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st, err := ParseTransactionStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
