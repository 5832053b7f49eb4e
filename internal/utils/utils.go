package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const TransactionIDPrefix = "txn_"

// GenerateTransactionID returns a time-ordered transaction ID. UUIDv7 values
// from one process are monotonic, so lexical order matches creation order.
func GenerateTransactionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate transaction id: %w", err)
	}
	return TransactionIDPrefix + id.String(), nil
}

// GenerateReference generates a random upper-case reference with the given prefix.
func GenerateReference(prefix string, length int) string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	result := make([]byte, length)
	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[num.Int64()]
	}

	return fmt.Sprintf("%s_%s", prefix, string(result))
}

// ValidateTransactionID validates the transaction ID format
func ValidateTransactionID(transactionID string) bool {
	rest, ok := strings.CutPrefix(transactionID, TransactionIDPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
