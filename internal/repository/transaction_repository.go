package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Attaullahwazir/Payzenix/internal/models"
)

// TransactionWriteRepository handles all state-mutating operations for transactions.
// It operates exclusively against the SQL write store (source of truth).
type TransactionWriteRepository struct {
	db *sql.DB
}

func NewTransactionWriteRepository(db *sql.DB) *TransactionWriteRepository {
	return &TransactionWriteRepository{db: db}
}

// Create inserts the transaction in its final state with a single statement.
func (r *TransactionWriteRepository) Create(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, user_id, amount, currency, status, masked_card_number,
			encrypted_card_token, card_fingerprint, fraud_score, ip_address, user_agent,
			created_at, processed_at, external_transaction_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	var processedAt sql.NullTime
	if tx.ProcessedAt != nil {
		processedAt = sql.NullTime{Time: tx.ProcessedAt.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.UserID, tx.Amount, tx.Currency, tx.Status, tx.MaskedCardNumber,
		tx.EncryptedCardToken, tx.CardFingerprint, tx.FraudScore, tx.IPAddress, tx.UserAgent,
		tx.CreatedAt.UTC(), processedAt, nullString(tx.ExternalTransactionID),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// EncryptedTokenByID returns the stored ciphertext for operator integrity checks.
func (r *TransactionWriteRepository) EncryptedTokenByID(ctx context.Context, id string) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx, `SELECT encrypted_card_token FROM transactions WHERE id = $1`, id).Scan(&token)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load card token: %w", err)
	}
	return token, nil
}
