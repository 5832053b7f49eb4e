package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Attaullahwazir/Payzenix/internal/models"
	pzredis "github.com/Attaullahwazir/Payzenix/internal/redis"
	goredis "github.com/redis/go-redis/v9"
)

const transactionViewKeyPrefix = "transaction:view:"

const viewColumns = `id, user_id, amount, currency, status, masked_card_number, created_at, processed_at`

// Page selects one slice of a newest-first listing. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

func (p Page) offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// transactionCacheEntry carries the owner alongside the view, which hides
// UserID from JSON, so cache hits can still be ownership checked.
type transactionCacheEntry struct {
	UserID string                  `json:"userId"`
	View   *models.TransactionView `json:"view"`
}

// TransactionViewCache is the Redis cache in front of GetByID.
type TransactionViewCache = pzredis.ViewCache[transactionCacheEntry]

// TransactionReadRepository handles all read operations for transactions.
// Single-transaction lookups go to Redis first when a cache is configured,
// falling back to SQL on a miss. Listings and aggregates always hit SQL.
type TransactionReadRepository struct {
	db    *sql.DB
	cache *TransactionViewCache
}

// NewTransactionReadRepository builds the read side. cache may be nil.
func NewTransactionReadRepository(db *sql.DB, cache *TransactionViewCache) *TransactionReadRepository {
	return &TransactionReadRepository{db: db, cache: cache}
}

// NewTransactionViewCache binds a ViewCache to the repository's cache entry type.
func NewTransactionViewCache(client *goredis.Client, ttl time.Duration, logger *slog.Logger) *TransactionViewCache {
	return pzredis.NewViewCache[transactionCacheEntry](client, ttl, logger)
}

// GetByID returns a TransactionView by attempting Redis first, then SQL.
func (r *TransactionReadRepository) GetByID(ctx context.Context, id string) (*models.TransactionView, error) {
	if r.cache != nil {
		if entry, ok := r.cache.Get(ctx, transactionViewKeyPrefix+id); ok && entry.View != nil {
			entry.View.UserID = entry.UserID
			return entry.View, nil
		}
	}

	query := `SELECT ` + viewColumns + ` FROM transactions WHERE id = $1`
	view, err := scanView(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	r.CacheTransactionView(ctx, view)
	return view, nil
}

// ListByUser returns one page of a user's transactions, newest first, together
// with the user's total transaction count.
func (r *TransactionReadRepository) ListByUser(ctx context.Context, userID string, page Page) ([]models.TransactionView, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := `
		SELECT ` + viewColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	views, err := r.queryViews(ctx, query, userID, page.Size, page.offset())
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// RecentByUser returns every attempt the user made at or after since, newest first.
func (r *TransactionReadRepository) RecentByUser(ctx context.Context, userID string, since time.Time) ([]models.TransactionView, error) {
	query := `
		SELECT ` + viewColumns + `
		FROM transactions
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id DESC
	`
	return r.queryViews(ctx, query, userID, since.UTC())
}

// AmountProfile summarises the user's historical amounts. Transactions flagged
// as fraud are excluded so they do not skew what counts as normal spend.
func (r *TransactionReadRepository) AmountProfile(ctx context.Context, userID string) (models.AmountProfile, error) {
	query := `
		SELECT COUNT(*), COALESCE(AVG(amount), 0), COALESCE(AVG(amount * amount), 0)
		FROM transactions
		WHERE user_id = $1 AND status <> 'FRAUD'
	`
	var (
		profile  models.AmountProfile
		mean     float64
		meanOfSq float64
	)
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&profile.Count, &mean, &meanOfSq); err != nil {
		return models.AmountProfile{}, fmt.Errorf("failed to load amount profile: %w", err)
	}
	profile.Mean = mean
	profile.StdDev = math.Sqrt(math.Max(0, meanOfSq-mean*mean))
	return profile, nil
}

// HasUsedCard reports whether the user has paid with this card fingerprint before.
func (r *TransactionReadRepository) HasUsedCard(ctx context.Context, userID, fingerprint string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE user_id = $1 AND card_fingerprint = $2)`, userID, fingerprint)
}

// HasUsedIP reports whether the user has paid from this address before.
func (r *TransactionReadRepository) HasUsedIP(ctx context.Context, userID, ip string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE user_id = $1 AND ip_address = $2)`, userID, ip)
}

// StatsByUser aggregates a user's transactions. TotalAmount only counts
// successful payments.
func (r *TransactionReadRepository) StatsByUser(ctx context.Context, userID string) (*models.UserStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'SUCCESS' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'SUCCESS' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'FAILED' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'FRAUD' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'PENDING' THEN 1 ELSE 0 END), 0)
		FROM transactions
		WHERE user_id = $1
	`
	var stats models.UserStats
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.TotalTransactions, &stats.TotalAmount,
		&stats.SuccessfulCount, &stats.FailedCount, &stats.FraudCount, &stats.PendingCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction stats: %w", err)
	}
	stats.TotalAmount = stats.TotalAmount.Round(2)
	return &stats, nil
}

// CacheTransactionView stores the read model for a transaction in Redis.
// Called by the command service immediately after a successful Create.
func (r *TransactionReadRepository) CacheTransactionView(ctx context.Context, view *models.TransactionView) {
	if r.cache == nil {
		return
	}
	r.cache.Set(ctx, transactionViewKeyPrefix+view.ID, &transactionCacheEntry{UserID: view.UserID, View: view})
}

func (r *TransactionReadRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to query history: %w", err)
	}
	return found, nil
}

func (r *TransactionReadRepository) queryViews(ctx context.Context, query string, args ...any) ([]models.TransactionView, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	views := []models.TransactionView{}
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		views = append(views, *view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return views, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanView(row rowScanner) (*models.TransactionView, error) {
	var (
		view        models.TransactionView
		processedAt sql.NullTime
	)
	if err := row.Scan(
		&view.ID, &view.UserID, &view.Amount, &view.Currency, &view.Status,
		&view.MaskedCardNumber, &view.CreatedAt, &processedAt,
	); err != nil {
		return nil, err
	}
	view.Amount = view.Amount.Round(2)
	view.CreatedAt = view.CreatedAt.UTC()
	if processedAt.Valid {
		t := processedAt.Time.UTC()
		view.ProcessedAt = &t
	}
	return &view, nil
}
