package currency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles database operations for exchange rates
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new exchange rate repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateExchangeRate appends a single rate record
func (r *Repository) CreateExchangeRate(ctx context.Context, rate *ExchangeRate) error {
	query := `
		INSERT INTO exchange_rates (base_currency, target_currency, rate, date, observed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		rate.BaseCurrency, rate.TargetCurrency, rate.Rate, rate.Date, rate.ObservedAt,
	).Scan(&rate.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	return nil
}

// BulkCreateExchangeRates appends a batch of rate records in one transaction
func (r *Repository) BulkCreateExchangeRates(ctx context.Context, rates []*ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	defer tx.Rollback(ctx)

	for _, rate := range rates {
		_, err := tx.Exec(ctx, `
			INSERT INTO exchange_rates (base_currency, target_currency, rate, date, observed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, rate.BaseCurrency, rate.TargetCurrency, rate.Rate, rate.Date, rate.ObservedAt)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	return nil
}

// GetExchangeRate retrieves the most recently observed rate for an exact
// (base, target, date) triple
func (r *Repository) GetExchangeRate(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error) {
	query := `
		SELECT id, base_currency, target_currency, rate, date, observed_at
		FROM exchange_rates
		WHERE base_currency = $1 AND target_currency = $2 AND date = $3
		ORDER BY observed_at DESC
		LIMIT 1
	`

	rate := &ExchangeRate{}
	err := r.db.QueryRow(ctx, query, base, target, date).Scan(
		&rate.ID, &rate.BaseCurrency, &rate.TargetCurrency, &rate.Rate, &rate.Date, &rate.ObservedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rate: %w", err)
	}

	return rate, nil
}

// GetLatestExchangeRateBefore retrieves the most recent rate on or before
// the given date, tie-broken by latest observation
func (r *Repository) GetLatestExchangeRateBefore(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error) {
	query := `
		SELECT id, base_currency, target_currency, rate, date, observed_at
		FROM exchange_rates
		WHERE base_currency = $1 AND target_currency = $2 AND date <= $3
		ORDER BY date DESC, observed_at DESC
		LIMIT 1
	`

	rate := &ExchangeRate{}
	err := r.db.QueryRow(ctx, query, base, target, date).Scan(
		&rate.ID, &rate.BaseCurrency, &rate.TargetCurrency, &rate.Rate, &rate.Date, &rate.ObservedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rate: %w", err)
	}

	return rate, nil
}

// CreateSyncMetadata appends one sync attempt row
func (r *Repository) CreateSyncMetadata(ctx context.Context, meta *SyncMetadata) error {
	query := `
		INSERT INTO exchange_rate_metadata (id, last_successful_sync_time, sync_status, source, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		meta.ID, meta.LastSuccessfulSyncTime, meta.Status, meta.Source, meta.Notes,
	).Scan(&meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	return nil
}

// GetLatestSuccessfulSync retrieves the most recent SUCCESS metadata row,
// or ErrRateNotFound if no sync has ever succeeded
func (r *Repository) GetLatestSuccessfulSync(ctx context.Context) (*SyncMetadata, error) {
	query := `
		SELECT id, last_successful_sync_time, sync_status, source, notes, created_at
		FROM exchange_rate_metadata
		WHERE sync_status = $1
		ORDER BY last_successful_sync_time DESC
		LIMIT 1
	`

	meta := &SyncMetadata{}
	err := r.db.QueryRow(ctx, query, SyncStatusSuccess).Scan(
		&meta.ID, &meta.LastSuccessfulSyncTime, &meta.Status, &meta.Source, &meta.Notes, &meta.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync metadata: %w", err)
	}

	return meta, nil
}
