package currency

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateScale is the fixed decimal scale for stored and computed rates.
const RateScale = 6

// DateLayout is the wire and storage format for rate dates.
const DateLayout = "2006-01-02"

// ExchangeRate is an append-only rate fact. Repeated syncs may produce
// multiple rows for the same (base, target, date); reads prefer the most
// recent ObservedAt.
type ExchangeRate struct {
	ID             int64           `json:"id" db:"id"`
	BaseCurrency   string          `json:"base_currency" db:"base_currency"`
	TargetCurrency string          `json:"target_currency" db:"target_currency"`
	Rate           decimal.Decimal `json:"rate" db:"rate"`
	Date           time.Time       `json:"date" db:"date"`
	ObservedAt     int64           `json:"observed_at" db:"observed_at"`
}

// SyncStatus is the outcome of a sync attempt.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusFailure SyncStatus = "FAILURE"
)

// SyncSource identifies where the rate table came from.
const SyncSource = "ExchangeRateAPI"

// SyncMetadata is one row per sync attempt, success or failure. It backs
// the cold-path staleness check when the cache freshness flag is absent.
type SyncMetadata struct {
	ID                     uuid.UUID  `json:"id" db:"id"`
	LastSuccessfulSyncTime time.Time  `json:"last_successful_sync_time" db:"last_successful_sync_time"`
	Status                 SyncStatus `json:"sync_status" db:"sync_status"`
	Source                 string     `json:"source" db:"source"`
	Notes                  string     `json:"notes" db:"notes"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
}

// RateResponse is the API response for a resolved rate.
type RateResponse struct {
	BaseCurrency   string          `json:"base_currency"`
	TargetCurrency string          `json:"target_currency"`
	Rate           decimal.Decimal `json:"rate"`
	Date           string          `json:"date"`
}

// RateRequest carries the query parameters for a rate lookup.
type RateRequest struct {
	From string `form:"from" binding:"required" validate:"required,currency_code"`
	To   string `form:"to" binding:"required" validate:"required,currency_code"`
	Date string `form:"date" validate:"rate_date"`
}

// ConvertRequest is the API request for converting an amount.
type ConvertRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	From   string          `json:"from" binding:"required" validate:"required,currency_code"`
	To     string          `json:"to" binding:"required" validate:"required,currency_code"`
	Date   string          `json:"date" validate:"rate_date"`
}

// ConvertResponse is the API response for a conversion.
type ConvertResponse struct {
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	FromCurrency    string          `json:"from_currency"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	ToCurrency      string          `json:"to_currency"`
	Rate            decimal.Decimal `json:"rate"`
	Date            string          `json:"date"`
}

// ToRateResponse converts a stored rate into its API shape.
func ToRateResponse(rate *ExchangeRate) *RateResponse {
	return &RateResponse{
		BaseCurrency:   rate.BaseCurrency,
		TargetCurrency: rate.TargetCurrency,
		Rate:           rate.Rate,
		Date:           rate.Date.Format(DateLayout),
	}
}
