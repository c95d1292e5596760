package currency

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for the resolution and sync engine. Handlers map these to
// HTTP status codes; internal kinds never cross the API boundary.
var (
	ErrInvalidCurrency     = errors.New("invalid currency code")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrRateNotFound        = errors.New("exchange rate not found")
	ErrStaleData           = errors.New("exchange rate data is stale")
	ErrUpstreamUnavailable = errors.New("exchange rate provider unavailable")
	ErrMissingRateData     = errors.New("rate table is missing a currency")
	ErrLockUnavailable     = errors.New("distributed lock unavailable")
	ErrPersistenceFailure  = errors.New("failed to persist exchange rates")
)

// deprecatedCodes maps withdrawn ISO 4217 codes to their successors.
var deprecatedCodes = map[string]string{
	"DEM": "EUR",
	"FRF": "EUR",
	"ITL": "EUR",
	"ESP": "EUR",
	"NLG": "EUR",
	"ATS": "EUR",
	"BEF": "EUR",
	"PTE": "EUR",
	"FIM": "EUR",
	"IEP": "EUR",
	"GRD": "EUR",
	"TRL": "TRY",
	"RUR": "RUB",
	"ZWD": "ZWL",
	"YUM": "RSD",
	"TMM": "TMT",
}

// NormalizeCurrency uppercases a currency code, substitutes deprecated ISO
// codes with their successors, and rejects anything that is not three
// uppercase letters.
func NormalizeCurrency(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if replacement, ok := deprecatedCodes[normalized]; ok {
		normalized = replacement
	}
	if len(normalized) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range normalized {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return normalized, nil
}

// ParseRateDate parses an optional YYYY-MM-DD date, defaulting to today
// (UTC) and rejecting future dates.
func ParseRateDate(value string, now time.Time) (time.Time, error) {
	today := truncateToDay(now.UTC())
	if value == "" {
		return today, nil
	}
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	if d.After(today) {
		return time.Time{}, fmt.Errorf("%w: %s is in the future", ErrInvalidDate, value)
	}
	return d, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
