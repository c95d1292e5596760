package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/zeref/currency-converter/pkg/redis"
)

const (
	rateKeyPrefix = "exchange-rate"
	freshKey      = "exchange-rate:fresh"

	rateTTL  = time.Hour
	freshTTL = 24 * time.Hour
)

// Cache stores resolved rate answers and the fleet-wide freshness flag in
// Redis. Answers are an accelerator over the store, never authoritative.
type Cache struct {
	client goredis.ClientInterface
}

// NewCache creates a rate cache on the given Redis client
func NewCache(client goredis.ClientInterface) *Cache {
	return &Cache{client: client}
}

// rateKey builds the date-granular cache key for a pair
func rateKey(base, target string, date time.Time) string {
	return fmt.Sprintf("%s:%s-%s-%s", rateKeyPrefix, base, target, date.Format(DateLayout))
}

// GetRate returns the cached answer for a pair and date, or ErrRateNotFound
// on a miss
func (c *Cache) GetRate(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error) {
	raw, err := c.client.GetString(ctx, rateKey(base, target, date))
	if goredis.IsNotFound(err) {
		return nil, ErrRateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rate from cache: %w", err)
	}

	rate := &ExchangeRate{}
	if err := json.Unmarshal([]byte(raw), rate); err != nil {
		return nil, fmt.Errorf("failed to decode cached rate: %w", err)
	}

	return rate, nil
}

// SetRate writes an answer with a one hour TTL. The key is built from the
// lookup date, which for a latest-before answer is later than the record's
// own date; keying by the record would leave the asked-for date a permanent
// miss.
func (c *Cache) SetRate(ctx context.Context, rate *ExchangeRate, date time.Time) error {
	payload, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("failed to encode rate for cache: %w", err)
	}

	key := rateKey(rate.BaseCurrency, rate.TargetCurrency, date)
	if err := c.client.SetWithExpiration(ctx, key, payload, rateTTL); err != nil {
		return fmt.Errorf("failed to write rate to cache: %w", err)
	}

	return nil
}

// IsFresh reports whether the freshness flag is currently set
func (c *Cache) IsFresh(ctx context.Context) (bool, error) {
	value, err := c.client.GetString(ctx, freshKey)
	if goredis.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read freshness flag: %w", err)
	}
	return value == "true", nil
}

// MarkFresh sets the freshness flag with a 24 hour TTL
func (c *Cache) MarkFresh(ctx context.Context) error {
	if err := c.client.SetWithExpiration(ctx, freshKey, "true", freshTTL); err != nil {
		return fmt.Errorf("failed to set freshness flag: %w", err)
	}
	return nil
}
