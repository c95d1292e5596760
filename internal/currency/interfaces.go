package currency

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RepositoryInterface defines the durable store for rates and sync metadata
type RepositoryInterface interface {
	CreateExchangeRate(ctx context.Context, rate *ExchangeRate) error
	BulkCreateExchangeRates(ctx context.Context, rates []*ExchangeRate) error
	GetExchangeRate(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error)
	GetLatestExchangeRateBefore(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error)
	CreateSyncMetadata(ctx context.Context, meta *SyncMetadata) error
	GetLatestSuccessfulSync(ctx context.Context) (*SyncMetadata, error)
}

// CacheInterface defines the shared cache for resolved answers and the
// fleet-wide freshness flag
type CacheInterface interface {
	GetRate(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error)
	SetRate(ctx context.Context, rate *ExchangeRate, date time.Time) error
	IsFresh(ctx context.Context) (bool, error)
	MarkFresh(ctx context.Context) error
}

// ProviderInterface defines the upstream rate source
type ProviderInterface interface {
	FetchAnchorRates(ctx context.Context) (map[string]decimal.Decimal, error)
	FetchPairRate(ctx context.Context, base, target string) (decimal.Decimal, error)
}

// LockInterface defines the fleet-wide mutex guarding the daily sync
type LockInterface interface {
	TryAcquire(ctx context.Context, lease time.Duration) (bool, error)
	IsLocked(ctx context.Context) (bool, error)
	IsHeld() bool
	Release(ctx context.Context) error
}
