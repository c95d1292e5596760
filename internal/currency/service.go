package currency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zeref/currency-converter/pkg/config"
	"github.com/zeref/currency-converter/pkg/logger"
)

// Persister accepts fire-and-forget write batches. Implemented by the
// Synchronizer's queue.
type Persister interface {
	Enqueue(records []*ExchangeRate)
}

// Service resolves a rate for a (source, target, date) triple: freshness
// gate, then cache, then a lock-aware live path for today, then the store,
// writing cache entries back on the way out.
type Service struct {
	repo      RepositoryInterface
	cache     CacheInterface
	provider  ProviderInterface
	lock      LockInterface
	persister Persister
	cfg       *config.SyncConfig

	now func() time.Time
}

// NewService creates the rate resolution service. The persister may be nil
// when live-fallback answers should never reach the store.
func NewService(
	repo RepositoryInterface,
	cache CacheInterface,
	provider ProviderInterface,
	lock LockInterface,
	persister Persister,
	cfg *config.SyncConfig,
) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		provider:  provider,
		lock:      lock,
		persister: persister,
		cfg:       cfg,
		now:       time.Now,
	}
}

// GetRate resolves the exchange rate for a currency pair on a date. An
// empty date means today.
func (s *Service) GetRate(ctx context.Context, from, to, dateStr string) (*ExchangeRate, error) {
	from, err := NormalizeCurrency(from)
	if err != nil {
		return nil, err
	}
	to, err = NormalizeCurrency(to)
	if err != nil {
		return nil, err
	}
	date, err := ParseRateDate(dateStr, s.now())
	if err != nil {
		return nil, err
	}

	if from == to {
		return &ExchangeRate{
			BaseCurrency:   from,
			TargetCurrency: to,
			Rate:           decimal.NewFromInt(1),
			Date:           date,
			ObservedAt:     s.now().Unix(),
		}, nil
	}

	if err := s.ensureFresh(ctx); err != nil {
		return nil, err
	}

	if cached, err := s.cache.GetRate(ctx, from, to, date); err == nil {
		resolutionsTotal.WithLabelValues(resolutionSourceCache).Inc()
		return cached, nil
	} else if !errors.Is(err, ErrRateNotFound) {
		logger.Warn("Cache read failed, falling through to store", zap.Error(err))
	}

	if s.isToday(date) && s.syncInFlight(ctx) {
		if rate, err := s.fetchLive(ctx, from, to, date); err == nil {
			return rate, nil
		} else {
			logger.Warn("Live rate fetch failed during sync, using stored data",
				zap.String("from", from),
				zap.String("to", to),
				zap.Error(err),
			)
		}
	}

	rate, err := s.repo.GetExchangeRate(ctx, from, to, date)
	if errors.Is(err, ErrRateNotFound) {
		rate, err = s.repo.GetLatestExchangeRateBefore(ctx, from, to, date)
	}
	if errors.Is(err, ErrRateNotFound) {
		return nil, fmt.Errorf("%w: %s to %s on %s", ErrRateNotFound, from, to, date.Format(DateLayout))
	}
	if err != nil {
		return nil, err
	}

	resolutionsTotal.WithLabelValues(resolutionSourceStore).Inc()
	s.cacheAnswer(ctx, rate, date)
	return rate, nil
}

// Convert resolves the rate for a pair and applies it to an amount.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to, dateStr string) (*ConvertResponse, error) {
	if amount.IsNegative() || amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	rate, err := s.GetRate(ctx, from, to, dateStr)
	if err != nil {
		return nil, err
	}

	return &ConvertResponse{
		OriginalAmount:  amount,
		FromCurrency:    rate.BaseCurrency,
		ConvertedAmount: amount.Mul(rate.Rate).Round(RateScale),
		ToCurrency:      rate.TargetCurrency,
		Rate:            rate.Rate,
		Date:            rate.Date.Format(DateLayout),
	}, nil
}

// ensureFresh enforces the freshness contract. The cache flag is the fast
// path; when it is absent the most recent successful sync decides, and a
// positive answer re-arms the flag so later requests skip the store.
func (s *Service) ensureFresh(ctx context.Context) error {
	fresh, err := s.cache.IsFresh(ctx)
	if err != nil {
		logger.Warn("Freshness flag unreadable, checking sync metadata", zap.Error(err))
	}
	if fresh {
		return nil
	}

	meta, err := s.repo.GetLatestSuccessfulSync(ctx)
	if errors.Is(err, ErrRateNotFound) {
		return fmt.Errorf("%w: no successful sync has ever completed", ErrStaleData)
	}
	if err != nil {
		return err
	}

	staleAfter := time.Duration(s.cfg.StaleAfterHours) * time.Hour
	age := s.now().UTC().Sub(meta.LastSuccessfulSyncTime)
	if age > staleAfter {
		return fmt.Errorf("%w: last successful sync was %s ago", ErrStaleData, age.Round(time.Minute))
	}

	if err := s.cache.MarkFresh(ctx); err != nil {
		logger.Warn("Failed to re-arm freshness flag", zap.Error(err))
	}
	return nil
}

// syncInFlight reports whether another instance currently holds the sync
// lock. A lock-backend error is treated as "no sync running" so lookups
// degrade to stored data instead of failing.
func (s *Service) syncInFlight(ctx context.Context) bool {
	locked, err := s.lock.IsLocked(ctx)
	if err != nil {
		logger.Warn("Lock state unreadable", zap.Error(err))
		return false
	}
	return locked && !s.lock.IsHeld()
}

// fetchLive asks the provider for a real-time pair rate, bypassing a table
// that may be half-written by an in-flight sync.
func (s *Service) fetchLive(ctx context.Context, from, to string, date time.Time) (*ExchangeRate, error) {
	live, err := s.provider.FetchPairRate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	rate := &ExchangeRate{
		BaseCurrency:   from,
		TargetCurrency: to,
		Rate:           live.Round(RateScale),
		Date:           date,
		ObservedAt:     s.now().Unix(),
	}

	resolutionsTotal.WithLabelValues(resolutionSourceProvider).Inc()
	s.cacheAnswer(ctx, rate, date)
	if s.cfg.PersistLiveRates && s.persister != nil {
		s.persister.Enqueue([]*ExchangeRate{rate})
	}
	return rate, nil
}

// cacheAnswer writes a resolved rate back to the cache under the date the
// caller asked for, so latest-before answers satisfy repeat requests for the
// same date. Failures only cost the next request a store round trip.
func (s *Service) cacheAnswer(ctx context.Context, rate *ExchangeRate, date time.Time) {
	if err := s.cache.SetRate(ctx, rate, date); err != nil {
		logger.Warn("Failed to cache resolved rate", zap.Error(err))
	}
}

func (s *Service) isToday(date time.Time) bool {
	return date.Equal(truncateToDay(s.now().UTC()))
}
