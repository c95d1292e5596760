package currency

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zeref/currency-converter/pkg/config"
	"github.com/zeref/currency-converter/pkg/logger"
	goredis "github.com/zeref/currency-converter/pkg/redis"
	"github.com/zeref/currency-converter/pkg/resilience"
)

// persistQueueSize bounds how many batches may wait for the writer.
const persistQueueSize = 16

// Synchronizer refreshes the full cross-rate table on a schedule. Only one
// fleet instance does upstream work at a time, guarded by the distributed
// lock; persistence runs on a separate writer goroutine so the scheduling
// slot is released as soon as the table is computed.
type Synchronizer struct {
	repo     RepositoryInterface
	cache    CacheInterface
	provider ProviderInterface
	lock     LockInterface
	calc     *CrossRateCalculator
	cfg      *config.SyncConfig

	persistCh chan []*ExchangeRate
	done      chan struct{}

	freshRetry resilience.RetryConfig
	now        func() time.Time
}

// NewSynchronizer creates a synchronizer. Call Start before the first sync
// and Stop during shutdown to drain pending writes.
func NewSynchronizer(
	repo RepositoryInterface,
	cache CacheInterface,
	provider ProviderInterface,
	lock LockInterface,
	calc *CrossRateCalculator,
	cfg *config.SyncConfig,
) *Synchronizer {
	freshRetry := resilience.ConservativeRetryConfig()
	freshRetry.RetryableChecker = goredis.IsRetryable

	return &Synchronizer{
		repo:       repo,
		cache:      cache,
		provider:   provider,
		lock:       lock,
		calc:       calc,
		cfg:        cfg,
		persistCh:  make(chan []*ExchangeRate, persistQueueSize),
		done:       make(chan struct{}),
		freshRetry: freshRetry,
		now:        time.Now,
	}
}

// Start launches the persistence writer goroutine.
func (s *Synchronizer) Start() {
	go s.persistWorker()
}

// Stop closes the persistence queue and waits for pending writes to finish.
func (s *Synchronizer) Stop() {
	close(s.persistCh)
	<-s.done
}

// Enqueue hands a batch of records to the writer without waiting for the
// write to complete. Batches are dropped with a log line when the queue is
// full rather than blocking the caller.
func (s *Synchronizer) Enqueue(records []*ExchangeRate) {
	if len(records) == 0 {
		return
	}
	select {
	case s.persistCh <- records:
	default:
		logger.Error("Persistence queue full, dropping rate batch",
			zap.Int("records", len(records)),
		)
	}
}

// persistWorker owns the store writes and their retry policy. Failures are
// logged, never surfaced to the sync that queued them.
func (s *Synchronizer) persistWorker() {
	defer close(s.done)

	retryConfig := resilience.ConservativeRetryConfig()
	for batch := range s.persistCh {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := resilience.Retry(ctx, retryConfig, func(ctx context.Context) (interface{}, error) {
			return nil, s.repo.BulkCreateExchangeRates(ctx, batch)
		})
		cancel()

		if err != nil {
			logger.Error("Failed to persist rate batch",
				zap.Int("records", len(batch)),
				zap.Error(err),
			)
			continue
		}
		ratesPersistedTotal.Add(float64(len(batch)))
	}
}

// Sync runs one refresh: acquire the lock, fetch the anchor table, compute
// every ordered pair, queue the records for persistence, append metadata,
// and mark the cache fresh. The lock is released on every exit path, but
// only when this instance holds it.
func (s *Synchronizer) Sync(ctx context.Context) error {
	start := s.now()

	lease := time.Duration(s.cfg.LockLeaseSeconds) * time.Second
	acquired, err := s.lock.TryAcquire(ctx, lease)
	if err != nil {
		// Coordination substrate down. Availability wins over mutual
		// exclusion; a duplicate fetch is acceptable, a dead fleet is not.
		logger.Warn("Lock backend unreachable, syncing without a lock", zap.Error(err))
	} else if !acquired {
		logger.Info("Another instance is syncing, skipping this run")
		syncRunsTotal.WithLabelValues(syncOutcomeSkipped).Inc()
		return nil
	}
	defer s.releaseLock()

	if err := s.run(ctx); err != nil {
		syncRunsTotal.WithLabelValues(syncOutcomeFailure).Inc()
		s.recordFailure(ctx, err)
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	syncRunsTotal.WithLabelValues(syncOutcomeSuccess).Inc()
	syncDuration.Observe(s.now().Sub(start).Seconds())
	return nil
}

func (s *Synchronizer) run(ctx context.Context) error {
	table, err := s.provider.FetchAnchorRates(ctx)
	if err != nil {
		return err
	}

	records, err := s.buildRecords(table)
	if err != nil {
		return err
	}

	s.Enqueue(records)

	meta := &SyncMetadata{
		ID:                     uuid.New(),
		LastSuccessfulSyncTime: s.now().UTC(),
		Status:                 SyncStatusSuccess,
		Source:                 SyncSource,
	}
	if err := s.repo.CreateSyncMetadata(ctx, meta); err != nil {
		logger.Error("Failed to record sync metadata", zap.Error(err))
	}

	if err := s.markFresh(ctx); err != nil {
		logger.Error("Failed to mark cache fresh after sync", zap.Error(err))
	}

	logger.Info("Rate sync completed",
		zap.Int("currencies", len(table)),
		zap.Int("records", len(records)),
	)
	return nil
}

// buildRecords computes every ordered pair of distinct currencies in the
// table, stamped with today's date and the current epoch seconds.
func (s *Synchronizer) buildRecords(table map[string]decimal.Decimal) ([]*ExchangeRate, error) {
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	now := s.now().UTC()
	today := truncateToDay(now)
	observedAt := now.Unix()

	records := make([]*ExchangeRate, 0, len(codes)*(len(codes)-1))
	for _, from := range codes {
		for _, to := range codes {
			if from == to {
				continue
			}
			rate, err := s.calc.Calculate(table, from, to)
			if err != nil {
				// A zero anchor rate poisons every pair through it. Skip
				// the pair and keep the rest of the table usable.
				logger.Warn("Skipping unpriceable pair",
					zap.String("from", from),
					zap.String("to", to),
					zap.Error(err),
				)
				continue
			}
			records = append(records, &ExchangeRate{
				BaseCurrency:   from,
				TargetCurrency: to,
				Rate:           rate,
				Date:           today,
				ObservedAt:     observedAt,
			})
		}
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no computable pairs in a table of %d currencies", len(table))
	}
	return records, nil
}

// markFresh re-arms the fleet-wide freshness flag, retrying transient Redis
// failures. An unset flag sends every reader back to the metadata table until
// it expires naturally.
func (s *Synchronizer) markFresh(ctx context.Context) error {
	_, err := resilience.Retry(ctx, s.freshRetry, func(ctx context.Context) (interface{}, error) {
		return nil, s.cache.MarkFresh(ctx)
	})
	return err
}

// recordFailure appends a FAILURE metadata row carrying the error text.
func (s *Synchronizer) recordFailure(ctx context.Context, cause error) {
	meta := &SyncMetadata{
		ID:                     uuid.New(),
		LastSuccessfulSyncTime: s.now().UTC(),
		Status:                 SyncStatusFailure,
		Source:                 SyncSource,
		Notes:                  cause.Error(),
	}
	if err := s.repo.CreateSyncMetadata(ctx, meta); err != nil {
		logger.Error("Failed to record sync failure metadata", zap.Error(err))
	}
}

// releaseLock frees the lock only when this instance is the holder.
func (s *Synchronizer) releaseLock() {
	if !s.lock.IsHeld() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.lock.Release(ctx); err != nil {
		logger.Error("Failed to release sync lock", zap.Error(err))
	}
}
