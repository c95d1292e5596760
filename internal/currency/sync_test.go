package currency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zeref/currency-converter/pkg/config"
)

type syncFixture struct {
	repo     *MockRepository
	cache    *MockCache
	provider *MockProvider
	lock     *MockLock
	sync     *Synchronizer
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		repo:     new(MockRepository),
		cache:    new(MockCache),
		provider: new(MockProvider),
		lock:     new(MockLock),
	}
	f.sync = NewSynchronizer(f.repo, f.cache, f.provider, f.lock, NewCrossRateCalculator("EUR"), &config.SyncConfig{
		LockName:         "fetch-rates-lock",
		LockLeaseSeconds: 10,
		StaleAfterHours:  24,
	})
	f.sync.now = func() time.Time { return fixedNow }
	// Short backoffs keep the fresh-flag retry path fast under test
	f.sync.freshRetry.InitialBackoff = time.Millisecond
	f.sync.freshRetry.MaxBackoff = 5 * time.Millisecond
	return f
}

func syncTable() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"EUR": decimal.NewFromInt(1),
		"USD": decimal.RequireFromString("1.10"),
		"INR": decimal.RequireFromString("90.00"),
	}
}

func TestSync_Success(t *testing.T) {
	f := newSyncFixture(t)

	persisted := make(chan []*ExchangeRate, 1)
	f.lock.On("TryAcquire", mock.Anything, 10*time.Second).Return(true, nil)
	f.provider.On("FetchAnchorRates", mock.Anything).Return(syncTable(), nil)
	f.repo.On("BulkCreateExchangeRates", mock.Anything, mock.AnythingOfType("[]*currency.ExchangeRate")).
		Run(func(args mock.Arguments) {
			persisted <- args.Get(1).([]*ExchangeRate)
		}).Return(nil)
	f.repo.On("CreateSyncMetadata", mock.Anything, mock.MatchedBy(func(m *SyncMetadata) bool {
		return m.Status == SyncStatusSuccess && m.Source == SyncSource
	})).Return(nil)
	f.cache.On("MarkFresh", mock.Anything).Return(nil)
	f.lock.On("IsHeld").Return(true)
	f.lock.On("Release", mock.Anything).Return(nil)

	f.sync.Start()
	defer f.sync.Stop()

	err := f.sync.Sync(context.Background())

	require.NoError(t, err)
	select {
	case batch := <-persisted:
		// Three currencies make six ordered pairs
		assert.Len(t, batch, 6)
		found := false
		for _, record := range batch {
			if record.BaseCurrency == "USD" && record.TargetCurrency == "INR" {
				found = true
				assert.Equal(t, "81.818182", record.Rate.String())
				assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), record.Date)
				assert.Equal(t, fixedNow.Unix(), record.ObservedAt)
			}
		}
		assert.True(t, found, "USD to INR pair missing from persisted batch")
	case <-time.After(2 * time.Second):
		t.Fatal("persist worker never wrote the batch")
	}

	f.lock.AssertCalled(t, "Release", mock.Anything)
}

func TestSync_SkipsWhenAnotherInstanceHoldsLock(t *testing.T) {
	f := newSyncFixture(t)

	f.lock.On("TryAcquire", mock.Anything, 10*time.Second).Return(false, nil)
	f.lock.On("IsHeld").Return(false)

	err := f.sync.Sync(context.Background())

	require.NoError(t, err)
	f.provider.AssertNotCalled(t, "FetchAnchorRates", mock.Anything)
	f.lock.AssertNotCalled(t, "Release", mock.Anything)
}

func TestSync_ProceedsWhenLockBackendDown(t *testing.T) {
	f := newSyncFixture(t)

	f.lock.On("TryAcquire", mock.Anything, 10*time.Second).Return(false, ErrLockUnavailable)
	f.provider.On("FetchAnchorRates", mock.Anything).Return(syncTable(), nil)
	f.repo.On("CreateSyncMetadata", mock.Anything, mock.AnythingOfType("*currency.SyncMetadata")).Return(nil)
	f.cache.On("MarkFresh", mock.Anything).Return(nil)
	f.lock.On("IsHeld").Return(false)

	err := f.sync.Sync(context.Background())

	require.NoError(t, err)
	f.provider.AssertCalled(t, "FetchAnchorRates", mock.Anything)
	// Not the holder, so nothing to release
	f.lock.AssertNotCalled(t, "Release", mock.Anything)
}

func TestSync_UpstreamFailureRecordsFailureAndReleasesLock(t *testing.T) {
	f := newSyncFixture(t)

	f.lock.On("TryAcquire", mock.Anything, 10*time.Second).Return(true, nil)
	f.provider.On("FetchAnchorRates", mock.Anything).Return(nil, errors.New("upstream timeout"))
	f.repo.On("CreateSyncMetadata", mock.Anything, mock.MatchedBy(func(m *SyncMetadata) bool {
		return m.Status == SyncStatusFailure && m.Notes == "upstream timeout"
	})).Return(nil)
	f.lock.On("IsHeld").Return(true)
	f.lock.On("Release", mock.Anything).Return(nil)

	err := f.sync.Sync(context.Background())

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	f.lock.AssertCalled(t, "Release", mock.Anything)
	f.cache.AssertNotCalled(t, "MarkFresh", mock.Anything)
}

func TestSync_EmptyTableIsAFailure(t *testing.T) {
	f := newSyncFixture(t)

	f.lock.On("TryAcquire", mock.Anything, 10*time.Second).Return(true, nil)
	f.provider.On("FetchAnchorRates", mock.Anything).Return(map[string]decimal.Decimal{}, nil)
	f.repo.On("CreateSyncMetadata", mock.Anything, mock.MatchedBy(func(m *SyncMetadata) bool {
		return m.Status == SyncStatusFailure
	})).Return(nil)
	f.lock.On("IsHeld").Return(true)
	f.lock.On("Release", mock.Anything).Return(nil)

	err := f.sync.Sync(context.Background())

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestSync_MetadataFailureDoesNotFailRun(t *testing.T) {
	f := newSyncFixture(t)

	f.lock.On("TryAcquire", mock.Anything, 10*time.Second).Return(true, nil)
	f.provider.On("FetchAnchorRates", mock.Anything).Return(syncTable(), nil)
	f.repo.On("CreateSyncMetadata", mock.Anything, mock.AnythingOfType("*currency.SyncMetadata")).
		Return(errors.New("insert failed"))
	f.cache.On("MarkFresh", mock.Anything).Return(nil)
	f.lock.On("IsHeld").Return(true)
	f.lock.On("Release", mock.Anything).Return(nil)

	err := f.sync.Sync(context.Background())

	require.NoError(t, err)
	f.cache.AssertCalled(t, "MarkFresh", mock.Anything)
}

func TestSync_MarkFreshRetriesTransientRedisFailure(t *testing.T) {
	f := newSyncFixture(t)

	f.lock.On("TryAcquire", mock.Anything, 10*time.Second).Return(true, nil)
	f.provider.On("FetchAnchorRates", mock.Anything).Return(syncTable(), nil)
	f.repo.On("CreateSyncMetadata", mock.Anything, mock.AnythingOfType("*currency.SyncMetadata")).Return(nil)
	f.cache.On("MarkFresh", mock.Anything).Return(errors.New("connection refused")).Once()
	f.cache.On("MarkFresh", mock.Anything).Return(nil).Once()
	f.lock.On("IsHeld").Return(true)
	f.lock.On("Release", mock.Anything).Return(nil)

	err := f.sync.Sync(context.Background())

	require.NoError(t, err)
	f.cache.AssertNumberOfCalls(t, "MarkFresh", 2)
}

func TestSync_MarkFreshDoesNotRetryPermanentRedisFailure(t *testing.T) {
	f := newSyncFixture(t)

	f.lock.On("TryAcquire", mock.Anything, 10*time.Second).Return(true, nil)
	f.provider.On("FetchAnchorRates", mock.Anything).Return(syncTable(), nil)
	f.repo.On("CreateSyncMetadata", mock.Anything, mock.AnythingOfType("*currency.SyncMetadata")).Return(nil)
	f.cache.On("MarkFresh", mock.Anything).Return(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"))
	f.lock.On("IsHeld").Return(true)
	f.lock.On("Release", mock.Anything).Return(nil)

	// A failed flag write degrades freshness, it never fails the sync
	err := f.sync.Sync(context.Background())

	require.NoError(t, err)
	f.cache.AssertNumberOfCalls(t, "MarkFresh", 1)
}

func TestSync_PersistFailureIsLoggedNotSurfaced(t *testing.T) {
	f := newSyncFixture(t)

	done := make(chan struct{}, 2)
	f.lock.On("TryAcquire", mock.Anything, 10*time.Second).Return(true, nil)
	f.provider.On("FetchAnchorRates", mock.Anything).Return(syncTable(), nil)
	f.repo.On("BulkCreateExchangeRates", mock.Anything, mock.AnythingOfType("[]*currency.ExchangeRate")).
		Run(func(mock.Arguments) { done <- struct{}{} }).
		Return(errors.New("store down"))
	f.repo.On("CreateSyncMetadata", mock.Anything, mock.AnythingOfType("*currency.SyncMetadata")).Return(nil)
	f.cache.On("MarkFresh", mock.Anything).Return(nil)
	f.lock.On("IsHeld").Return(true)
	f.lock.On("Release", mock.Anything).Return(nil)

	f.sync.Start()
	defer f.sync.Stop()

	err := f.sync.Sync(context.Background())

	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("persist worker never attempted the write")
	}
}

func TestEnqueue_DropsWhenQueueFull(t *testing.T) {
	f := newSyncFixture(t)

	// Worker not started, so the buffered queue fills up and overflow is
	// dropped instead of blocking
	batch := []*ExchangeRate{storedRate(today(), "81.818182")}
	for i := 0; i < persistQueueSize+5; i++ {
		f.sync.Enqueue(batch)
	}
}
