package currency

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// In-package mocks for the engine's collaborator interfaces.

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateExchangeRate(ctx context.Context, rate *ExchangeRate) error {
	args := m.Called(ctx, rate)
	return args.Error(0)
}

func (m *MockRepository) BulkCreateExchangeRates(ctx context.Context, rates []*ExchangeRate) error {
	args := m.Called(ctx, rates)
	return args.Error(0)
}

func (m *MockRepository) GetExchangeRate(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error) {
	args := m.Called(ctx, base, target, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ExchangeRate), args.Error(1)
}

func (m *MockRepository) GetLatestExchangeRateBefore(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error) {
	args := m.Called(ctx, base, target, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ExchangeRate), args.Error(1)
}

func (m *MockRepository) CreateSyncMetadata(ctx context.Context, meta *SyncMetadata) error {
	args := m.Called(ctx, meta)
	return args.Error(0)
}

func (m *MockRepository) GetLatestSuccessfulSync(ctx context.Context) (*SyncMetadata, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SyncMetadata), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetRate(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error) {
	args := m.Called(ctx, base, target, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ExchangeRate), args.Error(1)
}

func (m *MockCache) SetRate(ctx context.Context, rate *ExchangeRate, date time.Time) error {
	args := m.Called(ctx, rate, date)
	return args.Error(0)
}

func (m *MockCache) IsFresh(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) MarkFresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) FetchAnchorRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

func (m *MockProvider) FetchPairRate(ctx context.Context, base, target string) (decimal.Decimal, error) {
	args := m.Called(ctx, base, target)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockLock struct {
	mock.Mock
}

func (m *MockLock) TryAcquire(ctx context.Context, lease time.Duration) (bool, error) {
	args := m.Called(ctx, lease)
	return args.Bool(0), args.Error(1)
}

func (m *MockLock) IsLocked(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockLock) IsHeld() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockPersister struct {
	mock.Mock
}

func (m *MockPersister) Enqueue(records []*ExchangeRate) {
	m.Called(records)
}
