package resilience

import (
	"context"

	"go.uber.org/zap"

	"github.com/zeref/currency-converter/pkg/logger"
)

// FallbackFunc decides the result of an operation rejected by an open
// breaker.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// NoopFallback surfaces ErrCircuitOpen unchanged, for callers that handle
// the open state themselves.
func NoopFallback(ctx context.Context, err error) (interface{}, error) {
	return nil, ErrCircuitOpen
}

// StaticFallback substitutes a fixed value while the circuit is open, when
// a safe default exists.
func StaticFallback(defaultValue interface{}) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.Warn("circuit breaker open, returning static fallback", zap.Error(err))
		return defaultValue, nil
	}
}

// GracefulDegradation surfaces ErrCircuitOpen with a structured warning
// naming the degraded dependency.
func GracefulDegradation(serviceName string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.Warn("circuit breaker open, service degraded",
			zap.String("service", serviceName),
			zap.Error(err),
		)
		return nil, ErrCircuitOpen
	}
}
