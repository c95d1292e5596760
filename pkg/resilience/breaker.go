package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/zeref/currency-converter/pkg/logger"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when the breaker rejects an operation without
// executing it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings tunes a circuit breaker.
type Settings struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// CircuitBreaker wraps gobreaker with fallback handling and metrics.
type CircuitBreaker struct {
	name     string
	breaker  *gobreaker.CircuitBreaker
	fallback FallbackFunc
}

// NewCircuitBreaker creates a circuit breaker from the given settings. The
// fallback is invoked whenever the breaker is open; pass NoopFallback when the
// caller handles ErrCircuitOpen itself.
func NewCircuitBreaker(settings Settings, fallback FallbackFunc) *CircuitBreaker {
	name := nextBreakerName(settings.Name)
	if fallback == nil {
		fallback = NoopFallback
	}

	failureThreshold := settings.FailureThreshold
	if failureThreshold == 0 {
		failureThreshold = 5
	}
	maxRequests := settings.SuccessThreshold
	if maxRequests == 0 {
		maxRequests = 1
	}

	gbSettings := gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			recordBreakerStateChange(name, from, to)
		},
	}

	cb := &CircuitBreaker{
		name:     name,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
		fallback: fallback,
	}
	recordBreakerState(name, cb.breaker.State())
	return cb
}

// Execute runs the operation through the breaker. When the breaker is open
// the configured fallback decides the result.
func (c *CircuitBreaker) Execute(ctx context.Context, operation Operation) (interface{}, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return operation(ctx)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		recordBreakerOutcome(c.name, outcomeFallback)
		return c.fallback(ctx, ErrCircuitOpen)
	}
	if err != nil {
		recordBreakerOutcome(c.name, outcomeFailure)
		return nil, err
	}

	recordBreakerOutcome(c.name, outcomeSuccess)
	return result, nil
}

// State returns the current breaker state.
func (c *CircuitBreaker) State() gobreaker.State {
	return c.breaker.State()
}

// Name returns the breaker's metric label.
func (c *CircuitBreaker) Name() string {
	return c.name
}
