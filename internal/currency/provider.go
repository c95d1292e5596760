package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zeref/currency-converter/pkg/config"
	"github.com/zeref/currency-converter/pkg/httpclient"
	"github.com/zeref/currency-converter/pkg/logger"
	"github.com/zeref/currency-converter/pkg/resilience"
)

// staleResponseAge is how old an upstream timestamp may be before we warn.
const staleResponseAge = time.Hour

// providerResponse is the upstream wire contract. A missing success flag or
// an empty rate table is a hard failure.
type providerResponse struct {
	Success   bool                       `json:"success"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	Timestamp int64                      `json:"timestamp"`
}

// Provider fetches anchor-relative rate tables from the upstream API,
// wrapped with retry and circuit breaking. No caching or business logic
// lives here.
type Provider struct {
	client      *httpclient.Client
	breaker     *resilience.CircuitBreaker
	retryConfig resilience.RetryConfig
	accessKey   string
	anchor      string
}

// NewProvider creates the upstream adapter from configuration
func NewProvider(cfg *config.RatesAPIConfig) *Provider {
	retryConfig := resilience.DefaultRetryConfig()
	retryConfig.RetryableChecker = isProviderRetryable

	breaker := resilience.NewCircuitBreaker(resilience.BuildSettings(
		"exchange-rate-api",
		cfg.BreakerIntervalSeconds,
		cfg.BreakerTimeoutSeconds,
		cfg.BreakerFailureThreshold,
		cfg.BreakerSuccessThreshold,
	), nil)

	return &Provider{
		client:      httpclient.NewClient(cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second),
		breaker:     breaker,
		retryConfig: retryConfig,
		accessKey:   cfg.AccessKey,
		anchor:      cfg.AnchorCurrency,
	}
}

// Anchor returns the currency the upstream table is expressed against.
func (p *Provider) Anchor() string {
	return p.anchor
}

// FetchAnchorRates fetches the full rate table relative to the anchor
// currency. Signals ErrUpstreamUnavailable after retries are exhausted or
// while the circuit is open.
func (p *Provider) FetchAnchorRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	resp, err := p.fetch(ctx, p.anchor, "")
	if err != nil {
		return nil, err
	}
	return resp.Rates, nil
}

// FetchPairRate fetches a single real-time rate for (base, target).
func (p *Provider) FetchPairRate(ctx context.Context, base, target string) (decimal.Decimal, error) {
	resp, err := p.fetch(ctx, base, target)
	if err != nil {
		return decimal.Zero, err
	}

	rate, ok := resp.Rates[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: upstream returned no rate for %s", ErrUpstreamUnavailable, target)
	}
	return rate, nil
}

func (p *Provider) fetch(ctx context.Context, base, symbols string) (*providerResponse, error) {
	params := url.Values{}
	params.Set("access_key", p.accessKey)
	params.Set("base", base)
	if symbols != "" {
		params.Set("symbols", symbols)
	}
	path := "/latest?" + params.Encode()

	result, err := resilience.RetryWithBreaker(ctx, p.retryConfig, p.breaker, func(ctx context.Context) (interface{}, error) {
		body, err := p.client.Get(ctx, path, nil)
		if err != nil {
			return nil, err
		}

		resp := &providerResponse{}
		if err := json.Unmarshal(body, resp); err != nil {
			return nil, fmt.Errorf("failed to decode upstream response: %w", err)
		}
		if !resp.Success || len(resp.Rates) == 0 {
			return nil, fmt.Errorf("upstream returned unsuccessful or empty response")
		}
		return resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	resp := result.(*providerResponse)
	if resp.Timestamp > 0 {
		age := time.Since(time.Unix(resp.Timestamp, 0))
		if age > staleResponseAge {
			logger.Warn("Upstream rate data is older than expected",
				zap.String("base", base),
				zap.Duration("age", age),
			)
		}
	}

	return resp, nil
}

// isProviderRetryable retries transport failures and transient HTTP codes.
func isProviderRetryable(err error) bool {
	if err == nil {
		return false
	}
	if httpErr, ok := err.(*httpclient.HTTPError); ok {
		return resilience.IsRetryableHTTPStatus(httpErr.StatusCode)
	}
	return true
}
