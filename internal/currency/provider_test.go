package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeref/currency-converter/pkg/config"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := NewProvider(&config.RatesAPIConfig{
		BaseURL:        server.URL,
		AccessKey:      "test-key",
		AnchorCurrency: "EUR",
		TimeoutSeconds: 5,
	})
	// Short backoffs keep retry paths fast under test
	provider.retryConfig.InitialBackoff = time.Millisecond
	provider.retryConfig.MaxBackoff = 5 * time.Millisecond
	return provider, server
}

func TestFetchAnchorRates_Success(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("access_key"))
		assert.Equal(t, "EUR", r.URL.Query().Get("base"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"rates":{"EUR":1,"USD":1.10,"INR":90.00},"timestamp":` +
			timestampNow() + `}`))
	})

	rates, err := provider.FetchAnchorRates(context.Background())

	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, "1.1", rates["USD"].String())
}

func TestFetchAnchorRates_UnsuccessfulFlag(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":false,"rates":{"USD":1.10}}`))
	})

	_, err := provider.FetchAnchorRates(context.Background())

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestFetchAnchorRates_EmptyRates(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"rates":{}}`))
	})

	_, err := provider.FetchAnchorRates(context.Background())

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestFetchAnchorRates_RetriesServerErrors(t *testing.T) {
	var calls int32
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"rates":{"USD":1.10}}`))
	})

	rates, err := provider.FetchAnchorRates(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Contains(t, rates, "USD")
}

func TestFetchAnchorRates_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := provider.FetchAnchorRates(context.Background())

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchPairRate_SendsBaseAndSymbols(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "USD", r.URL.Query().Get("base"))
		assert.Equal(t, "INR", r.URL.Query().Get("symbols"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"rates":{"INR":83.25}}`))
	})

	rate, err := provider.FetchPairRate(context.Background(), "USD", "INR")

	require.NoError(t, err)
	assert.Equal(t, "83.25", rate.String())
}

func TestFetchPairRate_MissingTarget(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"rates":{"GBP":0.79}}`))
	})

	_, err := provider.FetchPairRate(context.Background(), "USD", "INR")

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func timestampNow() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
