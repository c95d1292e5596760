package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeref/currency-converter/pkg/config"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:       true,
		WindowSeconds: 60,
		DefaultLimit:  5,
		DefaultBurst:  2,
		RedisPrefix:   "rl",
	}
}

func newTestLimiter(t *testing.T) (*Limiter, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return NewLimiter(db, testConfig()), mock
}

func expectHit(mock redismock.ClientMock, key string, count, ttlMillis int64) {
	mock.ExpectEvalSha(counterScript.Hash(), []string{key}, int64(60000)).
		SetVal([]interface{}{count, ttlMillis})
}

func TestAllow_WithinLimit(t *testing.T) {
	limiter, mock := newTestLimiter(t)
	expectHit(mock, "rl:10.0.0.1", 1, 60000)

	result, err := limiter.Allow(context.Background(), "10.0.0.1")

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 6, result.Remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllow_BurstHeadroomCounts(t *testing.T) {
	limiter, mock := newTestLimiter(t)

	// Limit 5 plus burst 2 admits the seventh hit and rejects the eighth.
	expectHit(mock, "rl:10.0.0.1", 7, 30000)
	result, err := limiter.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)

	expectHit(mock, "rl:10.0.0.1", 8, 30000)
	result, err = limiter.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, int64(30000), result.RetryAfter.Milliseconds())
}

func TestAllow_BackendError(t *testing.T) {
	limiter, mock := newTestLimiter(t)
	mock.ExpectEvalSha(counterScript.Hash(), []string{"rl:10.0.0.1"}, int64(60000)).
		SetErr(errors.New("connection refused"))

	_, err := limiter.Allow(context.Background(), "10.0.0.1")

	assert.Error(t, err)
}

func newMiddlewareRouter(limiter *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return router
}

func TestMiddleware_AllowsAndBlocks(t *testing.T) {
	limiter, mock := newTestLimiter(t)
	router := newMiddlewareRouter(limiter)

	expectHit(mock, "rl:192.0.2.1", 1, 60000)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "6", rec.Header().Get("X-RateLimit-Remaining"))

	expectHit(mock, "rl:192.0.2.1", 8, 15000)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMiddleware_FailsOpenOnBackendError(t *testing.T) {
	limiter, mock := newTestLimiter(t)
	router := newMiddlewareRouter(limiter)

	mock.ExpectEvalSha(counterScript.Hash(), []string{"rl:192.0.2.1"}, int64(60000)).
		SetErr(errors.New("connection refused"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_DisabledSkipsBackend(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := testConfig()
	cfg.Enabled = false
	limiter := NewLimiter(db, cfg)
	router := newMiddlewareRouter(limiter)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
