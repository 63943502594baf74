package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"productservice/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RejectsWith429(t *testing.T) {
	i := newTestInterceptor(t, NewMemoryStore(newFakeClock().Now, 0))

	calls := 0
	handler := Middleware(i, "burst.op")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		req.Header.Set("X-Forwarded-For", "192.168.1.1")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for n := 0; n < 5; n++ {
		rr := send()
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"4", "3", "2", "1", "0"}[n], rr.Header().Get("X-RateLimit-Remaining"))
	}

	rr := send()
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, 5, calls)

	var body models.RateLimitErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, http.StatusTooManyRequests, body.Status)
	assert.Equal(t, "Too Many Requests", body.Error)
	assert.Equal(t, "Slow down.", body.Message)
	assert.Equal(t, "ip:192.168.1.1", body.BucketKey)
	assert.Equal(t, int64(2), body.RetryAfterSeconds)
	assert.False(t, body.Timestamp.IsZero())
}

func TestMiddleware_UsesUpstreamRequestInfo(t *testing.T) {
	i := newTestInterceptor(t, NewMemoryStore(newFakeClock().Now, 0))

	var key string
	handler := Middleware(i, "user.op")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, d, err := i.Check(r.Context(), "user.op")
		require.NoError(t, err)
		key = d.BucketKey
	}))

	req := httptest.NewRequest(http.MethodPut, "/products/1", nil)
	req = req.WithContext(WithRequestInfo(req.Context(), RequestInfo{IP: "10.1.1.1", UserID: "alice", Path: "/products/1"}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "4", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Empty(t, key, "inner check on an admitted context is free and keyless")
}
