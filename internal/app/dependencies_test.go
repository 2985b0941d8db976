package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisConnOptCopiesConnectionSettings(t *testing.T) {
	opts, err := redis.ParseURL("redis://user:pw@cache.internal:6380/3")
	require.NoError(t, err)

	got := RedisConnOpt(opts)
	require.Equal(t, "cache.internal:6380", got.Addr)
	require.Equal(t, "user", got.Username)
	require.Equal(t, "pw", got.Password)
	require.Equal(t, 3, got.DB)
}

func TestNewAPIRateLimiterRejectsOverLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mw, err := NewAPIRateLimiter(client, "2-M")
	require.NoError(t, err)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.RemoteAddr = "10.1.1.1:4000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNewAPIRateLimiterInvalidRate(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	_, err := NewAPIRateLimiter(client, "lots")
	require.Error(t, err)
}
