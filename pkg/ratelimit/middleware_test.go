package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(t *testing.T, cfg RateLimitConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.Use(RateLimitMiddleware(ctx, cfg))
	r.GET("/b/:bin_id", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimitMiddleware_LimitsPerKey(t *testing.T) {
	r := newRouter(t, RateLimitConfig{
		RPS:             0.001,
		Burst:           2,
		CleanupInterval: time.Minute,
		MaxAge:          time.Minute,
		KeyFunc:         func(c *gin.Context) string { return c.GetHeader("X-Client") },
	})

	do := func(client string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/b/b_1", nil)
		req.Header.Set("X-Client", client)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("a").Code)
	assert.Equal(t, http.StatusOK, do("a").Code)

	limited := do("a")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.JSONEq(t, `{"error":{"code":"RATE_LIMIT_EXCEEDED","message":"rate limit exceeded"}}`, limited.Body.String())
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do("b").Code)
}

func TestStoreCleanup(t *testing.T) {
	s := &store{config: RateLimitConfig{RPS: 1, Burst: 1, MaxAge: time.Minute}, limiters: make(map[string]*Limiter)}
	s.get("old")

	s.cleanup(time.Now().Add(2 * time.Minute))
	assert.Empty(t, s.limiters)
}
