package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func TestReadiness(t *testing.T) {
	r := NewRegistry("1.2.3", time.Second)
	r.Add("postgresql", ok)

	report := r.Readiness(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "1.2.3", report.Version)
	assert.Equal(t, StatusHealthy, report.Checks["postgresql"].Status)

	r.Add("redis", func(context.Context) error { return errors.New("connection refused") })
	report = r.Readiness(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "connection refused", report.Checks["redis"].Error)
	assert.Equal(t, []string{"postgresql", "redis"}, r.Names())
}

func TestReadiness_Timeout(t *testing.T) {
	r := NewRegistry("dev", 20*time.Millisecond)
	r.Add("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	report := r.Readiness(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Contains(t, report.Checks["slow"].Error, "deadline exceeded")
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestPing(t *testing.T) {
	assert.NoError(t, Ping(fakePinger{})(context.Background()))
	assert.ErrorContains(t, Ping(fakePinger{err: errors.New("refused")})(context.Background()), "refused")
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRegistry("dev", time.Second)
	r.Add("postgresql", func(context.Context) error { return errors.New("down") })

	router := gin.New()
	router.GET("/health", r.LivenessHandler)
	router.GET("/ready", r.ReadinessHandler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var report Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, StatusUnhealthy, report.Checks["postgresql"].Status)
}
