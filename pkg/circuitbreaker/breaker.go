// Package circuitbreaker guards calls to a flaky dependency with
// sony/gobreaker and mirrors breaker state into prometheus.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"nest/pkg/metrics"
)

// Settings configures a Breaker. Zero values fall back to the defaults in New.
type Settings struct {
	Name string
	// MaxRequests is the number of trial calls let through while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counts. Zero never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// The breaker opens once MinRequests calls were seen and at least
	// FailureRatio of them failed.
	MinRequests  uint32
	FailureRatio float64
	// Expected reports errors that are normal outcomes, such as "not found".
	// They are returned to the caller without counting as failures.
	Expected func(err error) bool
}

type Breaker struct {
	cb       *gobreaker.CircuitBreaker
	expected func(err error) bool
}

func New(s Settings) *Breaker {
	if s.MaxRequests == 0 {
		s.MaxRequests = 1
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}

	b := &Breaker{expected: s.Expected}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= s.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= s.FailureRatio
		},
		IsSuccessful: b.succeeded,
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, stateValue(to))
		},
	})
	metrics.SetCircuitBreakerState(s.Name, stateValue(b.cb.State()))
	return b
}

func (b *Breaker) succeeded(err error) bool {
	return err == nil || (b.expected != nil && b.expected(err))
}

func (b *Breaker) Name() string { return b.cb.Name() }

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Call runs fn through b. A context that is already done short-circuits
// without touching the breaker.
func Call[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	if err := ctx.Err(); err != nil {
		return out, err
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		v, err := fn()
		out = v
		return nil, err
	})

	if !Rejected(err) {
		metrics.IncCircuitBreakerRequest(b.cb.Name(), b.cb.State().String(), b.succeeded(err))
	}
	return out, err
}

// Rejected reports whether err came from an open or saturated breaker rather
// than the guarded call.
func Rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
