package inbox

import (
	"context"
	"errors"
	"fmt"

	"nest/internal/config"
	"nest/pkg/circuitbreaker"
	apperrors "nest/pkg/errors"
)

const storeBreakerName = "postgres-inbox"

// CircuitBreakerRepository fails store calls fast while the database is
// unhealthy. It wraps both repositories with one shared breaker because they
// share one pool.
type CircuitBreakerRepository struct {
	bins    BinRepository
	events  EventRepository
	breaker *circuitbreaker.Breaker
}

func NewCircuitBreakerRepository(bins BinRepository, events EventRepository, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	r := &CircuitBreakerRepository{bins: bins, events: events}
	if !cfg.Enabled {
		return r
	}

	r.breaker = circuitbreaker.New(circuitbreaker.Settings{
		Name:         storeBreakerName,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		MinRequests:  cfg.MinRequests,
		FailureRatio: cfg.FailureRatio,
		Expected: func(err error) bool {
			return errors.Is(err, ErrBinMissing) || errors.Is(err, ErrUnstorable) || errors.Is(err, context.Canceled)
		},
	})
	return r
}

func (r *CircuitBreakerRepository) State() string {
	if r.breaker == nil {
		return "disabled"
	}
	return r.breaker.State().String()
}

func execute[T any](ctx context.Context, r *CircuitBreakerRepository, fn func() (T, error)) (T, error) {
	if r.breaker == nil {
		return fn()
	}

	out, err := circuitbreaker.Call(ctx, r.breaker, fn)
	if circuitbreaker.Rejected(err) {
		return out, apperrors.ErrServiceUnavailable.WithCause(fmt.Errorf("%s breaker: %w", storeBreakerName, err))
	}
	return out, err
}

func (r *CircuitBreakerRepository) CreateBin(ctx context.Context, name *string) (*Bin, error) {
	return execute(ctx, r, func() (*Bin, error) { return r.bins.CreateBin(ctx, name) })
}

func (r *CircuitBreakerRepository) GetBin(ctx context.Context, id string) (*Bin, error) {
	return execute(ctx, r, func() (*Bin, error) { return r.bins.GetBin(ctx, id) })
}

func (r *CircuitBreakerRepository) ListBins(ctx context.Context) ([]Bin, error) {
	return execute(ctx, r, func() ([]Bin, error) { return r.bins.ListBins(ctx) })
}

func (r *CircuitBreakerRepository) CreateEvent(ctx context.Context, event *Event) error {
	_, err := execute(ctx, r, func() (struct{}, error) { return struct{}{}, r.events.CreateEvent(ctx, event) })
	return err
}

func (r *CircuitBreakerRepository) GetEvent(ctx context.Context, id string) (*Event, error) {
	return execute(ctx, r, func() (*Event, error) { return r.events.GetEvent(ctx, id) })
}

func (r *CircuitBreakerRepository) ListEventsByBin(ctx context.Context, binID string, limit int) ([]Event, error) {
	return execute(ctx, r, func() ([]Event, error) { return r.events.ListEventsByBin(ctx, binID, limit) })
}

func (r *CircuitBreakerRepository) ForEachEventByBin(ctx context.Context, binID string, fn func(Event) error) error {
	_, err := execute(ctx, r, func() (struct{}, error) { return struct{}{}, r.events.ForEachEventByBin(ctx, binID, fn) })
	return err
}
