package inbox

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nest/internal/config"
	apperrors "nest/pkg/errors"
)

func breakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}
}

func TestCircuitBreakerRepository_OpensOnStoreFailures(t *testing.T) {
	store := newMemoryStore()
	repo := NewCircuitBreakerRepository(store, store, breakerConfig())
	store.failWith = errStoreDown

	for i := 0; i < 2; i++ {
		_, err := repo.GetBin(context.Background(), "b_x")
		require.ErrorIs(t, err, errStoreDown)
	}
	assert.Equal(t, "open", repo.State())

	calls := store.getBinCalls
	_, err := repo.GetBin(context.Background(), "b_x")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavailable)
	assert.Equal(t, calls, store.getBinCalls)

	err = repo.CreateEvent(context.Background(), &Event{BinID: "b_x"})
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavailable)
}

func TestCircuitBreakerRepository_MissingBinIsNotAFailure(t *testing.T) {
	store := newMemoryStore()
	repo := NewCircuitBreakerRepository(store, store, breakerConfig())

	for i := 0; i < 5; i++ {
		err := repo.CreateEvent(context.Background(), &Event{BinID: "b_gone"})
		require.ErrorIs(t, err, ErrBinMissing)
	}
	assert.Equal(t, "closed", repo.State())
}

func TestCircuitBreakerRepository_UnstorableDataIsNotAFailure(t *testing.T) {
	store := newMemoryStore()
	repo := NewCircuitBreakerRepository(store, store, breakerConfig())
	store.failWith = fmt.Errorf("failed to create event: %w: invalid input syntax for type json", ErrUnstorable)

	for i := 0; i < 5; i++ {
		err := repo.CreateEvent(context.Background(), &Event{BinID: "b_x"})
		require.ErrorIs(t, err, ErrUnstorable)
	}
	assert.Equal(t, "closed", repo.State())
}

func TestCircuitBreakerRepository_PassesResultsThrough(t *testing.T) {
	store := newMemoryStore()
	repo := NewCircuitBreakerRepository(store, store, breakerConfig())

	bin, err := repo.CreateBin(context.Background(), nil)
	require.NoError(t, err)

	got, err := repo.GetBin(context.Background(), bin.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, bin.ID, got.ID)

	missing, err := repo.GetBin(context.Background(), "b_nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	events, err := repo.ListEventsByBin(context.Background(), bin.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCircuitBreakerRepository_Disabled(t *testing.T) {
	store := newMemoryStore()
	repo := NewCircuitBreakerRepository(store, store, config.CircuitBreakerConfig{})
	assert.Equal(t, "disabled", repo.State())

	store.failWith = errStoreDown
	for i := 0; i < 10; i++ {
		_, err := repo.ListBins(context.Background())
		assert.ErrorIs(t, err, errStoreDown)
	}
}
