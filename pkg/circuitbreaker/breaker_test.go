package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

func TestCall_OpensAfterFailures(t *testing.T) {
	b := New(Settings{Name: "test-open", Timeout: time.Minute, MinRequests: 2, FailureRatio: 0.5})

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), b, func() (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	called := false
	_, err := Call(context.Background(), b, func() (int, error) {
		called = true
		return 1, nil
	})
	assert.True(t, Rejected(err))
	assert.False(t, called)
}

func TestCall_ReturnsResult(t *testing.T) {
	b := New(Settings{Name: "test-result"})
	v, err := Call(context.Background(), b, func() ([]string, error) { return []string{"a"}, nil })
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)
	assert.Equal(t, "test-result", b.Name())
}

func TestCall_ExpectedErrorsDoNotTrip(t *testing.T) {
	b := New(Settings{
		Name:         "test-expected",
		MinRequests:  1,
		FailureRatio: 0.5,
		Expected:     func(err error) bool { return errors.Is(err, errNotFound) },
	})

	for i := 0; i < 5; i++ {
		_, err := Call(context.Background(), b, func() (any, error) { return nil, errNotFound })
		assert.ErrorIs(t, err, errNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestCall_DoneContext(t *testing.T) {
	b := New(Settings{Name: "test-ctx"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Call(ctx, b, func() (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
