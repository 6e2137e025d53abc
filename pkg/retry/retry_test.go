package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:         attempts,
		InitialInterval:     time.Millisecond,
		MaxInterval:         2 * time.Millisecond,
		Multiplier:          2,
		RandomizationFactor: 0,
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, nil)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanent(t *testing.T) {
	calls := 0
	cause := errors.New("bad credentials")
	err := Do(context.Background(), fastPolicy(5), func() error {
		calls++
		return Permanent(cause)
	}, nil)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}

func TestDo_NotifiesBeforeEachRetry(t *testing.T) {
	var attempts []int
	err := Do(context.Background(), fastPolicy(3), func() error {
		return errors.New("down")
	}, func(attempt int, _ error, next time.Duration) {
		attempts = append(attempts, attempt)
		assert.LessOrEqual(t, next, 2*time.Millisecond)
	})

	assert.EqualError(t, err, "down")
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_JitterStaysWithinFactor(t *testing.T) {
	p := Policy{
		MaxAttempts:         4,
		InitialInterval:     time.Millisecond,
		MaxInterval:         2 * time.Millisecond,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
	for i := 0; i < 20; i++ {
		_ = Do(context.Background(), p, func() error { return errors.New("down") }, func(_ int, _ error, next time.Duration) {
			assert.LessOrEqual(t, next, 3*time.Millisecond)
		})
	}
}

func TestDo_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 10, InitialInterval: time.Second}, func() error {
		calls++
		return errors.New("down")
	}, nil)

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
