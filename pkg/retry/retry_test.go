package retry

import (
	"context"
	"testing"
	"time"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewTestLogger(),
	}
}

func TestDo(t *testing.T) {
	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := Do(func() error {
			calls++
			return nil
		}, testConfig(3))

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		err := Do(func() error {
			calls++
			if calls < 3 {
				return errs.Connection(assert.AnError)
			}
			return nil
		}, testConfig(3))

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Do(func() error {
			calls++
			return errs.Connection(assert.AnError)
		}, testConfig(2))

		assert.Error(t, err)
		assert.Equal(t, 2, calls)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("permanent errors fail immediately", func(t *testing.T) {
		calls := 0
		err := Do(func() error {
			calls++
			return errs.Authentication("bad key", nil)
		}, testConfig(3))

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := testConfig(5)
		cfg.Context = ctx
		cfg.Backoff = &ConstantBackoff{Delay: time.Minute}

		calls := 0
		done := make(chan error, 1)
		go func() {
			done <- Do(func() error {
				calls++
				return errs.Connection(assert.AnError)
			}, cfg)
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		assert.ErrorIs(t, <-done, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.Authentication("no", nil)))
	assert.False(t, DefaultRetryIf(errs.ErrZeroPosts))
	assert.True(t, DefaultRetryIf(errs.Connection(assert.AnError)))
}

func TestExponentialBackoff(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	assert.Equal(t, time.Duration(0), eb.NextDelay(0))
	assert.Equal(t, 100*time.Millisecond, eb.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, eb.NextDelay(2))
	assert.Equal(t, 400*time.Millisecond, eb.NextDelay(3))
	// The cap kicks in well before attempt 10.
	assert.Equal(t, time.Second, eb.NextDelay(10))
}

func TestExponentialBackoffJitter(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}

	for i := 0; i < 50; i++ {
		d := eb.NextDelay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}
