package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	s := &ExponentialBackoff{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, s.NextRetry(0))
	assert.Equal(t, 200*time.Millisecond, s.NextRetry(1))
	assert.Equal(t, 800*time.Millisecond, s.NextRetry(3))
	assert.Equal(t, time.Second, s.NextRetry(10))
}

func TestRetry(t *testing.T) {
	s := &ExponentialBackoff{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 3, s, func() error {
			calls++
			if calls < 3 {
				return errors.New("unavailable")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 2, s, func() error {
			calls++
			return errors.New("unavailable")
		})
		require.EqualError(t, err, "unavailable")
		assert.Equal(t, 2, calls)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := &ExponentialBackoff{InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}
		err := retry(ctx, 3, slow, func() error { return errors.New("unavailable") })
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), GeminiConfig{}, nil)
	require.ErrorIs(t, err, ErrNotConfigured)
}
