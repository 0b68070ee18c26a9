package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultReconnectPolicy(t *testing.T) {
	p := DefaultReconnectPolicy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 3*time.Second, p.BaseDelay)
	assert.Equal(t, 1.0, p.Factor)
}

func TestReconnectPolicyNextDelay(t *testing.T) {
	t.Run("fixed delay below the ceiling", func(t *testing.T) {
		p := ReconnectPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}

		for attempt := 1; attempt < 3; attempt++ {
			delay, ok := p.NextDelay(attempt)
			require.True(t, ok, "attempt %d should retry", attempt)
			assert.Equal(t, 100*time.Millisecond, delay)
		}
	})

	t.Run("declines at the ceiling", func(t *testing.T) {
		p := ReconnectPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}

		_, ok := p.NextDelay(3)
		assert.False(t, ok)
		_, ok = p.NextDelay(4)
		assert.False(t, ok)
	})

	t.Run("exponential growth with cap", func(t *testing.T) {
		p := ReconnectPolicy{
			MaxAttempts: 10,
			BaseDelay:   100 * time.Millisecond,
			Factor:      2.0,
			MaxDelay:    300 * time.Millisecond,
		}

		expected := []time.Duration{
			100 * time.Millisecond, // first retry
			200 * time.Millisecond,
			300 * time.Millisecond, // capped
			300 * time.Millisecond,
		}
		for i, want := range expected {
			delay, ok := p.NextDelay(i + 1)
			require.True(t, ok)
			assert.Equal(t, want, delay, "attempt %d", i+1)
		}
	})

	t.Run("factor at or below one keeps the delay fixed", func(t *testing.T) {
		p := ReconnectPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, Factor: 0.5}

		delay, ok := p.NextDelay(4)
		require.True(t, ok)
		assert.Equal(t, 100*time.Millisecond, delay)
	})

	t.Run("zero base delay falls back to the default", func(t *testing.T) {
		p := ReconnectPolicy{MaxAttempts: 5}

		delay, ok := p.NextDelay(1)
		require.True(t, ok)
		assert.Equal(t, 3*time.Second, delay)
	})

	t.Run("jitter stays within bounds", func(t *testing.T) {
		p := ReconnectPolicy{
			MaxAttempts: 5,
			BaseDelay:   100 * time.Millisecond,
			Jitter:      0.5,
		}

		for i := 0; i < 50; i++ {
			delay, ok := p.NextDelay(1)
			require.True(t, ok)
			assert.GreaterOrEqual(t, delay, 50*time.Millisecond)
			assert.LessOrEqual(t, delay, 150*time.Millisecond)
		}
	})

	t.Run("jitter above one is clamped", func(t *testing.T) {
		p := ReconnectPolicy{
			MaxAttempts: 5,
			BaseDelay:   100 * time.Millisecond,
			Jitter:      3.0,
		}

		for i := 0; i < 50; i++ {
			delay, ok := p.NextDelay(1)
			require.True(t, ok)
			assert.GreaterOrEqual(t, delay, time.Duration(0))
			assert.LessOrEqual(t, delay, 200*time.Millisecond)
		}
	})
}
