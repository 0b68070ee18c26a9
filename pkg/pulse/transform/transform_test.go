package transform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightwire/pulse/pkg/pulse/wire"
)

func envelope(typ string, data any) *wire.Envelope {
	return &wire.Envelope{Type: typ, Data: data, Timestamp: time.Now()}
}

func TestDropTypePattern(t *testing.T) {
	ctx := context.Background()
	drop := DropTypePattern("debug/#")

	t.Run("matching envelope is dropped", func(t *testing.T) {
		result, _ := drop(ctx, envelope("debug/trace/deep", nil))
		assert.Nil(t, result)
	})

	t.Run("non-matching envelope passes through", func(t *testing.T) {
		env := envelope("metrics/cpu", 0.5)
		result, cont := drop(ctx, env)
		assert.Same(t, env, result)
		assert.True(t, cont)
	})
}

func TestDropTypePrefix(t *testing.T) {
	ctx := context.Background()
	drop := DropTypePrefix("internal/")

	result, _ := drop(ctx, envelope("internal/audit", nil))
	assert.Nil(t, result)

	env := envelope("metrics/cpu", nil)
	result, cont := drop(ctx, env)
	assert.Same(t, env, result)
	assert.True(t, cont)
}

func TestAddTypePrefix(t *testing.T) {
	ctx := context.Background()
	prefix := AddTypePrefix("processed/")

	env := envelope("metrics/cpu", 0.5)
	result, cont := prefix(ctx, env)

	require.NotNil(t, result)
	assert.True(t, cont)
	assert.Equal(t, "processed/metrics/cpu", result.Type)
	assert.Equal(t, env.Data, result.Data)
	assert.Equal(t, env.Timestamp, result.Timestamp)
	// Original is untouched.
	assert.Equal(t, "metrics/cpu", env.Type)
}

func TestRateLimitByType(t *testing.T) {
	ctx := context.Background()
	limit := RateLimitByType(time.Hour)

	first, _ := limit(ctx, envelope("metrics/cpu", 1))
	assert.NotNil(t, first)

	second, _ := limit(ctx, envelope("metrics/cpu", 2))
	assert.Nil(t, second)

	// Different type has its own window.
	other, _ := limit(ctx, envelope("metrics/memory", 3))
	assert.NotNil(t, other)
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("transforms apply in order", func(t *testing.T) {
		chain := Chain(
			AddTypePrefix("a/"),
			AddTypePrefix("b/"),
		)

		result, cont := chain(ctx, envelope("event", nil))
		require.NotNil(t, result)
		assert.True(t, cont)
		assert.Equal(t, "b/a/event", result.Type)
	})

	t.Run("drop stops the chain", func(t *testing.T) {
		var reached bool
		chain := Chain(
			DropTypePrefix("event"),
			func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
				reached = true
				return env, true
			},
		)

		result, _ := chain(ctx, envelope("event", nil))
		assert.Nil(t, result)
		assert.False(t, reached)
	})

	t.Run("false continue flag stops the chain", func(t *testing.T) {
		var reached bool
		chain := Chain(
			func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
				return env, false
			},
			func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
				reached = true
				return env, true
			},
		)

		result, cont := chain(ctx, envelope("event", nil))
		assert.NotNil(t, result)
		assert.False(t, cont)
		assert.False(t, reached)
	})
}

func TestOnPattern(t *testing.T) {
	ctx := context.Background()

	t.Run("extracted fields reach the transform", func(t *testing.T) {
		enrich := OnPattern("metrics/+host/data", func(ctx context.Context, data any, fields map[string]string) any {
			return map[string]any{
				"host":  fields["host"],
				"value": data,
			}
		})

		result, cont := enrich(ctx, envelope("metrics/web01/data", 0.5))
		require.NotNil(t, result)
		assert.True(t, cont)
		assert.Equal(t, map[string]any{"host": "web01", "value": 0.5}, result.Data)
	})

	t.Run("non-matching envelope passes through", func(t *testing.T) {
		enrich := OnPattern("metrics/+host/data", func(ctx context.Context, data any, fields map[string]string) any {
			t.Fatal("transform should not run")
			return nil
		})

		env := envelope("alerts/critical", nil)
		result, _ := enrich(ctx, env)
		assert.Same(t, env, result)
	})

	t.Run("nil result drops the envelope", func(t *testing.T) {
		filter := OnPattern("metrics/+host/data", func(ctx context.Context, data any, fields map[string]string) any {
			return nil
		})

		result, _ := filter(ctx, envelope("metrics/web01/data", 0.5))
		assert.Nil(t, result)
	})
}

func TestIfPattern(t *testing.T) {
	ctx := context.Background()
	conditional := IfPattern("metrics/#", AddTypePrefix("processed/"))

	result, _ := conditional(ctx, envelope("metrics/cpu", nil))
	require.NotNil(t, result)
	assert.Equal(t, "processed/metrics/cpu", result.Type)

	env := envelope("alerts/high", nil)
	result, _ = conditional(ctx, env)
	assert.Same(t, env, result)
}

func TestModifyData(t *testing.T) {
	ctx := context.Background()

	t.Run("data is replaced", func(t *testing.T) {
		wrap := ModifyData(func(ctx context.Context, data any, fields map[string]string) any {
			return map[string]any{"wrapped": data}
		})

		result, cont := wrap(ctx, envelope("metrics/cpu", 0.5))
		require.NotNil(t, result)
		assert.True(t, cont)
		assert.Equal(t, map[string]any{"wrapped": 0.5}, result.Data)
	})

	t.Run("nil result drops the envelope", func(t *testing.T) {
		drop := ModifyData(func(ctx context.Context, data any, fields map[string]string) any {
			return nil
		})

		result, _ := drop(ctx, envelope("metrics/cpu", 0.5))
		assert.Nil(t, result)
	})
}

func TestHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("transform runs before the handler", func(t *testing.T) {
		var got wire.Envelope
		h := Handler(AddTypePrefix("processed/"), func(ctx context.Context, env wire.Envelope, fields map[string]string) error {
			got = env
			return nil
		})

		err := h(ctx, *envelope("metrics/cpu", 0.5), map[string]string{"k": "v"})
		require.NoError(t, err)
		assert.Equal(t, "processed/metrics/cpu", got.Type)
	})

	t.Run("dropped envelopes never reach the handler", func(t *testing.T) {
		h := Handler(DropTypePrefix("metrics/"), func(ctx context.Context, env wire.Envelope, fields map[string]string) error {
			t.Fatal("handler should not run")
			return nil
		})

		err := h(ctx, *envelope("metrics/cpu", 0.5), nil)
		assert.NoError(t, err)
	})
}
