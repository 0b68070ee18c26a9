package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelta(t *testing.T) {
	ctx := context.Background()

	t.Run("exact old/new pair becomes the diff", func(t *testing.T) {
		data := map[string]any{
			"old": map[string]any{"name": "web01", "cpu": 0.5},
			"new": map[string]any{"name": "web01", "cpu": 0.9},
		}

		result := Delta(ctx, data, nil)
		diff, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 0.9, diff["cpu"])
		assert.NotContains(t, diff, "name")
	})

	t.Run("extra keys survive alongside the delta", func(t *testing.T) {
		data := map[string]any{
			"old":       map[string]any{"cpu": 0.5},
			"new":       map[string]any{"cpu": 0.9},
			"host":      "web01",
			"collected": "2026-08-29T10:00:00Z",
		}

		result := Delta(ctx, data, nil)
		out, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "web01", out["host"])
		assert.Equal(t, "2026-08-29T10:00:00Z", out["collected"])
		assert.NotContains(t, out, "old")
		assert.NotContains(t, out, "new")

		delta, ok := out["delta"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 0.9, delta["cpu"])
	})

	t.Run("non-map data passes through", func(t *testing.T) {
		assert.Equal(t, 42, Delta(ctx, 42, nil))
		assert.Equal(t, "text", Delta(ctx, "text", nil))
		assert.Nil(t, Delta(ctx, nil, nil))
	})

	t.Run("map without old and new passes through", func(t *testing.T) {
		data := map[string]any{"old": 1, "other": 2}
		assert.Equal(t, data, Delta(ctx, data, nil))
	})

	t.Run("works inside OnPattern", func(t *testing.T) {
		deltify := OnPattern("state/#", Delta)

		env := envelope("state/dashboard", map[string]any{
			"old": map[string]any{"open": 10.0},
			"new": map[string]any{"open": 12.0},
		})

		result, _ := deltify(ctx, env)
		require.NotNil(t, result)
		diff, ok := result.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 12.0, diff["open"])
	})
}
