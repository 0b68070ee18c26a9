package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

func TestJq(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("invalid query fails to compile", func(t *testing.T) {
		_, err := Jq(".[", logger)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse JQ query")
	})

	t.Run("extracts a field from map data", func(t *testing.T) {
		extract, err := Jq(".value", logger)
		require.NoError(t, err)

		result, cont := extract(ctx, envelope("metrics/cpu", map[string]any{"value": 0.75, "unit": "ratio"}))
		require.NotNil(t, result)
		assert.True(t, cont)
		assert.Equal(t, 0.75, result.Data)
	})

	t.Run("type is available as $type", func(t *testing.T) {
		tag, err := Jq("{data: ., source: $type}", logger)
		require.NoError(t, err)

		result, _ := tag(ctx, envelope("metrics/cpu", 0.5))
		require.NotNil(t, result)
		assert.Equal(t, map[string]any{"data": 0.5, "source": "metrics/cpu"}, result.Data)
	})

	t.Run("select with no results drops the envelope", func(t *testing.T) {
		onlyCritical, err := Jq(`select(.severity == "critical")`, logger)
		require.NoError(t, err)

		result, _ := onlyCritical(ctx, envelope("alerts/new", map[string]any{"severity": "info"}))
		assert.Nil(t, result)
	})

	t.Run("multiple results collect into an array", func(t *testing.T) {
		split, err := Jq(".[]", logger)
		require.NoError(t, err)

		result, _ := split(ctx, envelope("metrics/batch", []any{1.0, 2.0, 3.0}))
		require.NotNil(t, result)
		assert.Equal(t, []any{1.0, 2.0, 3.0}, result.Data)
	})

	t.Run("JSON string data is parsed", func(t *testing.T) {
		extract, err := Jq(".name", logger)
		require.NoError(t, err)

		result, _ := extract(ctx, envelope("event", `{"name": "web01"}`))
		require.NotNil(t, result)
		assert.Equal(t, "web01", result.Data)
	})

	t.Run("non-JSON string data is a plain string", func(t *testing.T) {
		upper, err := Jq("ascii_upcase", logger)
		require.NoError(t, err)

		result, _ := upper(ctx, envelope("event", "hello"))
		require.NotNil(t, result)
		assert.Equal(t, "HELLO", result.Data)
	})

	t.Run("byte slice data is parsed as JSON", func(t *testing.T) {
		extract, err := Jq(".ok", logger)
		require.NoError(t, err)

		result, _ := extract(ctx, envelope("event", []byte(`{"ok": true}`)))
		require.NotNil(t, result)
		assert.Equal(t, true, result.Data)
	})

	t.Run("struct data goes through a JSON round trip", func(t *testing.T) {
		type sample struct {
			Name  string  `json:"name"`
			Value float64 `json:"value"`
		}

		extract, err := Jq(".name", logger)
		require.NoError(t, err)

		result, _ := extract(ctx, envelope("event", sample{Name: "web01", Value: 0.5}))
		require.NotNil(t, result)
		assert.Equal(t, "web01", result.Data)
	})

	t.Run("cty values are converted", func(t *testing.T) {
		extract, err := Jq(".region", logger)
		require.NoError(t, err)

		data := cty.ObjectVal(map[string]cty.Value{
			"region": cty.StringVal("us-east-1"),
		})
		result, _ := extract(ctx, envelope("event", data))
		require.NotNil(t, result)
		assert.Equal(t, "us-east-1", result.Data)
	})

	t.Run("execution error passes the envelope through", func(t *testing.T) {
		bad, err := Jq(".value + 1", logger)
		require.NoError(t, err)

		env := envelope("event", map[string]any{"value": "not a number"})
		result, cont := bad(ctx, env)
		assert.Same(t, env, result)
		assert.True(t, cont)
	})
}
