package wire

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Run("round trip with payload", func(t *testing.T) {
		frame, err := Encode("metrics/update", map[string]any{"cpu": 42.5})
		require.NoError(t, err)

		env, err := Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, "metrics/update", env.Type)
		assert.Equal(t, map[string]any{"cpu": 42.5}, env.Data)
		assert.False(t, env.Timestamp.IsZero())
	})

	t.Run("timestamp is RFC3339", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
		frame, err := EncodeAt("alerts/new", "disk full", at)
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(frame, &raw))
		assert.Equal(t, "2025-06-01T12:30:00Z", raw["timestamp"])
	})

	t.Run("empty type is rejected", func(t *testing.T) {
		_, err := Encode("", "data")
		require.Error(t, err)

		var encErr *EncodeError
		assert.True(t, errors.As(err, &encErr))
	})

	t.Run("unserializable data is rejected", func(t *testing.T) {
		_, err := Encode("metrics/update", make(chan int))
		require.Error(t, err)

		var encErr *EncodeError
		require.True(t, errors.As(err, &encErr))
		assert.Equal(t, "metrics/update", encErr.Type)
	})

	t.Run("nil data is omitted from the frame", func(t *testing.T) {
		frame, err := Encode("ping", nil)
		require.NoError(t, err)
		assert.NotContains(t, string(frame), `"data"`)
	})
}

func TestDecode(t *testing.T) {
	t.Run("malformed JSON", func(t *testing.T) {
		_, err := Decode([]byte(`{not json`))
		require.Error(t, err)

		var decErr *DecodeError
		assert.True(t, errors.As(err, &decErr))
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := Decode([]byte(`{"data": 1, "timestamp": "2025-06-01T12:30:00Z"}`))
		require.Error(t, err)

		var decErr *DecodeError
		assert.True(t, errors.As(err, &decErr))
	})

	t.Run("subscribe payload shape", func(t *testing.T) {
		frame, err := Encode(TypeSubscribe, SubscribePayload{Channels: []string{"metrics", "alerts"}})
		require.NoError(t, err)
		assert.Contains(t, string(frame), `"channels":["metrics","alerts"]`)
	})
}

func TestIsControl(t *testing.T) {
	assert.True(t, IsControl(TypePing))
	assert.True(t, IsControl(TypePong))
	assert.True(t, IsControl(TypeSubscribe))
	assert.True(t, IsControl(TypeUnsubscribe))
	assert.False(t, IsControl("metrics/update"))
	assert.False(t, IsControl(""))
}
