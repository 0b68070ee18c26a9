package client

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/insightwire/pulse/pkg/pulse/wire"
)

func dispatch(d *dispatcher, typ string, data any) {
	d.Dispatch(context.Background(), wire.Envelope{Type: typ, Data: data})
}

func TestDispatcherHandlers(t *testing.T) {
	logger := zap.NewNop()

	t.Run("exact type match", func(t *testing.T) {
		d := newDispatcher(logger)

		var got []string
		d.On("metrics/cpu", func(ctx context.Context, env wire.Envelope, fields map[string]string) error {
			got = append(got, env.Type)
			assert.Nil(t, fields)
			return nil
		})

		dispatch(d, "metrics/cpu", 0.5)
		dispatch(d, "metrics/memory", 0.5)

		assert.Equal(t, []string{"metrics/cpu"}, got)
	})

	t.Run("single-level wildcard", func(t *testing.T) {
		d := newDispatcher(logger)

		var got []string
		d.On("metrics/+", func(ctx context.Context, env wire.Envelope, fields map[string]string) error {
			got = append(got, env.Type)
			return nil
		})

		dispatch(d, "metrics/cpu", nil)
		dispatch(d, "metrics/memory", nil)
		dispatch(d, "metrics/cpu/core0", nil) // too deep for +
		dispatch(d, "alerts/high", nil)

		assert.Equal(t, []string{"metrics/cpu", "metrics/memory"}, got)
	})

	t.Run("multi-level wildcard", func(t *testing.T) {
		d := newDispatcher(logger)

		var got []string
		d.On("metrics/#", func(ctx context.Context, env wire.Envelope, fields map[string]string) error {
			got = append(got, env.Type)
			return nil
		})

		dispatch(d, "metrics/cpu", nil)
		dispatch(d, "metrics/cpu/core0", nil)
		dispatch(d, "alerts/high", nil)

		assert.Equal(t, []string{"metrics/cpu", "metrics/cpu/core0"}, got)
	})

	t.Run("named wildcard segments are extracted", func(t *testing.T) {
		d := newDispatcher(logger)

		var fields map[string]string
		d.On("metrics/+host/+metric", func(ctx context.Context, env wire.Envelope, f map[string]string) error {
			fields = f
			return nil
		})

		dispatch(d, "metrics/web01/cpu", nil)

		require.NotNil(t, fields)
		assert.Equal(t, "web01", fields["host"])
		assert.Equal(t, "cpu", fields["metric"])
	})

	t.Run("handlers run in registration order", func(t *testing.T) {
		d := newDispatcher(logger)

		var order []int
		for i := 0; i < 3; i++ {
			i := i
			d.On("metrics/#", func(ctx context.Context, env wire.Envelope, fields map[string]string) error {
				order = append(order, i)
				return nil
			})
		}

		dispatch(d, "metrics/cpu", nil)
		assert.Equal(t, []int{0, 1, 2}, order)
	})

	t.Run("handler errors do not stop later handlers", func(t *testing.T) {
		d := newDispatcher(logger)

		var reached bool
		d.On("metrics/cpu", func(ctx context.Context, env wire.Envelope, fields map[string]string) error {
			return fmt.Errorf("boom")
		})
		d.On("metrics/cpu", func(ctx context.Context, env wire.Envelope, fields map[string]string) error {
			reached = true
			return nil
		})

		dispatch(d, "metrics/cpu", nil)
		assert.True(t, reached)
	})

	t.Run("control envelopes never reach handlers", func(t *testing.T) {
		d := newDispatcher(logger)

		var got []string
		d.On("#", func(ctx context.Context, env wire.Envelope, fields map[string]string) error {
			got = append(got, env.Type)
			return nil
		})
		d.On(wire.TypePong, func(ctx context.Context, env wire.Envelope, fields map[string]string) error {
			got = append(got, env.Type)
			return nil
		})

		dispatch(d, wire.TypePing, nil)
		dispatch(d, wire.TypePong, nil)
		dispatch(d, wire.TypeSubscribe, nil)
		dispatch(d, wire.TypeUnsubscribe, nil)
		dispatch(d, "metrics/cpu", nil)

		assert.Equal(t, []string{"metrics/cpu"}, got)
	})
}

func TestDispatcherChannels(t *testing.T) {
	logger := zap.NewNop()

	t.Run("channels keep registration order", func(t *testing.T) {
		d := newDispatcher(logger)

		assert.True(t, d.AddChannel("metrics"))
		assert.True(t, d.AddChannel("alerts"))
		assert.True(t, d.AddChannel("collection"))
		assert.Equal(t, []string{"metrics", "alerts", "collection"}, d.Channels())
	})

	t.Run("duplicate add is rejected", func(t *testing.T) {
		d := newDispatcher(logger)

		assert.True(t, d.AddChannel("metrics"))
		assert.False(t, d.AddChannel("metrics"))
		assert.Equal(t, []string{"metrics"}, d.Channels())
	})

	t.Run("remove preserves the order of the rest", func(t *testing.T) {
		d := newDispatcher(logger)

		d.AddChannel("metrics")
		d.AddChannel("alerts")
		d.AddChannel("collection")

		assert.True(t, d.RemoveChannel("alerts"))
		assert.Equal(t, []string{"metrics", "collection"}, d.Channels())

		assert.False(t, d.RemoveChannel("alerts"))
	})

	t.Run("channels returns a copy", func(t *testing.T) {
		d := newDispatcher(logger)
		d.AddChannel("metrics")

		channels := d.Channels()
		channels[0] = "mutated"
		assert.Equal(t, []string{"metrics"}, d.Channels())
	})
}

func TestMakeMatcher(t *testing.T) {
	t.Run("exact patterns ignore wildcard syntax", func(t *testing.T) {
		m := makeMatcher("metrics/cpu")

		ok, fields := m("metrics/cpu")
		assert.True(t, ok)
		assert.Nil(t, fields)

		ok, _ = m("metrics/cpu/core0")
		assert.False(t, ok)
	})

	t.Run("anonymous wildcards match without extraction", func(t *testing.T) {
		m := makeMatcher("metrics/+")

		ok, fields := m("metrics/cpu")
		assert.True(t, ok)
		assert.Nil(t, fields)
	})

	t.Run("named wildcards extract fields", func(t *testing.T) {
		m := makeMatcher("alerts/+severity")

		ok, fields := m("alerts/critical")
		require.True(t, ok)
		assert.Equal(t, "critical", fields["severity"])

		ok, fields = m("metrics/cpu")
		assert.False(t, ok)
		assert.Nil(t, fields)
	})
}
