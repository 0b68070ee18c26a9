// Package transform provides composable functions that reshape, filter,
// or drop inbound envelopes before they reach handlers.
package transform

import (
	"context"
	"strings"
	"time"

	"github.com/amir-yaghoubi/mqttpattern"

	"github.com/insightwire/pulse/pkg/pulse/client"
	"github.com/insightwire/pulse/pkg/pulse/wire"
)

// Func transforms an inbound envelope. It can modify, replace, or drop
// it before handler dispatch.
//
// Returns:
//   - *wire.Envelope: the transformed envelope (nil to drop it)
//   - bool: whether to continue with subsequent transforms in a chain
//     (ignored if the envelope is nil)
type Func func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool)

// SimpleFunc transforms only the envelope data. fields carries segments
// extracted from a type pattern when the transform is pattern-driven.
// Returning nil drops the envelope.
type SimpleFunc func(ctx context.Context, data any, fields map[string]string) any

// DropTypePattern returns a Func that drops envelopes whose types match
// the given MQTT-style pattern.
//
// Pattern examples:
//   - "debug/#" drops every type under "debug/"
//   - "+/internal" drops types ending in "/internal"
func DropTypePattern(pattern string) Func {
	return func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
		if mqttpattern.Matches(pattern, env.Type) {
			return nil, false
		}
		return env, true
	}
}

// DropTypePrefix returns a Func that drops envelopes whose types start
// with the given prefix. You probably want the prefix to end with a
// slash.
func DropTypePrefix(prefix string) Func {
	return func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
		if strings.HasPrefix(env.Type, prefix) {
			return nil, false
		}
		return env, true
	}
}

// AddTypePrefix returns a Func that prepends a prefix to every envelope
// type.
func AddTypePrefix(prefix string) Func {
	return func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
		modified := &wire.Envelope{
			Type:      prefix + env.Type,
			Data:      env.Data,
			Timestamp: env.Timestamp,
		}
		return modified, true
	}
}

// RateLimitByType returns a Func that drops envelopes of a type seen
// less than minInterval ago. State is per returned Func, so each chain
// gets its own window. Not safe for use from multiple goroutines; the
// client dispatches from a single read loop.
func RateLimitByType(minInterval time.Duration) Func {
	lastSeen := make(map[string]time.Time)

	return func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
		now := time.Now()
		if last, exists := lastSeen[env.Type]; exists {
			if now.Sub(last) < minInterval {
				return nil, false
			}
		}
		lastSeen[env.Type] = now
		return env, true
	}
}

// Chain combines multiple Funcs into one. A nil result or a false
// continue flag from any link stops the chain.
func Chain(transforms ...Func) Func {
	return func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
		current := env
		for _, transform := range transforms {
			if current == nil {
				return nil, true
			}

			transformed, continueProcessing := transform(ctx, current)
			current = transformed

			if current == nil || !continueProcessing {
				return current, continueProcessing
			}
		}
		return current, true
	}
}

// OnPattern returns a Func that applies a SimpleFunc to envelopes whose
// types match the given MQTT-style pattern, passing any extracted
// fields along. Non-matching envelopes pass through unchanged; a nil
// result from the SimpleFunc drops the envelope.
//
// Pattern examples with field extraction:
//   - "metrics/+host/data" extracts the host name as the "host" field
//   - "alerts/+severity/#" extracts the severity level
func OnPattern(pattern string, transform SimpleFunc) Func {
	return func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
		if !mqttpattern.Matches(pattern, env.Type) {
			return env, true
		}

		fields := mqttpattern.Extract(pattern, env.Type)
		transformedData := transform(ctx, env.Data, fields)
		if transformedData == nil {
			return nil, true
		}

		return &wire.Envelope{
			Type:      env.Type,
			Data:      transformedData,
			Timestamp: env.Timestamp,
		}, true
	}
}

// IfPattern applies a transform only when the envelope type matches the
// pattern; otherwise the envelope passes through unchanged.
func IfPattern(pattern string, transform Func) Func {
	return func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
		if mqttpattern.Matches(pattern, env.Type) {
			return transform(ctx, env)
		}
		return env, true
	}
}

// ModifyData returns a Func that applies a SimpleFunc to every envelope
// data field. A nil result drops the envelope.
func ModifyData(transform SimpleFunc) Func {
	return func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
		transformedData := transform(ctx, env.Data, make(map[string]string))
		if transformedData == nil {
			return nil, true
		}

		return &wire.Envelope{
			Type:      env.Type,
			Data:      transformedData,
			Timestamp: env.Timestamp,
		}, true
	}
}

// Handler wraps a client handler so the transform runs first. Dropped
// envelopes are silently absorbed.
func Handler(transform Func, h client.Handler) client.Handler {
	return func(ctx context.Context, env wire.Envelope, fields map[string]string) error {
		transformed, _ := transform(ctx, &env)
		if transformed == nil {
			return nil
		}
		return h(ctx, *transformed, fields)
	}
}
