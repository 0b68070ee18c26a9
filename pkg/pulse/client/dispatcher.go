package client

import (
	"context"
	"strings"
	"sync"

	"github.com/amir-yaghoubi/mqttpattern"
	"go.uber.org/zap"

	"github.com/insightwire/pulse/pkg/pulse/wire"
)

// Handler receives an inbound envelope. fields carries named segments
// extracted from a wildcard type pattern (nil for exact registrations).
// Handler errors are logged and never affect the connection.
type Handler func(ctx context.Context, env wire.Envelope, fields map[string]string) error

// matcher reports whether an envelope type matches a registration, and
// returns any extracted pattern fields.
type matcher func(typ string) (bool, map[string]string)

// makeMatcher builds a matcher for a type pattern. Patterns without
// MQTT wildcards compare exactly; otherwise mqttpattern does the work,
// extracting named segments like "metrics/+host" when present.
func makeMatcher(pattern string) matcher {
	if !strings.ContainsAny(pattern, "#+") {
		return func(typ string) (bool, map[string]string) {
			return typ == pattern, nil
		}
	}

	if mqttpattern.HasExtractions(pattern) {
		return func(typ string) (bool, map[string]string) {
			if mqttpattern.Matches(pattern, typ) {
				return true, mqttpattern.Extract(pattern, typ)
			}
			return false, nil
		}
	}

	return func(typ string) (bool, map[string]string) {
		return mqttpattern.Matches(pattern, typ), nil
	}
}

type handlerEntry struct {
	pattern string
	match   matcher
	handler Handler
}

// dispatcher owns the handler registry and the subscription set. The
// registry is read from the read loop and written by the consumer, so
// both sides go through the mutex; dispatch order is the arrival order
// because only the read-loop goroutine calls Dispatch.
type dispatcher struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers []handlerEntry
	channels []string
	present  map[string]struct{}
}

func newDispatcher(logger *zap.Logger) *dispatcher {
	return &dispatcher{
		logger:  logger,
		present: make(map[string]struct{}),
	}
}

// On registers a handler for an envelope type or wildcard pattern.
// Handlers are invoked in registration order.
func (d *dispatcher) On(pattern string, h Handler) {
	d.mu.Lock()
	d.handlers = append(d.handlers, handlerEntry{
		pattern: pattern,
		match:   makeMatcher(pattern),
		handler: h,
	})
	d.mu.Unlock()
}

// Dispatch fans an envelope out to every matching handler, in
// registration order. Control envelopes never reach handlers, even if
// a handler was registered for their type.
func (d *dispatcher) Dispatch(ctx context.Context, env wire.Envelope) {
	if wire.IsControl(env.Type) {
		return
	}

	d.mu.RLock()
	entries := d.handlers
	d.mu.RUnlock()

	for _, entry := range entries {
		ok, fields := entry.match(env.Type)
		if !ok {
			continue
		}
		if err := entry.handler(ctx, env, fields); err != nil {
			d.logger.Warn("Handler error",
				zap.String("type", env.Type),
				zap.String("pattern", entry.pattern),
				zap.Error(err))
		}
	}
}

// AddChannel records a channel subscription. Returns false if the
// channel was already present.
func (d *dispatcher) AddChannel(channel string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.present[channel]; ok {
		return false
	}
	d.present[channel] = struct{}{}
	d.channels = append(d.channels, channel)
	return true
}

// RemoveChannel drops a channel subscription. Returns false if the
// channel was not present.
func (d *dispatcher) RemoveChannel(channel string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.present[channel]; !ok {
		return false
	}
	delete(d.present, channel)
	for i, c := range d.channels {
		if c == channel {
			d.channels = append(d.channels[:i], d.channels[i+1:]...)
			break
		}
	}
	return true
}

// Channels returns the subscribed channels in registration order.
func (d *dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.channels))
	copy(out, d.channels)
	return out
}
