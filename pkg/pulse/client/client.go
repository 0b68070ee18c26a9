// Package client maintains a single logical bidirectional connection
// to a pulse push endpoint. It survives transient transport failures
// through a bounded reconnect policy, detects silently-dead transports
// with a heartbeat, and routes inbound typed envelopes to registered
// handlers in arrival order.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/insightwire/pulse/pkg/pulse/wire"
)

// ErrHeartbeatTimeout marks a transport whose remote stopped answering
// liveness probes. Treated exactly like a transport error.
var ErrHeartbeatTimeout = errors.New("heartbeat timeout")

// ErrPolicyExhausted means the reconnect policy declined further
// attempts. The client stays in StateFailed until Reconnect() is
// called.
var ErrPolicyExhausted = errors.New("reconnect policy exhausted")

// Client is the connection state machine. It owns the transport, the
// attempt counter, the pending heartbeat, and the subscription set;
// external callers only ever invoke its methods, which serialize all
// state mutation through one mutex.
type Client struct {
	endpoint          Endpoint
	policy            ReconnectPolicy
	heartbeatInterval time.Duration
	writeChannelSize  int
	logger            *zap.Logger
	dialer            Dialer
	metrics           *clientMetrics

	dispatcher *dispatcher

	mu             sync.Mutex
	state          ConnectionState
	gen            uint64 // bumped on every segment change; stale callbacks check it
	baseCtx        context.Context
	transport      Transport
	cancel         context.CancelFunc
	writeCh        chan []byte
	announced      map[string]struct{} // channels already subscribed on the live segment
	hb             *heartbeatMonitor
	attempts       int
	lastErr        error
	reconnectTimer *time.Timer
	allowReconnect bool

	onConnect    []func()
	onDisconnect []func(err error)
	onError      []func(err error)
}

// Connect starts a connection attempt in the background. It never
// blocks: the outcome is reported through the OnConnect/OnError
// signals and the observable state. Calling Connect while a connection
// is already live or in progress is expected and logged, not an error.
// A client in StateFailed stays failed; only Reconnect leaves that
// state.
func (c *Client) Connect(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateConnected, StateReconnecting:
		c.logger.Debug("Connect ignored, connection already in progress",
			zap.Stringer("state", c.state))
		c.mu.Unlock()
		return
	case StateFailed:
		c.logger.Warn("Connect ignored in failed state, call Reconnect to retry")
		c.mu.Unlock()
		return
	}

	c.baseCtx = ctx
	c.allowReconnect = true
	c.setState(StateConnecting)
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.dial(gen)
}

// setState transitions the observable state and records it. Callers
// hold c.mu.
func (c *Client) setState(state ConnectionState) {
	c.state = state
	c.metrics.stateChanged(state)
}

// Reconnect resets the attempt counter and starts a fresh connection
// attempt. It is the only way out of StateFailed.
func (c *Client) Reconnect() {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateConnected:
		c.logger.Debug("Reconnect ignored, connection already in progress",
			zap.Stringer("state", c.state))
		c.mu.Unlock()
		return
	}

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.baseCtx == nil {
		c.baseCtx = context.Background()
	}
	c.attempts = 0
	c.lastErr = nil
	c.allowReconnect = true
	c.setState(StateConnecting)
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.dial(gen)
}

// Disconnect tears the client down: it stops the heartbeat, cancels
// any pending reconnect, closes the transport, and forbids all future
// automatic reconnection. It always succeeds, is idempotent, and is
// safe to call from any state. No timer owned by the client fires
// after it returns.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.allowReconnect = false
	c.gen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	hb := c.hb
	c.hb = nil
	cancel := c.cancel
	c.cancel = nil
	tr := c.transport
	c.transport = nil
	c.writeCh = nil
	c.announced = nil
	wasConnected := c.state == StateConnected
	c.setState(StateDisconnected)
	c.mu.Unlock()

	// Heartbeat first, then the (already stopped) reconnect timer,
	// then the transport.
	if hb != nil {
		hb.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if tr != nil {
		tr.Close("client disconnect")
	}

	if wasConnected {
		c.logger.Info("Disconnected", zap.String("url", c.endpoint.URL))
		c.metrics.disconnected(context.Background(), "requested")
		c.emitDisconnect(nil)
	}
}

// Send encodes an envelope of the given type and queues it on the open
// transport. It returns false without error when the client is not
// connected (there is no implicit queueing), when the payload cannot
// be serialized, or when the write queue is full. Retry policy is the
// caller's concern.
func (c *Client) Send(envelopeType string, data any) bool {
	c.mu.Lock()
	if c.state != StateConnected || c.writeCh == nil {
		c.mu.Unlock()
		return false
	}
	gen := c.gen
	c.mu.Unlock()

	frame, err := wire.Encode(envelopeType, data)
	if err != nil {
		c.logger.Warn("Failed to encode envelope",
			zap.String("type", envelopeType),
			zap.Error(err))
		return false
	}

	if !c.enqueue(gen, frame) {
		return false
	}
	c.metrics.sent(context.Background(), envelopeType)
	return true
}

// Subscribe adds a channel to the subscription set. If the client is
// connected the subscribe envelope goes out immediately; otherwise the
// channel is replayed on the next successful connection. Subscribing
// to an already-subscribed channel is a no-op.
func (c *Client) Subscribe(channel string) {
	if channel == "" {
		return
	}
	if !c.dispatcher.AddChannel(channel) {
		return
	}

	c.mu.Lock()
	send := false
	gen := c.gen
	if c.state == StateConnected {
		// Skip the immediate send when the connect replay already
		// covers this channel.
		if _, dup := c.announced[channel]; !dup {
			c.announced[channel] = struct{}{}
			send = true
		}
	}
	c.mu.Unlock()

	if send {
		c.sendControl(gen, wire.TypeSubscribe, channel)
	}
}

// Unsubscribe removes a channel from the subscription set, notifying
// the server if currently connected.
func (c *Client) Unsubscribe(channel string) {
	if !c.dispatcher.RemoveChannel(channel) {
		return
	}

	c.mu.Lock()
	connected := c.state == StateConnected
	gen := c.gen
	delete(c.announced, channel)
	c.mu.Unlock()

	if connected {
		c.sendControl(gen, wire.TypeUnsubscribe, channel)
	}
}

// Channels returns the subscribed channels in registration order.
func (c *Client) Channels() []string {
	return c.dispatcher.Channels()
}

// On registers a handler for an envelope type. MQTT-style wildcard
// patterns are accepted ("metrics/+", "alerts/#"). Multiple handlers
// per type run in registration order; control envelopes (ping/pong)
// never reach them.
func (c *Client) On(envelopeType string, h Handler) {
	c.dispatcher.On(envelopeType, h)
}

// OnConnect registers a callback invoked after every successful
// connection, strictly after the subscription set was replayed.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
}

// OnDisconnect registers a callback invoked when an established
// connection is lost or closed. The error is nil for a requested
// disconnect.
func (c *Client) OnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = append(c.onDisconnect, fn)
	c.mu.Unlock()
}

// OnError registers a callback for terminal errors, currently only
// reconnect policy exhaustion.
func (c *Client) OnError(fn func(err error)) {
	c.mu.Lock()
	c.onError = append(c.onError, fn)
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a transport is currently open.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// IsConnecting reports whether a connection attempt is in flight or
// scheduled.
func (c *Client) IsConnecting() bool {
	s := c.State()
	return s == StateConnecting || s == StateReconnecting
}

// LastError returns the most recent fatal error, or nil. Populated
// while reconnecting and in StateFailed; cleared on every successful
// connection.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// AttemptCount returns the number of consecutive failed connection
// attempts. Reset to zero on every successful connection and by
// Reconnect.
func (c *Client) AttemptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// dial performs one connection attempt for the given generation.
func (c *Client) dial(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || !c.allowReconnect || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	base := c.baseCtx
	c.mu.Unlock()

	tr, err := c.dialer(base, c.endpoint)
	if err != nil {
		c.logger.Warn("Connection attempt failed",
			zap.String("url", c.endpoint.URL),
			zap.Error(err))
		c.transportLost(gen, &TransportError{Err: err})
		return
	}

	c.mu.Lock()
	if c.gen != gen || !c.allowReconnect || c.state != StateConnecting {
		// Disconnect won the race while we were dialing.
		c.mu.Unlock()
		tr.Close("stale connection")
		return
	}

	segCtx, cancel := context.WithCancel(base)
	c.cancel = cancel
	c.transport = tr
	c.writeCh = make(chan []byte, c.writeChannelSize)
	writeCh := c.writeCh
	// Snapshot the subscription set in the same critical section that
	// transitions to Connected. A Subscribe racing this transition
	// either lands in the snapshot or sends itself, never both.
	channels := c.dispatcher.Channels()
	c.announced = make(map[string]struct{}, len(channels))
	for _, channel := range channels {
		c.announced[channel] = struct{}{}
	}
	c.attempts = 0
	c.lastErr = nil
	c.setState(StateConnected)
	hb := newHeartbeatMonitor(c.heartbeatInterval, c.logger)
	c.hb = hb
	c.mu.Unlock()

	c.logger.Info("Connected", zap.String("url", c.endpoint.URL))
	c.metrics.connected(segCtx)

	go c.writeLoop(segCtx, gen, tr, writeCh)

	// Replay the subscription set before the connect signal and before
	// the read loop starts, so handlers registered beforehand never
	// miss channel traffic.
	for _, channel := range channels {
		c.sendControl(gen, wire.TypeSubscribe, channel)
	}

	go c.readLoop(segCtx, gen, tr)

	hb.Start(
		func() bool { return c.sendControl(gen, wire.TypePing, "") },
		func() {
			c.metrics.heartbeatTimeout(context.Background())
			c.transportLost(gen, ErrHeartbeatTimeout)
		},
	)

	c.emitConnect(gen)
}

// transportLost is the single failure path for dial errors, read/write
// errors, and heartbeat timeouts. It closes the current segment,
// consults the reconnect policy, and either schedules a retry or
// transitions to StateFailed.
func (c *Client) transportLost(gen uint64, cause error) {
	c.mu.Lock()
	if c.gen != gen || !c.allowReconnect {
		c.mu.Unlock()
		return
	}
	if c.state != StateConnecting && c.state != StateConnected {
		c.mu.Unlock()
		return
	}

	wasConnected := c.state == StateConnected
	hb := c.hb
	c.hb = nil
	cancel := c.cancel
	c.cancel = nil
	tr := c.transport
	c.transport = nil
	c.writeCh = nil
	c.announced = nil
	c.attempts++
	attempts := c.attempts
	c.lastErr = cause
	c.setState(StateReconnecting)
	c.gen++
	gen = c.gen
	c.mu.Unlock()

	if hb != nil {
		hb.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if tr != nil {
		tr.Close("connection lost")
	}

	if wasConnected {
		c.metrics.disconnected(context.Background(), "error")
		c.emitDisconnect(cause)
	}

	delay, ok := c.policy.NextDelay(attempts)
	if !ok {
		c.mu.Lock()
		if c.gen != gen || !c.allowReconnect || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		err := fmt.Errorf("%w after %d failed attempts: %v", ErrPolicyExhausted, attempts, cause)
		c.lastErr = err
		c.setState(StateFailed)
		c.mu.Unlock()

		c.logger.Error("Giving up on reconnection",
			zap.Int("attempts", attempts),
			zap.Error(cause))
		c.emitError(err)
		return
	}

	c.logger.Info("Scheduling reconnect",
		zap.Int("attempt", attempts),
		zap.Duration("delay", delay))
	c.metrics.reconnectAttempt(context.Background())

	c.mu.Lock()
	if c.gen != gen || !c.allowReconnect || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		// A Disconnect issued while we slept always wins.
		if c.gen != gen || !c.allowReconnect || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		c.reconnectTimer = nil
		c.setState(StateConnecting)
		c.gen++
		next := c.gen
		c.mu.Unlock()

		go c.dial(next)
	})
	c.mu.Unlock()
}

// readLoop delivers inbound frames for one connection segment. It is
// the only goroutine that dispatches to handlers, which is what makes
// the arrival-order guarantee hold.
func (c *Client) readLoop(ctx context.Context, gen uint64, tr Transport) {
	for {
		frame, err := tr.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("Transport closed", zap.Error(err))
				c.transportLost(gen, &TransportError{Err: err})
			}
			return
		}

		env, err := wire.Decode(frame)
		if err != nil {
			// A single malformed frame must not terminate a healthy
			// transport.
			c.logger.Warn("Dropping malformed frame", zap.Error(err))
			c.metrics.decodeFailure(ctx)
			continue
		}

		c.metrics.received(ctx, env.Type)

		switch env.Type {
		case wire.TypePong:
			c.pongReceived(gen)
		case wire.TypePing:
			// Symmetric liveness: answer server probes. Still never
			// visible to handlers.
			c.sendControl(gen, wire.TypePong, "")
		default:
			c.dispatcher.Dispatch(ctx, env)
		}
	}
}

// writeLoop drains the write queue onto the transport for one
// connection segment.
func (c *Client) writeLoop(ctx context.Context, gen uint64, tr Transport, writeCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-writeCh:
			if err := tr.Write(ctx, frame); err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("Failed to write frame", zap.Error(err))
					c.transportLost(gen, &TransportError{Err: err})
				}
				return
			}
		}
	}
}

// enqueue places an encoded frame on the current segment's write
// queue, refusing stale generations and full queues.
func (c *Client) enqueue(gen uint64, frame []byte) bool {
	c.mu.Lock()
	if c.gen != gen || c.state != StateConnected || c.writeCh == nil {
		c.mu.Unlock()
		return false
	}
	writeCh := c.writeCh
	c.mu.Unlock()

	select {
	case writeCh <- frame:
		return true
	default:
		c.logger.Warn("Write queue full, dropping frame")
		return false
	}
}

// sendControl encodes and enqueues a control envelope. For subscribe
// and unsubscribe the channel argument names the affected channel; for
// ping and pong it is empty.
func (c *Client) sendControl(gen uint64, controlType, channel string) bool {
	var data any
	switch controlType {
	case wire.TypeSubscribe, wire.TypeUnsubscribe:
		data = wire.SubscribePayload{Channels: []string{channel}}
	}

	frame, err := wire.Encode(controlType, data)
	if err != nil {
		c.logger.Warn("Failed to encode control envelope",
			zap.String("type", controlType),
			zap.Error(err))
		return false
	}
	return c.enqueue(gen, frame)
}

func (c *Client) pongReceived(gen uint64) {
	c.mu.Lock()
	hb := c.hb
	current := c.gen == gen
	c.mu.Unlock()

	if current && hb != nil {
		hb.OnPong()
	}
}

// emitConnect fires the connect callbacks for one segment. The guard
// shares the critical section with the callback snapshot so a
// Disconnect that already tore the segment down suppresses the signal
// instead of racing it.
func (c *Client) emitConnect(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || !c.allowReconnect || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	callbacks := make([]func(), len(c.onConnect))
	copy(callbacks, c.onConnect)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func (c *Client) emitDisconnect(err error) {
	c.mu.Lock()
	callbacks := make([]func(error), len(c.onDisconnect))
	copy(callbacks, c.onDisconnect)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(err)
	}
}

func (c *Client) emitError(err error) {
	c.mu.Lock()
	callbacks := make([]func(error), len(c.onError))
	copy(callbacks, c.onError)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(err)
	}
}
