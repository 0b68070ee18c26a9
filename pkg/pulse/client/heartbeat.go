package client

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// heartbeatMonitor detects silently-dead transports. Independently of
// application traffic it sends a ping envelope every interval and
// expects a pong before the next tick. A tick that finds the previous
// probe still unanswered is a missed heartbeat: onTimeout fires once
// and the monitor stops itself.
//
// The monitor knows nothing about reconnection; the state machine
// decides what a timeout means.
type heartbeatMonitor struct {
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending bool
	stopped bool
	stopCh  chan struct{}
}

func newHeartbeatMonitor(interval time.Duration, logger *zap.Logger) *heartbeatMonitor {
	return &heartbeatMonitor{
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic probe loop. send must enqueue a ping on
// the active transport and report whether it was accepted; onTimeout
// is invoked at most once, from the monitor's own goroutine.
func (m *heartbeatMonitor) Start(send func() bool, onTimeout func()) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.mu.Lock()
				if m.stopped {
					m.mu.Unlock()
					return
				}
				if m.pending {
					// The previous probe was never answered.
					m.mu.Unlock()
					m.logger.Warn("Heartbeat probe went unanswered, treating transport as dead")
					onTimeout()
					return
				}
				m.pending = true
				m.mu.Unlock()

				if !send() {
					m.logger.Warn("Failed to send heartbeat probe")
				}
			}
		}
	}()
}

// OnPong clears the pending probe. It must be called before any pong
// envelope would reach consumer handlers (it never does; the read loop
// consumes pongs).
func (m *heartbeatMonitor) OnPong() {
	m.mu.Lock()
	m.pending = false
	m.mu.Unlock()
}

// Stop cancels the probe loop and clears any pending probe. Idempotent.
func (m *heartbeatMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	m.pending = false
	close(m.stopCh)
}
