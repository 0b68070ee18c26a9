package client

import (
	"context"

	"github.com/insightwire/pulse/pkg/pulse/o11y"
)

// clientMetrics bundles the instruments the client records. A nil
// *clientMetrics is valid and records nothing, so call sites stay
// unconditional.
type clientMetrics struct {
	connects          o11y.Counter
	disconnects       o11y.Counter
	reconnectAttempts o11y.Counter
	heartbeatTimeouts o11y.Counter
	decodeFailures    o11y.Counter
	envelopesSent     o11y.Counter
	envelopesReceived o11y.Counter
	connectionState   o11y.Gauge
}

func newClientMetrics(provider o11y.MetricsProvider) *clientMetrics {
	if provider == nil {
		return nil
	}
	return &clientMetrics{
		connects:          provider.Counter("pulse_client_connects_total"),
		disconnects:       provider.Counter("pulse_client_disconnects_total"),
		reconnectAttempts: provider.Counter("pulse_client_reconnect_attempts_total"),
		heartbeatTimeouts: provider.Counter("pulse_client_heartbeat_timeouts_total"),
		decodeFailures:    provider.Counter("pulse_client_decode_failures_total"),
		envelopesSent:     provider.Counter("pulse_client_envelopes_sent_total"),
		envelopesReceived: provider.Counter("pulse_client_envelopes_received_total"),
		connectionState:   provider.Gauge("pulse_client_connection_state"),
	}
}

// stateChanged records the current state as a numeric gauge value
// (the ConnectionState enum ordering).
func (m *clientMetrics) stateChanged(state ConnectionState) {
	if m == nil {
		return
	}
	m.connectionState.Set(context.Background(), float64(state))
}

func (m *clientMetrics) connected(ctx context.Context) {
	if m == nil {
		return
	}
	m.connects.Add(ctx, 1)
}

func (m *clientMetrics) disconnected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.disconnects.Add(ctx, 1, o11y.Label{Key: "reason", Value: reason})
}

func (m *clientMetrics) reconnectAttempt(ctx context.Context) {
	if m == nil {
		return
	}
	m.reconnectAttempts.Add(ctx, 1)
}

func (m *clientMetrics) heartbeatTimeout(ctx context.Context) {
	if m == nil {
		return
	}
	m.heartbeatTimeouts.Add(ctx, 1)
}

func (m *clientMetrics) decodeFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.decodeFailures.Add(ctx, 1)
}

func (m *clientMetrics) sent(ctx context.Context, envelopeType string) {
	if m == nil {
		return
	}
	m.envelopesSent.Add(ctx, 1, o11y.Label{Key: "type", Value: envelopeType})
}

func (m *clientMetrics) received(ctx context.Context, envelopeType string) {
	if m == nil {
		return
	}
	m.envelopesReceived.Add(ctx, 1, o11y.Label{Key: "type", Value: envelopeType})
}
