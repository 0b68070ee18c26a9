package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/insightwire/pulse/pkg/pulse/o11y"
)

// ClientBuilder provides a fluent interface for building pulse
// connection clients.
type ClientBuilder struct {
	url               string
	subprotocols      []string
	headers           map[string][]string
	authProvider      AuthorizationProvider
	dialTimeout       time.Duration
	policy            ReconnectPolicy
	heartbeatInterval time.Duration
	writeChannelSize  int
	logger            *zap.Logger
	dialer            Dialer
	metricsProvider   o11y.MetricsProvider
}

// NewClient creates a new client builder with the default reconnect
// policy (5 attempts, fixed 3s delay) and a 30s heartbeat.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		dialTimeout:       30 * time.Second,
		policy:            DefaultReconnectPolicy(),
		heartbeatInterval: 30 * time.Second,
		writeChannelSize:  100,
		logger:            zap.NewNop(),
		dialer:            dialWebsocket,
	}
}

// WithURL sets the push endpoint URL to connect to (ws:// or wss://).
func (b *ClientBuilder) WithURL(url string) *ClientBuilder {
	b.url = url
	return b
}

// WithSubprotocols sets the WebSocket subprotocols offered during the
// handshake.
func (b *ClientBuilder) WithSubprotocols(subprotocols ...string) *ClientBuilder {
	b.subprotocols = subprotocols
	return b
}

// WithLogger sets the logger for the client.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout sets the timeout for establishing each connection.
func (b *ClientBuilder) WithDialTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithReconnectPolicy replaces the whole reconnect policy.
func (b *ClientBuilder) WithReconnectPolicy(policy ReconnectPolicy) *ClientBuilder {
	b.policy = policy
	return b
}

// WithMaxReconnectAttempts sets the ceiling on consecutive failed
// connection attempts.
func (b *ClientBuilder) WithMaxReconnectAttempts(attempts int) *ClientBuilder {
	if attempts > 0 {
		b.policy.MaxAttempts = attempts
	}
	return b
}

// WithReconnectDelay sets the base delay between reconnect attempts.
func (b *ClientBuilder) WithReconnectDelay(delay time.Duration) *ClientBuilder {
	if delay > 0 {
		b.policy.BaseDelay = delay
	}
	return b
}

// WithHeartbeatInterval sets the liveness probe period.
func (b *ClientBuilder) WithHeartbeatInterval(interval time.Duration) *ClientBuilder {
	if interval > 0 {
		b.heartbeatInterval = interval
	}
	return b
}

// WithWriteChannelSize sets the buffer size for the outbound write
// queue. Default is 100.
func (b *ClientBuilder) WithWriteChannelSize(size int) *ClientBuilder {
	if size > 0 {
		b.writeChannelSize = size
	}
	return b
}

// WithAuthorization sets a static Authorization header value sent with
// the WebSocket handshake.
func (b *ClientBuilder) WithAuthorization(authHeader string) *ClientBuilder {
	b.authProvider = func(ctx context.Context) (string, error) {
		return authHeader, nil
	}
	return b
}

// WithAuthorizationProvider sets an authorization provider called
// before each handshake.
func (b *ClientBuilder) WithAuthorizationProvider(provider AuthorizationProvider) *ClientBuilder {
	b.authProvider = provider
	return b
}

// WithHeader sets a single HTTP header for the WebSocket handshake.
func (b *ClientBuilder) WithHeader(key, value string) *ClientBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	b.headers[key] = []string{value}
	return b
}

// WithHeaders merges custom HTTP headers for the WebSocket handshake.
func (b *ClientBuilder) WithHeaders(headers map[string][]string) *ClientBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	for key, values := range headers {
		b.headers[key] = values
	}
	return b
}

// WithDialer replaces the transport dialer. Mainly useful for tests
// that substitute in-memory transports.
func (b *ClientBuilder) WithDialer(dialer Dialer) *ClientBuilder {
	if dialer != nil {
		b.dialer = dialer
	}
	return b
}

// WithMetrics sets a metrics provider for connection instrumentation.
func (b *ClientBuilder) WithMetrics(provider o11y.MetricsProvider) *ClientBuilder {
	b.metricsProvider = provider
	return b
}

// Build validates the configuration and returns a new Client in
// StateDisconnected. Configuration errors are the only errors this
// package reports synchronously.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	return &Client{
		endpoint: Endpoint{
			URL:          b.url,
			Subprotocols: b.subprotocols,
			Headers:      b.headers,
			DialTimeout:  b.dialTimeout,
			AuthProvider: b.authProvider,
		},
		policy:            b.policy,
		heartbeatInterval: b.heartbeatInterval,
		writeChannelSize:  b.writeChannelSize,
		logger:            b.logger,
		dialer:            b.dialer,
		metrics:           newClientMetrics(b.metricsProvider),
		dispatcher:        newDispatcher(b.logger),
		state:             StateDisconnected,
	}, nil
}

// IsValid checks that all required configuration is present.
func (b *ClientBuilder) IsValid() error {
	if b.url == "" {
		return fmt.Errorf("URL is required")
	}

	parsed, err := url.Parse(b.url)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("URL scheme must be ws or wss, got %q", parsed.Scheme)
	}

	if b.policy.MaxAttempts <= 0 {
		return fmt.Errorf("reconnect policy must allow at least one attempt")
	}

	return nil
}
