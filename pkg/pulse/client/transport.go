package client

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
)

// Transport is a single live connection to the push endpoint. The
// Client is the only component that opens or closes one.
type Transport interface {
	// Read blocks until the next text frame arrives or the transport
	// fails. A returned error is always fatal to this transport.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one text frame.
	Write(ctx context.Context, frame []byte) error

	// Close tears the connection down. Safe to call more than once.
	Close(reason string) error
}

// Dialer opens a Transport. The default dialer speaks WebSocket via
// coder/websocket; tests substitute scripted in-memory transports.
type Dialer func(ctx context.Context, endpoint Endpoint) (Transport, error)

// Endpoint is the immutable connection configuration, fixed at client
// construction.
type Endpoint struct {
	URL          string
	Subprotocols []string
	Headers      map[string][]string
	DialTimeout  time.Duration

	// AuthProvider, when set, supplies the Authorization header value
	// for each handshake.
	AuthProvider AuthorizationProvider
}

// AuthorizationProvider returns an authorization header value (e.g.
// "Bearer token123") or an error if one cannot be obtained.
type AuthorizationProvider func(ctx context.Context) (string, error)

// TransportError wraps a socket-level failure. It is always fatal to
// the current transport and drives a reconnect.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// websocketTransport adapts a coder/websocket connection.
type websocketTransport struct {
	conn *websocket.Conn
}

func (t *websocketTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *websocketTransport) Write(ctx context.Context, frame []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, frame)
}

func (t *websocketTransport) Close(reason string) error {
	return t.conn.Close(websocket.StatusNormalClosure, reason)
}

// dialWebsocket is the default Dialer.
func dialWebsocket(ctx context.Context, endpoint Endpoint) (Transport, error) {
	dialCtx := ctx
	if endpoint.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, endpoint.DialTimeout)
		defer cancel()
	}

	opts := &websocket.DialOptions{
		Subprotocols: endpoint.Subprotocols,
	}

	if endpoint.Headers != nil {
		opts.HTTPHeader = make(map[string][]string, len(endpoint.Headers))
		for key, values := range endpoint.Headers {
			opts.HTTPHeader[key] = values
		}
	}

	if endpoint.AuthProvider != nil {
		authValue, err := endpoint.AuthProvider(dialCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to get authorization: %w", err)
		}
		if authValue != "" {
			if opts.HTTPHeader == nil {
				opts.HTTPHeader = make(map[string][]string)
			}
			opts.HTTPHeader["Authorization"] = []string{authValue}
		}
	}

	conn, _, err := websocket.Dial(dialCtx, endpoint.URL, opts)
	if err != nil {
		return nil, err
	}

	return &websocketTransport{conn: conn}, nil
}
