package client

// ConnectionState is the lifecycle state of a Client. Exactly one
// state holds at any instant; transitions happen only inside the
// Client's own methods.
type ConnectionState int32

const (
	// StateDisconnected means no transport is open and no reconnect is
	// scheduled. The initial state, and the terminal state after
	// Disconnect().
	StateDisconnected ConnectionState = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateConnected means a transport is open and healthy.
	StateConnected

	// StateReconnecting means the transport was lost and a retry is
	// being scheduled or is pending.
	StateReconnecting

	// StateFailed means the reconnect policy is exhausted. Terminal
	// until the consumer calls Reconnect().
	StateFailed
)

// String returns the lowercase name of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
