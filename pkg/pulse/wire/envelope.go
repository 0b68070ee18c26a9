// Package wire defines the envelope format exchanged with the pulse
// push endpoint: JSON text frames of the form
// {"type": ..., "data": ..., "timestamp": ...}.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reserved control types. Control envelopes are consumed by the
// connection client itself and are never delivered to handlers.
const (
	TypePing        = "ping"        // client -> server liveness probe
	TypePong        = "pong"        // server -> client probe reply
	TypeSubscribe   = "subscribe"   // client -> server channel subscription
	TypeUnsubscribe = "unsubscribe" // client -> server channel unsubscription
)

// Envelope is the typed unit of wire communication.
type Envelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscribePayload is the data carried by subscribe and unsubscribe
// envelopes.
type SubscribePayload struct {
	Channels []string `json:"channels"`
}

// IsControl reports whether typ is one of the reserved control types.
func IsControl(typ string) bool {
	switch typ {
	case TypePing, TypePong, TypeSubscribe, TypeUnsubscribe:
		return true
	}
	return false
}

// EncodeError indicates that an envelope could not be serialized.
type EncodeError struct {
	Type string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode %q envelope: %v", e.Type, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError indicates a malformed inbound frame. Decode failures are
// non-fatal to the connection: the frame is logged and dropped.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode envelope: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode builds an envelope of the given type around data, stamps it
// with the current time, and serializes it to a JSON text frame. It
// fails only if typ is empty or data cannot be serialized.
func Encode(typ string, data any) ([]byte, error) {
	return EncodeAt(typ, data, time.Now().UTC())
}

// EncodeAt is Encode with an explicit timestamp.
func EncodeAt(typ string, data any, at time.Time) ([]byte, error) {
	if typ == "" {
		return nil, &EncodeError{Type: typ, Err: fmt.Errorf("envelope type must not be empty")}
	}

	frame, err := json.Marshal(Envelope{
		Type:      typ,
		Data:      data,
		Timestamp: at,
	})
	if err != nil {
		return nil, &EncodeError{Type: typ, Err: err}
	}

	return frame, nil
}

// Decode parses a JSON text frame into an Envelope. A frame that is
// not valid JSON, or whose type field is empty, yields a *DecodeError.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, &DecodeError{Err: err}
	}

	if env.Type == "" {
		return Envelope{}, &DecodeError{Err: fmt.Errorf("envelope type is empty")}
	}

	return env, nil
}
