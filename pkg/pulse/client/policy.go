package client

import (
	"math/rand"
	"time"
)

// ReconnectPolicy decides whether, and after what delay, another
// connection attempt is made. It is a pure function of the attempt
// count and the configured limits; it performs no I/O and keeps no
// state, so the state machine owns the attempt counter.
type ReconnectPolicy struct {
	// MaxAttempts is the ceiling on consecutive failed attempts.
	// Once the attempt count reaches it, NextDelay declines.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// Factor multiplies the delay for each further attempt. Values at
	// or below 1 keep the delay fixed at BaseDelay.
	Factor float64

	// MaxDelay caps the grown delay when Factor > 1. Zero means no cap.
	MaxDelay time.Duration

	// Jitter randomizes the delay by the given fraction (0-1).
	Jitter float64
}

// DefaultReconnectPolicy mirrors the push endpoint's historical client
// behavior: up to five attempts, a fixed three second delay between
// them.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: 5,
		BaseDelay:   3 * time.Second,
		Factor:      1.0,
	}
}

// NextDelay returns the delay before retry number attempt+1, given
// that attempt failures have already occurred. It returns false once
// attempt >= MaxAttempts, meaning the policy is exhausted and no
// further retries may be made.
func (p ReconnectPolicy) NextDelay(attempt int) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}

	base := p.BaseDelay
	if base <= 0 {
		base = 3 * time.Second
	}

	wait := base
	if p.Factor > 1 {
		for i := 1; i < attempt; i++ {
			next := time.Duration(float64(wait) * p.Factor)
			if p.MaxDelay > 0 && next > p.MaxDelay {
				wait = p.MaxDelay
				break
			}
			wait = next
		}
	}

	if p.Jitter <= 0 {
		return wait, true
	}
	jitter := p.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	return wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta), true
}
