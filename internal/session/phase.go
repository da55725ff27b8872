package session

import "sync/atomic"

// Phase is the session lifecycle state. Transitions only move forward.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRegistering
	PhaseAwaitingPeers
	PhaseHolePunching
	PhaseStreaming
	PhaseClosing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRegistering:
		return "registering"
	case PhaseAwaitingPeers:
		return "awaiting-peers"
	case PhaseHolePunching:
		return "hole-punching"
	case PhaseStreaming:
		return "streaming"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StopFlag is the cooperative stop signal. The session polls it; setting
// it is the only way a caller stops a running session.
type StopFlag struct {
	v atomic.Bool
}

// Set requests the session to stop.
func (f *StopFlag) Set() {
	f.v.Store(true)
}

// IsSet reports whether a stop has been requested.
func (f *StopFlag) IsSet() bool {
	return f.v.Load()
}
