package core

import (
	"errors"
	"fmt"
)

// FaultKind classifies every failure the engine reports. The kinds form a
// small closed taxonomy; concrete causes are carried as wrapped errors.
type FaultKind int

const (
	// FaultManifestation covers plugin or manifest loading and
	// initialization failures.
	FaultManifestation FaultKind = iota
	// FaultDisturbance covers recoverable runtime faults in a stream or
	// subscriber.
	FaultDisturbance
	// FaultBanishment covers teardown or security failures demanding the
	// actor be excluded.
	FaultBanishment
	// FaultCollapse covers unrecoverable process-level failures. It is the
	// only kind for which recovery is not possible.
	FaultCollapse
)

// String returns the wire label for the kind.
func (k FaultKind) String() string {
	switch k {
	case FaultManifestation:
		return "manifestation_failed"
	case FaultDisturbance:
		return "disturbance_detected"
	case FaultBanishment:
		return "banishment_required"
	case FaultCollapse:
		return "realm_collapse"
	default:
		return "unknown"
	}
}

// RecoveryPossible reports whether the hosting process can continue after a
// fault of this kind.
func (k FaultKind) RecoveryPossible() bool { return k != FaultCollapse }

// Fault is the structured error type for every engine failure. It carries the
// kind, a human-readable message, a severity scalar and the wrapped cause so
// callers can use errors.Is / errors.As on the chain.
type Fault struct {
	Kind     FaultKind
	Msg      string
	Severity float64
	Err      error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}

// Unwrap exposes the underlying cause.
func (f *Fault) Unwrap() error { return f.Err }

// Message returns the human-readable message without the kind prefix.
func (f *Fault) Message() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Msg, f.Err)
	}
	return f.Msg
}

// RecoveryPossible reports whether outer layers may retry or ignore.
func (f *Fault) RecoveryPossible() bool { return f.Kind.RecoveryPossible() }

// NewManifestationFault reports a plugin/manifest loading or init failure.
func NewManifestationFault(msg string, err error) *Fault {
	return &Fault{Kind: FaultManifestation, Msg: msg, Severity: 0.6, Err: err}
}

// NewDisturbanceFault reports a recoverable runtime fault.
func NewDisturbanceFault(msg string, err error) *Fault {
	return &Fault{Kind: FaultDisturbance, Msg: msg, Severity: 0.4, Err: err}
}

// NewBanishmentFault reports a teardown/security failure.
func NewBanishmentFault(msg string, err error) *Fault {
	return &Fault{Kind: FaultBanishment, Msg: msg, Severity: 0.8, Err: err}
}

// NewCollapseFault reports an unrecoverable process-level failure.
func NewCollapseFault(msg string, err error) *Fault {
	return &Fault{Kind: FaultCollapse, Msg: msg, Severity: 1, Err: err}
}

// AsFault extracts a *Fault from an error chain.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsKind reports whether err carries a fault of the given kind.
func IsKind(err error, kind FaultKind) bool {
	f, ok := AsFault(err)
	return ok && f.Kind == kind
}
