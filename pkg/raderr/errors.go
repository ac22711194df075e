// Package raderr defines the error kinds shared by every layer of the
// client (codec, cephx, msgr, monclient, objclient). It is a leaf
// package with no internal dependencies, so it can be imported by every
// other package here without causing import cycles.
package raderr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the retry/propagation policy that applies
// to it, independent of which component raised it.
type Kind int

const (
	// KindProtocol covers unexpected tags, malformed frames, CRC
	// mismatches, signature mismatches, and incompatible versions.
	KindProtocol Kind = iota + 1

	// KindAuthentication covers missing keys, bad secrets, rejected
	// entities, signature failures, and expired tickets with no
	// renewal path.
	KindAuthentication

	// KindCryptographic covers key-length mismatches, padding
	// failures, and AEAD tag mismatches.
	KindCryptographic

	// KindMap covers missing epochs, fsid mismatches, and map decode
	// failures.
	KindMap

	// KindPlacement covers missing pools, no OSDs available, and
	// CRUSH failures.
	KindPlacement

	// KindTransport covers TCP errors and unexpected EOF.
	KindTransport

	// KindTimeout covers operations that exceeded their wall clock
	// budget.
	KindTimeout

	// KindThrottle covers throttle acquisitions cancelled by shutdown.
	KindThrottle

	// KindState covers operations attempted on an uninitialized or
	// shut-down client.
	KindState
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "Protocol"
	case KindAuthentication:
		return "Authentication"
	case KindCryptographic:
		return "Cryptographic"
	case KindMap:
		return "Map"
	case KindPlacement:
		return "Placement"
	case KindTransport:
		return "Transport"
	case KindTimeout:
		return "Timeout"
	case KindThrottle:
		return "Throttle"
	case KindState:
		return "State"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Error is the concrete error type returned across component
// boundaries. Component and State name the layer and its current state
// at the time of the failure so the kind is determinable without
// further queries into the caller. Entity names the peer involved, when
// there is one.
type Error struct {
	Kind      Kind
	Component string
	State     string
	Entity    string
	Message   string
	Err       error // wrapped lower-layer cause, may be nil
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s[%s]", e.Kind, e.Component)
	if e.State != "" {
		s += fmt.Sprintf(" state=%s", e.State)
	}
	if e.Entity != "" {
		s += fmt.Sprintf(" entity=%s", e.Entity)
	}
	s += ": " + e.Message
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with this error's Kind, so
// errors.Is(err, raderr.New(raderr.KindTimeout, "", "")) matches any
// Timeout error in err's chain.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs an Error. component is the package raising it (e.g.
// "msgr", "cephx", "monclient", "objclient"). A state label is attached
// with WithState and a peer with WithEntity.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap constructs an Error that carries a lower-layer cause.
func Wrap(kind Kind, component, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Err: cause}
}

// WithState returns a shallow copy of e with State set.
func (e *Error) WithState(state string) *Error {
	c := *e
	c.State = state
	return &c
}

// WithEntity returns a shallow copy of e with Entity set.
func (e *Error) WithEntity(entity string) *Error {
	c := *e
	c.Entity = entity
	return &c
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and
// false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
