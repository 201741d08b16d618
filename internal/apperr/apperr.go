// Package apperr classifies the terminal errors the push engine can
// surface to a caller. It is a leaf package so both the internal
// components and the public root package can depend on it without an
// import cycle.
package apperr

import "fmt"

// ErrorKind classifies a terminal error.
type ErrorKind int

const (
	// InvalidArgument marks a nil context, request, or tag passed to a
	// public operation.
	InvalidArgument ErrorKind = iota
	// AlreadyDisposed marks a Subscribe call made after the manager has
	// been shut down.
	AlreadyDisposed
	// CapacityExceeded marks a Subscribe call that would exceed the
	// configured maximum subscription count.
	CapacityExceeded
	// ResolverFailed marks a tag-resolution failure inside Subscribe.
	ResolverFailed
	// UpstreamFailed marks a failed upstream read inside the polling
	// driver. Logged and swallowed in loops; only surfaced when it
	// aborts an operation outright.
	UpstreamFailed
	// CallbackFailed marks a panic or error from a first/last
	// subscriber callback, propagated to the awaiting Subscribe caller.
	CallbackFailed
	// QueueFull marks a dropped publish due to a full subscriber queue.
	// Logged and swallowed; never surfaced as a terminal error.
	QueueFull
	// Cancelled marks a clean, caller- or shutdown-initiated stream
	// termination. Not an error condition: the value stream just ends.
	Cancelled
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case AlreadyDisposed:
		return "already_disposed"
	case CapacityExceeded:
		return "capacity_exceeded"
	case ResolverFailed:
		return "resolver_failed"
	case UpstreamFailed:
		return "upstream_failed"
	case CallbackFailed:
		return "callback_failed"
	case QueueFull:
		return "queue_full"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error wraps an ErrorKind with the underlying cause, satisfying
// errors.Is/errors.As against both the Error value and its Kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, apperr.New(kind, nil)) match any *Error with
// the same Kind, regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error of the given kind wrapping cause (which may be
// nil).
func New(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}
