// Package taghub is the root of the snapshot push engine: a real-time
// tag-value distribution hub built from a subscription manager,
// snapshot cache, subscription channel, topic index, polling driver,
// and their tag-resolution and storage collaborators.
package taghub

import "github.com/adred-codev/taghub/internal/apperr"

// ErrorKind classifies the terminal errors the push engine can surface
// to a caller. It is a re-export of apperr.ErrorKind so callers never
// need to import the internal package directly.
type ErrorKind = apperr.ErrorKind

const (
	ErrInvalidArgument  = apperr.InvalidArgument
	ErrAlreadyDisposed  = apperr.AlreadyDisposed
	ErrCapacityExceeded = apperr.CapacityExceeded
	ErrResolverFailed   = apperr.ResolverFailed
	ErrUpstreamFailed   = apperr.UpstreamFailed
	ErrCallbackFailed   = apperr.CallbackFailed
	ErrQueueFull        = apperr.QueueFull
	ErrCancelled        = apperr.Cancelled
)

// Error wraps an ErrorKind with the underlying cause, satisfying
// errors.Is/errors.As against both the Error value and its Kind.
type Error = apperr.Error

// NewError builds an *Error of the given kind wrapping cause (which
// may be nil).
func NewError(kind ErrorKind, cause error) *Error {
	return apperr.New(kind, cause)
}
