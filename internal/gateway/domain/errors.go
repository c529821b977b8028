package domain

import (
	"errors"
	"fmt"
)

// ErrorKind places a failure in the gateway's propagation taxonomy. The
// kind, not the message, decides what reaches the user:
//
//   - validation and auth failures surface as error notifications and abort
//     the operation,
//   - network failures surface to the caller awaiting the specific call,
//   - profile-sync and privilege-lookup failures are absorbed with safe
//     defaults and only logged.
type ErrorKind string

const (
	// KindValidation is a local input failure; the request never reached
	// the backend.
	KindValidation ErrorKind = "validation"
	// KindAuth is a backend-reported credential or account failure.
	KindAuth ErrorKind = "auth"
	// KindNetwork is the backend being unreachable, broken or timed out.
	KindNetwork ErrorKind = "network"
	// KindProfileSync is a best-effort profile mirror write failure.
	KindProfileSync ErrorKind = "profile_sync"
	// KindLookup is a privilege lookup failure; privilege defaults to false.
	KindLookup ErrorKind = "lookup"
)

// Error is a kinded gateway failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a kinded error wrapping an optional cause.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind of err, defaulting to KindNetwork for anything
// that is not a gateway error: unknown failures from remote calls are
// treated as the backend misbehaving, never as a user mistake.
func KindOf(err error) ErrorKind {
	var gw *Error
	if errors.As(err, &gw) {
		return gw.Kind
	}
	return KindNetwork
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var gw *Error
	return errors.As(err, &gw) && gw.Kind == kind
}
