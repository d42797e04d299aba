// Package fault is the closed set of failure kinds a tracking client can observe.
// Acquisition kinds come from the device, dispatch kinds from the server round trip.
package fault

import (
	"context"
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	PermissionDenied
	PositionUnavailable
	Timeout
	TransportFailure
	Rejected
	MissingCredential
)

var kindNames = map[Kind]string{
	Unknown:             "unknown",
	PermissionDenied:    "permission_denied",
	PositionUnavailable: "position_unavailable",
	Timeout:             "timeout",
	TransportFailure:    "transport_failure",
	Rejected:            "rejected",
	MissingCredential:   "missing_credential",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText lets kinds show up by name in JSON status reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Acquisition reports whether the kind originates at the location device.
func (k Kind) Acquisition() bool {
	switch k {
	case PermissionDenied, PositionUnavailable, Timeout, Unknown:
		return true
	}
	return false
}

// Message is the text shown to a person when this kind of failure happens.
func (k Kind) Message() string {
	switch k {
	case PermissionDenied:
		return "User denied the request for geolocation"
	case PositionUnavailable:
		return "Location information is unavailable"
	case Timeout:
		return "The request to get user location timed out"
	case TransportFailure:
		return "Failed to send location update"
	case Rejected:
		return "The server rejected the location update"
	case MissingCredential:
		return "Missing CSRF token, cannot send location update"
	default:
		return "An unknown error occurred"
	}
}

// Error is a classified failure. Detail is free text for logs,
// Err is the underlying cause, if any.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, err error) *Error {
	e := &Error{Kind: kind, Err: err}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, fault.New(fault.Timeout, "")) or compare against the Err* values below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnknown             = New(Unknown, "")
	ErrPermissionDenied    = New(PermissionDenied, "")
	ErrPositionUnavailable = New(PositionUnavailable, "")
	ErrTimeout             = New(Timeout, "")
	ErrTransportFailure    = New(TransportFailure, "")
	ErrRejected            = New(Rejected, "")
	ErrMissingCredential   = New(MissingCredential, "")
)

// KindOf classifies any error. Nil is Unknown; callers check for nil first.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Unknown
}

// Classify returns err as an *Error, wrapping unclassified errors with KindOf.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return Wrap(KindOf(err), err)
}
