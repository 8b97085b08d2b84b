package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error into one of five buckets callers can branch on.
type Kind int

const (
	KindTransient Kind = iota
	KindValidation
	KindAuthz
	KindResourceExhausted
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindValidation:
		return "validation"
	case KindAuthz:
		return "authorization"
	case KindResourceExhausted:
		return "resource-exhaustion"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps a cause with one of the five kinds; propagation throughout
// rez is by explicit return value, never panic/recover across subsystem
// boundaries.
type Error struct {
	Kind  Kind
	Cause error
	Msg   string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewTransient(msg string, cause error) error {
	return &Error{Kind: KindTransient, Msg: msg, Cause: errors.WithStack(cause)}
}

func NewValidation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func NewAuthz(msg string) error {
	return &Error{Kind: KindAuthz, Msg: msg}
}

func NewResourceExhausted(msg string) error {
	return &Error{Kind: KindResourceExhausted, Msg: msg}
}

func NewFatal(msg string, cause error) error {
	return &Error{Kind: KindFatal, Msg: msg, Cause: errors.WithStack(cause)}
}

// IsKind reports whether err (or something it wraps) is a *Error of the
// given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// MaxGridRetries bounds how many times the federation glue retries a
// transient grid-call failure, rediscovering the destination each time.
const MaxGridRetries = 5
