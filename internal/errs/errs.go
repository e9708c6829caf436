// Package errs defines the error taxonomy shared by every layer of the
// storage engine. Kinds map directly onto the propagation rules in the
// design: Input/KeyNotFound/IO unwind to the API boundary and are handled
// by the caller; Internal/BadAddress/OutOfDiskSpace are fatal and leave the
// owning fixture unusable.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller is expected to react.
type Kind uint8

const (
	// KindInternal marks an invariant violation; unsafe to continue.
	KindInternal Kind = iota
	// KindInput marks a caller-supplied value that was invalid.
	KindInput
	// KindKeyNotFound marks a lookup by key that failed.
	KindKeyNotFound
	// KindIO marks a transient storage failure.
	KindIO
	// KindOutOfDiskSpace marks a failed write due to exhausted storage.
	KindOutOfDiskSpace
	// KindBadAddress marks a v-object address that is out of bounds.
	KindBadAddress
	// KindClassNotFound marks a request for an unregistered host type.
	KindClassNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "Internal"
	case KindInput:
		return "Input"
	case KindKeyNotFound:
		return "KeyNotFound"
	case KindIO:
		return "IO"
	case KindOutOfDiskSpace:
		return "OutOfDiskSpace"
	case KindBadAddress:
		return "BadAddress"
	case KindClassNotFound:
		return "ClassNotFound"
	default:
		return "Unknown"
	}
}

// Fatal reports whether errors of this kind invalidate the owning fixture.
func (k Kind) Fatal() bool {
	switch k {
	case KindInternal, KindOutOfDiskSpace, KindBadAddress:
		return true
	default:
		return false
	}
}

// Error is a classified error carrying a Kind alongside the usual message
// chain. Use errors.As to recover the Kind from a wrapped error.
type Error struct {
	Kind Kind
	Op   string // component/operation that raised the error, e.g. "pager.mapRange"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error, wrapping cause (which may be nil).
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Newf is like New but formats the message as the cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to KindInternal for errors
// that were never classified (an unclassified error is itself a bug).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Sentinel errors for equality checks (errors.Is) on common conditions.
var (
	ErrClosed              = errors.New("fixture or prefix is closed")
	ErrDoubleFree           = errors.New("address already free")
	ErrInstanceIDExhausted  = errors.New("slab instance id space exhausted")
	ErrNotDirty             = errors.New("updateStateNum requires a clean lock")
	ErrWriteNotDeclared     = errors.New("modify() called without write access declared")
	ErrUnknownStorageClass  = errors.New("unrecognized storage class tag")
)
