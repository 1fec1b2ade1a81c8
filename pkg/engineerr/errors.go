// Package engineerr defines the engine's error kinds (spec section 7).
package engineerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the engine's error kinds.
type Kind string

const (
	KindIoMissing                 Kind = "IoMissing"
	KindIoBadFormat               Kind = "IoBadFormat"
	KindIoTruncated               Kind = "IoTruncated"
	KindIoWriteFailed             Kind = "IoWriteFailed"
	KindBufferExhausted           Kind = "BufferExhausted"
	KindUserKernelPanic           Kind = "UserKernelPanic"
	KindSchedulerInvariantViolated Kind = "SchedulerInvariantViolated"
	KindUsageError                Kind = "UsageError"
)

// GID is a fragment identifier, duplicated here (rather than imported)
// so this package has no dependency on the graph package — errors must
// be constructible from any layer, including IO, before a Fragment exists.
type GID = int64

// NoGID is used when an error has no associated fragment.
const NoGID GID = -1

// EngineError is the engine's error type. It carries the failing fragment's
// GID so the CLI's single-line diagnostic (spec section 7) can name both
// the error kind and the offending GID.
type EngineError struct {
	Kind    Kind
	GID     GID
	Message string
	Err     error
}

// Error implements the error interface. The format matches the
// "single-line diagnostic naming the error kind and the offending GID"
// contract: "<Kind> gid=<gid-or-dash>: <message>[: <cause>]".
func (e *EngineError) Error() string {
	gidStr := "-"
	if e.GID != NoGID {
		gidStr = fmt.Sprintf("%d", e.GID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s gid=%s: %s: %v", e.Kind, gidStr, e.Message, e.Err)
	}
	return fmt.Sprintf("%s gid=%s: %s", e.Kind, gidStr, e.Message)
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches on Kind only, so errors.Is(err, New(KindIoMissing, ...)) works
// regardless of GID or message.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an EngineError with no associated fragment.
func New(kind Kind, message string) *EngineError {
	return &EngineError{Kind: kind, GID: NoGID, Message: message}
}

// NewForGID creates an EngineError naming the offending fragment.
func NewForGID(kind Kind, gid GID, message string) *EngineError {
	return &EngineError{Kind: kind, GID: gid, Message: message}
}

// Wrap wraps an existing error with an EngineError naming the offending
// fragment.
func Wrap(kind Kind, gid GID, message string, err error) *EngineError {
	return &EngineError{Kind: kind, GID: gid, Message: message, Err: err}
}

// Sentinel kind markers used with errors.Is.
var (
	ErrIoMissing                 = New(KindIoMissing, "")
	ErrIoBadFormat               = New(KindIoBadFormat, "")
	ErrIoTruncated               = New(KindIoTruncated, "")
	ErrIoWriteFailed             = New(KindIoWriteFailed, "")
	ErrBufferExhausted           = New(KindBufferExhausted, "")
	ErrUserKernelPanic           = New(KindUserKernelPanic, "")
	ErrSchedulerInvariantViolated = New(KindSchedulerInvariantViolated, "")
	ErrUsageError                 = New(KindUsageError, "")
)

// IsIoError reports whether err is any of the IO error kinds.
func IsIoError(err error) bool {
	return errors.Is(err, ErrIoMissing) || errors.Is(err, ErrIoBadFormat) ||
		errors.Is(err, ErrIoTruncated) || errors.Is(err, ErrIoWriteFailed)
}

// IsFatal reports whether err must abort the run per spec section 7:
// everything except BufferExhausted, which is always resolved by waiting
// and must never be surfaced to the user.
func IsFatal(err error) bool {
	return !errors.Is(err, ErrBufferExhausted)
}

// GetKind extracts the Kind from an error, or "" if err is not an
// EngineError.
func GetKind(err error) Kind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// GetGID extracts the offending GID from an error, or NoGID if unknown.
func GetGID(err error) GID {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.GID
	}
	return NoGID
}

// ExitCode maps an error's kind to the CLI exit code contract in spec
// section 6: 0 fixpoint, 1 usage error, 2 IO error, 3 internal/compute
// error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetKind(err) {
	case KindUsageError:
		return 1
	case KindIoMissing, KindIoBadFormat, KindIoTruncated, KindIoWriteFailed:
		return 2
	default:
		return 3
	}
}
