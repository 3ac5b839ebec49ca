package engine

import (
	"errors"
	"fmt"
)

// FailureKind classifies the fatal error categories of a conversion run.
type FailureKind string

const (
	// FailureEnvironment is a missing or incompatible external runtime or
	// helper. Detected before any remote state exists, never retried.
	FailureEnvironment FailureKind = "environment"

	// FailureConfiguration is an invalid or missing required option,
	// detected before Setup touches the remote engine.
	FailureConfiguration FailureKind = "configuration"

	// FailureRemote is a helper invocation that exited non-zero or returned
	// a result missing a required field.
	FailureRemote FailureKind = "remote"

	// FailureProcess is an export daemon that could not be started or would
	// not terminate.
	FailureProcess FailureKind = "process"
)

// Error is a fatal conversion error. All fatal errors unwind to the top of
// the run; the cleanup guard reclaims resources but never suppresses the
// original error.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFailure reports whether err is (or wraps) a fatal conversion error of the
// given kind.
func IsFailure(err error, kind FailureKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func environmentErrorf(format string, args ...any) *Error {
	return &Error{Kind: FailureEnvironment, Err: fmt.Errorf(format, args...)}
}

func configurationErrorf(format string, args ...any) *Error {
	return &Error{Kind: FailureConfiguration, Err: fmt.Errorf(format, args...)}
}

func remoteErrorf(format string, args ...any) *Error {
	return &Error{Kind: FailureRemote, Err: fmt.Errorf(format, args...)}
}

func processErrorf(format string, args ...any) *Error {
	return &Error{Kind: FailureProcess, Err: fmt.Errorf(format, args...)}
}
