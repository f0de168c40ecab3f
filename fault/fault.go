// Package fault holds the error taxonomy shared by every wrapper in wrapkit.
//
// Callers classify with errors.Is against the sentinels and extract details
// with errors.As against the typed errors.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid policy parameters. Only returned by constructors.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrTransient marks a recoverable I/O or network failure.
	ErrTransient = errors.New("transient failure")

	// ErrWorkerFailure marks a range worker that terminated abnormally.
	ErrWorkerFailure = errors.New("worker failure")

	// ErrCacheKey marks call arguments that cannot be turned into a stable key.
	ErrCacheKey = errors.New("arguments not representable as a cache key")
)

// ConfigError describes a rejected configuration parameter.
type ConfigError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s=%v: %s", ErrConfiguration, e.Param, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// Invalid builds a *ConfigError.
func Invalid(param string, value any, reason string) error {
	return &ConfigError{Param: param, Value: value, Reason: reason}
}

// WorkerError reports the failure of one sub-range worker.
type WorkerError struct {
	Index      int
	Start, End float64
	Err        error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("%v: worker %d [%g, %g): %v", ErrWorkerFailure, e.Index, e.Start, e.End, e.Err)
}

func (e *WorkerError) Unwrap() []error { return []error{ErrWorkerFailure, e.Err} }

type transientError struct {
	err error
}

func (e transientError) Error() string { return e.err.Error() }

func (e transientError) Unwrap() []error { return []error{ErrTransient, e.err} }

// Transient marks err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// IsTransient reports whether err was marked with Transient or wraps ErrTransient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
