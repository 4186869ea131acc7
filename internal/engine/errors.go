package engine

import (
	"errors"
	"fmt"
)

// dependencyUnavailableError signals that the native engine library is not
// present in this build or could not be loaded at runtime.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing engine.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}

// DecodeError is returned by Context.Decode when the engine reports a
// non-zero status.
type DecodeError struct {
	Code int
}

func (e DecodeError) Error() string {
	switch e.Code {
	case 1:
		return "decode: no KV slot available for batch"
	case 2:
		return "decode: aborted"
	default:
		return fmt.Sprintf("decode failed: status %d", e.Code)
	}
}
