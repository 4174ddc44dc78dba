package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when execution times out.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrFunctionNotFound is returned when calling a function that is not defined.
	ErrFunctionNotFound = errors.New("lua function not found")

	// ErrNoSource is reported for a descriptor with neither a file nor code.
	ErrNoSource = errors.New("lua plugin has no source")
)
