package config

import (
	"errors"
	"fmt"

	"github.com/dshills/plugcore/internal/config/loader"
	"github.com/dshills/plugcore/internal/logging"
)

// Errors returned by configuration operations.
var (
	// ErrFileNotFound indicates an explicitly requested file doesn't exist.
	ErrFileNotFound = errors.New("config file not found")

	// ErrInvalidLogLevel indicates an unknown [log] level.
	ErrInvalidLogLevel = logging.ErrInvalidLevel

	// ErrInvalidValue indicates a setting outside its allowed range.
	ErrInvalidValue = errors.New("invalid value")
)

// ParseError represents an error while parsing or decoding a configuration
// file.
type ParseError = loader.ParseError

// ValueError reports an invalid setting.
type ValueError struct {
	// Path is the setting, e.g. "lua.timeout".
	Path string
	// Reason describes what is wrong with the value.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying error, or ErrInvalidValue.
func (e *ValueError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidValue
}
