// Package logging builds the hclog loggers used across plugcore.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// ErrInvalidLevel is returned for an unknown log level name.
var ErrInvalidLevel = errors.New("invalid log level")

// Options configures a logger.
type Options struct {
	// Name is the root logger name. Components derive named sub-loggers.
	Name string
	// Level is the minimum level written.
	Level hclog.Level
	// JSON selects JSON output instead of the human-readable format.
	JSON bool
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
}

// New creates a logger from opts.
func New(opts Options) hclog.Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	level := opts.Level
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       opts.Name,
		Level:      level,
		Output:     output,
		JSONFormat: opts.JSON,
	})
}

// Discard returns a logger that drops everything.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}

// ParseLevel parses a level name. Names are case-insensitive and "warning"
// is accepted for warn.
func ParseLevel(s string) (hclog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return hclog.Trace, nil
	case "debug":
		return hclog.Debug, nil
	case "info", "":
		return hclog.Info, nil
	case "warn", "warning":
		return hclog.Warn, nil
	case "error":
		return hclog.Error, nil
	case "off":
		return hclog.Off, nil
	default:
		return hclog.NoLevel, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}
