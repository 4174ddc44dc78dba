package plugin

// State represents where a plugin is in its loading lifecycle.
type State int

// Plugin states.
const (
	// StateUnloaded - Plugin is not known to the collection.
	StateUnloaded State = iota

	// StatePending - Plugin is planned and waiting for its dependencies.
	StatePending

	// StateConstructing - Plugin constructor is running.
	StateConstructing

	// StateLoaded - Plugin is registered in the collection.
	StateLoaded

	// StateFailed - Plugin constructor returned an error.
	StateFailed

	// StateAborted - Plugin was never constructed because its load failed.
	StateAborted
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StatePending:
		return "pending"
	case StateConstructing:
		return "constructing"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if no further transition can happen.
func (s State) IsTerminal() bool {
	return s == StateLoaded || s == StateFailed || s == StateAborted
}
