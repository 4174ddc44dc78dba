package plugin

// EventHandler handles collection events.
// Handlers run synchronously on the loading goroutine, must be non-blocking
// and should not call Load. Panics in handlers are recovered.
type EventHandler func(event Event)

// Event represents a collection event.
type Event struct {
	Type EventType
	// Load is the correlation ID of the Load call that produced the event.
	Load string
	// Plugin is set for per-plugin events.
	Plugin ID
	Error  error
}

// EventType is the type of collection event.
type EventType int

const (
	// EventLoadStarted is emitted once a Load call has planned its work.
	EventLoadStarted EventType = iota
	// EventPluginLoaded is emitted after a plugin is registered.
	EventPluginLoaded
	// EventPluginFailed is emitted when a plugin constructor fails.
	EventPluginFailed
	// EventLoadFinished is emitted when a Load call returns.
	EventLoadFinished
)

// String returns a string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventLoadStarted:
		return "load-started"
	case EventPluginLoaded:
		return "loaded"
	case EventPluginFailed:
		return "failed"
	case EventLoadFinished:
		return "load-finished"
	default:
		return "unknown"
	}
}

// Subscribe adds an event handler.
// Returns an unsubscribe function to remove the handler.
func (c *Collection[H]) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	c.mu.Lock()
	c.handlers = append(c.handlers, handler)
	index := len(c.handlers) - 1
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// Set to nil instead of removing to avoid index shifting issues
		if index < len(c.handlers) {
			c.handlers[index] = nil
		}
	}
}

// emit sends an event to all handlers.
// Handlers are called outside any locks and panics are recovered.
func (c *Collection[H]) emit(event Event) {
	c.mu.RLock()
	handlers := make([]EventHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Warn("plugin event handler panicked", "event", event.Type.String(), "panic", r)
				}
			}()
			handler(event)
		}()
	}
}
