// Package plugin provides the plugin collection of the plugcore host.
//
// A plugin is declared by a Descriptor: an identity, the plugins it
// requires, and a constructor that builds the instance against the host.
// The Collection loads descriptors together with their transitive
// dependencies, constructs each plugin exactly once, and exposes the
// instances by ID.
//
// # Quick Start
//
//	undo := plugin.Define[*Editor]("undo", newUndo)
//	typing := plugin.Define[*Editor]("typing", newTyping, undo)
//
//	plugins := plugin.NewCollection(editor, plugin.WithLogger(logger))
//	created, err := plugins.Load(ctx, typing)
//	if err != nil {
//	    return err
//	}
//	// created holds undo, then typing.
//
//	p, ok := plugins.Get("undo")
//
// # Loading
//
// Load runs in two phases:
//
//	plan     walk the requires graph, validate every descriptor,
//	         reject cycles; nothing is constructed
//	execute  one goroutine per new plugin; each waits for its
//	         dependencies, constructs, then registers itself
//
// A plugin is registered only after all of its dependencies are registered.
// Independent plugins are constructed concurrently and complete in any order.
// Plugins already registered are skipped, and plugins being constructed by a
// concurrent Load are waited for instead of constructed again.
//
// # Errors
//
// Load fails as a unit:
//
//   - *ContractViolationError: a descriptor is nil, has an invalid ID,
//     reports itself invalid, or requires a nil descriptor
//   - *CyclicDependencyError: the requires graph contains a cycle
//   - *InstantiationError: a constructor returned an error, panicked or
//     returned a nil plugin
//
// The first two are detected while planning, so no constructor runs. After a
// constructor fails no further construction starts, but plugins registered
// before the failure remain registered; there is no rollback.
//
// # Plugin Lifecycle
//
//	StateUnloaded -> Load() -> StatePending -> StateConstructing -> StateLoaded
//	                                        \-> StateAborted     \-> StateFailed
package plugin
