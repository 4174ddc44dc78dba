package catalog

import (
	"fmt"

	"github.com/dshills/plugcore/internal/plugin"
	plua "github.com/dshills/plugcore/internal/plugin/lua"
)

// Resolve returns descriptors for the named plugins, in the order given, with
// their requires linked to the descriptors of the required plugins.
//
// It fails with ErrPluginNotFound for an unknown name, ErrDependencyNotFound
// for an unknown requirement, ErrIncompatibleHost when a manifest needs a
// newer host, or the entry's error for a plugin that failed discovery.
// Requires cycles are not an error here; the collection reports them.
func (c *Catalog[H]) Resolve(names ...string) ([]plugin.Descriptor[H], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r := &resolver[H]{
		c:    c,
		memo: make(map[string]plugin.Descriptor[H]),
	}

	descs := make([]plugin.Descriptor[H], 0, len(names))
	for _, name := range names {
		d, err := r.resolve(name, "")
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// ResolveAll resolves every known plugin that has no discovery error.
func (c *Catalog[H]) ResolveAll() ([]plugin.Descriptor[H], error) {
	var names []string
	for _, e := range c.Entries() {
		if e.Err == nil {
			names = append(names, e.Name)
		}
	}
	return c.Resolve(names...)
}

type resolver[H any] struct {
	c    *Catalog[H]
	memo map[string]plugin.Descriptor[H]
}

func (r *resolver[H]) resolve(name, dependent string) (plugin.Descriptor[H], error) {
	if d, ok := r.memo[name]; ok {
		return d, nil
	}

	e, ok := r.c.lookup(name)
	if !ok {
		if dependent == "" {
			return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
		}
		return nil, fmt.Errorf("%w: %s requires %s", ErrDependencyNotFound, dependent, name)
	}
	if e.Err != nil {
		return nil, fmt.Errorf("plugin %s (%s): %w", name, e.Path, e.Err)
	}
	if e.Manifest != nil {
		if err := e.Manifest.CompatibleWith(r.c.opts.hostVersion); err != nil {
			return nil, err
		}
	}

	d, link, err := r.c.descriptor(e)
	if err != nil {
		return nil, err
	}

	// Memoize before following requires so that cycles link back to d.
	r.memo[name] = d

	deps := make([]plugin.Descriptor[H], 0, len(e.Requires))
	for _, req := range e.Requires {
		dep, err := r.resolve(req, name)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	link(deps...)

	return d, nil
}

// descriptor builds the unlinked descriptor for e and the function that
// appends its requirements.
func (c *Catalog[H]) descriptor(e *Entry) (plugin.Descriptor[H], func(...plugin.Descriptor[H]), error) {
	id := plugin.ID(e.Name)

	if e.Kind == KindBuiltin {
		b, ok := c.builtins[e.Builtin]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s (plugin %s)", ErrUnknownBuiltin, e.Builtin, e.Name)
		}
		fd := plugin.Define(id, b.factory)
		return fd, func(deps ...plugin.Descriptor[H]) { fd.Require(deps...) }, nil
	}

	d := plua.NewDescriptor[H](id, plua.FileSource(e.Manifest.MainPath())).
		Grant(e.Manifest.Capabilities...).
		WithStateOptions(c.opts.luaOpts...)
	if c.binder != nil {
		d.Bind(c.binder)
	}
	return d, func(deps ...plugin.Descriptor[H]) { d.Require(deps...) }, nil
}
