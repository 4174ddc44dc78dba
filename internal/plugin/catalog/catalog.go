// Package catalog turns plugin names into loadable descriptors.
//
// A Catalog knows two kinds of plugins: built-in plugins registered with a Go
// factory, and Lua plugins discovered on disk. Resolve links the requires
// lists of the named plugins into plugin.Descriptor values for a
// plugin.Collection; it creates one descriptor per name, so a requires cycle
// among manifests becomes a descriptor cycle the collection reports.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/dshills/plugcore/internal/plugin"
	plua "github.com/dshills/plugcore/internal/plugin/lua"
	"github.com/dshills/plugcore/internal/plugin/manifest"
)

// Catalog errors.
var (
	ErrPluginNotFound     = errors.New("plugin not found")
	ErrDependencyNotFound = errors.New("required plugin not found")
	ErrDuplicate          = errors.New("plugin already registered")
	ErrNoEntryPoint       = errors.New("plugin has no entry point")
	ErrUnknownBuiltin     = errors.New("unknown builtin plugin")
	ErrIncompatibleHost   = manifest.ErrIncompatibleHost
)

// Kind is how a plugin is implemented.
type Kind int

// Plugin kinds.
const (
	// KindBuiltin is a plugin implemented in Go and registered with Register.
	KindBuiltin Kind = iota

	// KindLua is a plugin discovered on disk and run in a Lua state.
	KindLua
)

// String returns the name shown for the kind, such as "builtin".
func (k Kind) String() string {
	switch k {
	case KindBuiltin:
		return "builtin"
	case KindLua:
		return "lua"
	default:
		return "unknown"
	}
}

// Entry describes a plugin known to the catalog.
type Entry struct {
	Name     string
	Kind     Kind
	Path     string // Plugin directory or file; empty for registered builtins
	Builtin  string // Factory name for KindBuiltin
	Requires []string
	Manifest *manifest.Manifest // Nil for registered builtins without a manifest

	// Err is set for discovered plugins that cannot be resolved.
	Err error
}

// Description returns the manifest description, if any.
func (e *Entry) Description() string {
	if e.Manifest == nil {
		return ""
	}
	return e.Manifest.Description
}

// Option configures a Catalog.
type Option func(*options)

type options struct {
	paths       []string
	hostVersion string
	logger      hclog.Logger
	luaOpts     []plua.StateOption
}

// WithPaths sets the plugin search paths, checked in order.
func WithPaths(paths ...string) Option {
	return func(o *options) {
		o.paths = paths
	}
}

// WithHostVersion sets the version checked against minHostVersion.
func WithHostVersion(v string) Option {
	return func(o *options) {
		o.hostVersion = v
	}
}

// WithLogger sets the logger for discovery diagnostics.
func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLuaOptions sets the state options of every Lua plugin.
func WithLuaOptions(opts ...plua.StateOption) Option {
	return func(o *options) {
		o.luaOpts = opts
	}
}

// Catalog holds built-in factories and discovered plugins for host type H.
// It is safe for concurrent use.
type Catalog[H any] struct {
	mu sync.RWMutex

	opts   options
	binder plua.Binder[H]

	builtins   map[string]*builtin[H]
	discovered map[string]*Entry
}

type builtin[H any] struct {
	entry   *Entry
	factory plugin.Factory[H]
}

// New creates an empty catalog.
func New[H any](opts ...Option) *Catalog[H] {
	o := options{
		paths:  DefaultPaths(),
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Catalog[H]{
		opts:       o,
		builtins:   make(map[string]*builtin[H]),
		discovered: make(map[string]*Entry),
	}
}

// DefaultPaths returns the default plugin search paths.
func DefaultPaths() []string {
	paths := make([]string, 0, 2)

	// User plugins: ~/.config/plugcore/plugins/
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "plugcore", "plugins"))
	}

	// Project plugins: .plugcore/plugins/
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".plugcore", "plugins"))
	}

	return paths
}

// Bind sets the binder that exposes the host to Lua plugins.
func (c *Catalog[H]) Bind(b plua.Binder[H]) *Catalog[H] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.binder = b
	return c
}

// Paths returns the configured search paths.
func (c *Catalog[H]) Paths() []string {
	return slices.Clone(c.opts.paths)
}

// Register adds a built-in plugin implemented by factory.
func (c *Catalog[H]) Register(name string, factory plugin.Factory[H], requires ...string) error {
	if !plugin.ID(name).Valid() {
		return fmt.Errorf("invalid plugin name %q", name)
	}
	if factory == nil {
		return fmt.Errorf("plugin %s: nil factory", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.builtins[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	c.builtins[name] = &builtin[H]{
		entry: &Entry{
			Name:     name,
			Kind:     KindBuiltin,
			Builtin:  name,
			Requires: slices.Clone(requires),
		},
		factory: factory,
	}
	return nil
}

// Discover scans the search paths and replaces the discovered plugins.
//
// A plugin is a directory with a manifest or an init.lua, or a single
// name.lua file. The first path providing a name wins. Entries that cannot
// be used are returned with Err set. The result, sorted by name, does not
// include registered builtins.
func (c *Catalog[H]) Discover() ([]*Entry, error) {
	discovered := make(map[string]*Entry)
	var errs []error

	for _, basePath := range c.opts.paths {
		if err := c.discoverInPath(basePath, discovered); err != nil {
			c.opts.logger.Warn("cannot scan plugin path", "path", basePath, "error", err)
			errs = append(errs, err)
		}
	}

	c.mu.Lock()
	for name, e := range discovered {
		if b, ok := c.builtins[name]; ok && e.Err == nil && e.Kind != KindBuiltin {
			e.Err = fmt.Errorf("%w: %s shadows a builtin plugin", ErrDuplicate, name)
			c.opts.logger.Warn("plugin ignored", "name", name, "path", e.Path, "builtin", b.entry.Name)
		}
	}
	c.discovered = discovered
	c.mu.Unlock()

	entries := make([]*Entry, 0, len(discovered))
	for _, e := range discovered {
		entries = append(entries, e)
	}
	sortEntries(entries)

	c.opts.logger.Debug("plugin discovery finished", "paths", len(c.opts.paths), "found", len(entries))
	return entries, errors.Join(errs...)
}

// discoverInPath finds plugins in a single directory.
func (c *Catalog[H]) discoverInPath(basePath string, found map[string]*Entry) error {
	dirEntries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Not an error if path doesn't exist
		}
		return err
	}

	for _, de := range dirEntries {
		path := filepath.Join(basePath, de.Name())

		var e *Entry
		switch {
		case de.IsDir():
			e = c.inspectDir(de.Name(), path)
		case filepath.Ext(de.Name()) == ".lua":
			name := strings.TrimSuffix(de.Name(), ".lua")
			e = luaEntry(manifest.NewMinimal(name, path), path)
			if !plugin.ID(name).Valid() {
				e.Err = fmt.Errorf("%w: %s", manifest.ErrInvalidName, name)
			}
		default:
			continue
		}

		// Don't override earlier discoveries (first path wins)
		if prev, exists := found[e.Name]; exists {
			c.opts.logger.Debug("plugin shadowed", "name", e.Name, "path", e.Path, "by", prev.Path)
			continue
		}
		if e.Err != nil {
			c.opts.logger.Warn("invalid plugin", "name", e.Name, "path", e.Path, "error", e.Err)
		} else {
			c.opts.logger.Debug("discovered plugin", "name", e.Name, "kind", e.Kind, "path", e.Path)
		}
		found[e.Name] = e
	}

	return nil
}

// inspectDir examines a plugin directory.
func (c *Catalog[H]) inspectDir(name, path string) *Entry {
	m, err := manifest.LoadFromDir(path)
	switch {
	case err == nil:
		if m.IsBuiltin() {
			return &Entry{
				Name:     m.Name,
				Kind:     KindBuiltin,
				Path:     path,
				Builtin:  m.Builtin,
				Requires: m.Requires,
				Manifest: m,
			}
		}
		e := luaEntry(m, path)
		if _, statErr := os.Stat(m.MainPath()); statErr != nil {
			e.Err = fmt.Errorf("%w: %s", ErrNoEntryPoint, m.Main)
		}
		return e

	case errors.Is(err, manifest.ErrNotFound):
		// No manifest - fall back to init.lua
		if _, statErr := os.Stat(filepath.Join(path, manifest.DefaultMain)); statErr == nil {
			m := manifest.NewMinimal(name, filepath.Join(path, manifest.DefaultMain))
			e := luaEntry(m, path)
			if !plugin.ID(name).Valid() {
				e.Err = fmt.Errorf("%w: %s", manifest.ErrInvalidName, name)
			}
			return e
		}
		return &Entry{Name: name, Kind: KindLua, Path: path, Err: ErrNoEntryPoint}

	default:
		return &Entry{Name: name, Kind: KindLua, Path: path, Err: fmt.Errorf("invalid manifest: %w", err)}
	}
}

func luaEntry(m *manifest.Manifest, path string) *Entry {
	return &Entry{
		Name:     m.Name,
		Kind:     KindLua,
		Path:     path,
		Requires: m.Requires,
		Manifest: m,
	}
}

// Get returns the entry resolved for name. Discovered plugins take
// precedence over registered builtins of the same name only when they are
// themselves builtin manifests.
func (c *Catalog[H]) Get(name string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup(name)
}

// lookup must be called with c.mu held.
func (c *Catalog[H]) lookup(name string) (*Entry, bool) {
	if e, ok := c.discovered[name]; ok {
		if _, isBuiltin := c.builtins[name]; !isBuiltin || e.Kind == KindBuiltin {
			return e, true
		}
	}
	if b, ok := c.builtins[name]; ok {
		return b.entry, true
	}
	return nil, false
}

// Entries returns every known plugin, sorted by name.
func (c *Catalog[H]) Entries() []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make(map[string]bool, len(c.builtins)+len(c.discovered))
	for name := range c.builtins {
		names[name] = true
	}
	for name := range c.discovered {
		names[name] = true
	}

	entries := make([]*Entry, 0, len(names))
	for name := range names {
		e, _ := c.lookup(name)
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries
}

// Names returns the names of all known plugins, sorted.
func (c *Catalog[H]) Names() []string {
	entries := c.Entries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func sortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
}
