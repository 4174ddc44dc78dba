// Package editor provides the host the plugins of plugcore are loaded into.
//
// An Editor owns a document, a command table, settings and the plugin
// collection built against it. Plugins reach the editor through the host
// argument of their constructor, and register commands that operate on the
// document.
package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/dshills/plugcore/internal/plugin"
)

// Defaults for a new Editor.
const (
	DefaultName    = "plugcore"
	DefaultVersion = "0.1.0"
)

// Editor errors.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrCommandExists  = errors.New("command already registered")
	ErrClosed         = errors.New("editor is closed")
)

// Command is an editor command. Args are free-form strings.
type Command func(ctx context.Context, args ...string) error

// Editor is the host context of the plugin collection.
type Editor struct {
	id      uuid.UUID
	name    string
	version string
	logger  hclog.Logger

	plugins *plugin.Collection[*Editor]
	doc     *Document

	// wired holds the plugins whose exports and Init have been handled.
	wireMu sync.Mutex
	wired  map[plugin.ID]bool

	mu       sync.RWMutex
	commands map[string]Command
	settings map[string]any
	closed   bool
}

// Option configures an Editor.
type Option func(*Editor)

// WithName sets the editor name.
func WithName(name string) Option {
	return func(e *Editor) {
		if name != "" {
			e.name = name
		}
	}
}

// WithVersion sets the editor version checked by plugin manifests.
func WithVersion(version string) Option {
	return func(e *Editor) {
		if version != "" {
			e.version = version
		}
	}
}

// WithLogger sets the editor logger.
func WithLogger(logger hclog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithSettings sets initial settings.
func WithSettings(settings map[string]any) Option {
	return func(e *Editor) {
		for k, v := range settings {
			e.settings[k] = v
		}
	}
}

// New creates an editor with an empty plugin collection.
func New(opts ...Option) *Editor {
	e := &Editor{
		id:       uuid.New(),
		name:     DefaultName,
		version:  DefaultVersion,
		logger:   hclog.NewNullLogger(),
		doc:      newDocument(),
		wired:    make(map[plugin.ID]bool),
		commands: make(map[string]Command),
		settings: make(map[string]any),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("editor", e.id.String())
	e.plugins = plugin.NewCollection(e, plugin.WithLogger(e.logger.Named("plugins")))
	return e
}

// ID returns the editor instance ID.
func (e *Editor) ID() uuid.UUID { return e.id }

// Name returns the editor name.
func (e *Editor) Name() string { return e.name }

// Version returns the editor version.
func (e *Editor) Version() string { return e.version }

// Logger returns the editor logger.
func (e *Editor) Logger() hclog.Logger { return e.logger }

// Plugins returns the editor's plugin collection.
func (e *Editor) Plugins() *plugin.Collection[*Editor] { return e.plugins }

// Document returns the edited document.
func (e *Editor) Document() *Document { return e.doc }

// exporter is implemented by plugins publishing functions as commands,
// such as Lua plugins.
type exporter interface {
	ID() plugin.ID
	Exports() []string
	Invoke(ctx context.Context, name string, args ...string) error
}

// LoadPlugins loads descs and their dependencies into the editor.
//
// Functions exported by newly registered plugins are then registered as
// "<plugin>.<function>" commands, and Init is called on those implementing
// plugin.Initializer, in load order. This happens even when the load fails,
// so plugins registered by a failed load are usable. Plugins whose
// constructor finishes after a failed load returned are wired by the next
// call.
func (e *Editor) LoadPlugins(ctx context.Context, descs ...plugin.Descriptor[*Editor]) ([]plugin.Plugin, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}

	created, err := e.plugins.Load(ctx, descs...)
	if werr := e.wire(ctx); werr != nil {
		if err != nil {
			return nil, errors.Join(err, werr)
		}
		return created, werr
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("plugins loaded", "count", len(created), "total", e.plugins.Len())
	return created, nil
}

// wire registers the exports of every loaded plugin not wired yet, then
// calls their Init.
func (e *Editor) wire(ctx context.Context) error {
	e.wireMu.Lock()
	defer e.wireMu.Unlock()

	var fresh []plugin.Plugin
	for id, p := range e.plugins.All() {
		if e.wired[id] {
			continue
		}
		e.wired[id] = true
		fresh = append(fresh, p)
	}

	for _, p := range fresh {
		if ex, ok := p.(exporter); ok {
			if err := e.registerExports(ex); err != nil {
				return err
			}
		}
	}

	for _, p := range fresh {
		if in, ok := p.(plugin.Initializer); ok {
			if err := in.Init(ctx); err != nil {
				return fmt.Errorf("plugin %s: init: %w", p.Name(), err)
			}
		}
	}
	return nil
}

func (e *Editor) registerExports(ex exporter) error {
	for _, fn := range ex.Exports() {
		name := string(ex.ID()) + "." + fn
		err := e.RegisterCommand(name, func(ctx context.Context, args ...string) error {
			return ex.Invoke(ctx, fn, args...)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close destroys the loaded plugins in reverse load order. It returns all
// Destroy errors joined. Close is idempotent.
func (e *Editor) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	ids := e.plugins.IDs()
	var errs []error
	for _, id := range slices.Backward(ids) {
		p, ok := e.plugins.Get(id)
		if !ok {
			continue
		}
		d, ok := p.(plugin.Destroyer)
		if !ok {
			continue
		}
		if err := d.Destroy(ctx); err != nil {
			e.logger.Warn("plugin destroy failed", "plugin", id, "error", err)
			errs = append(errs, fmt.Errorf("plugin %s: destroy: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Editor) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// SetData replaces the document with one paragraph per line of data and
// drops the undo history.
func (e *Editor) SetData(data string) {
	e.doc.SetText(data)
	if u, ok := plugin.Lookup[*Undo](e.plugins, PluginUndo); ok {
		u.clear()
	}
}

// Data returns the document text, one line per block.
func (e *Editor) Data() string {
	return e.doc.Text()
}

// RegisterCommand adds a command.
func (e *Editor) RegisterCommand(name string, cmd Command) error {
	if name == "" || cmd == nil {
		return fmt.Errorf("invalid command %q", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.commands[name]; exists {
		return fmt.Errorf("%w: %s", ErrCommandExists, name)
	}
	e.commands[name] = cmd
	e.logger.Debug("command registered", "command", name)
	return nil
}

// ExecuteCommand runs a registered command.
func (e *Editor) ExecuteCommand(ctx context.Context, name string, args ...string) error {
	e.mu.RLock()
	cmd, ok := e.commands[name]
	closed := e.closed
	e.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return cmd(ctx, args...)
}

// HasCommand returns true if a command is registered under name.
func (e *Editor) HasCommand(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.commands[name]
	return ok
}

// Commands returns the registered command names, sorted.
func (e *Editor) Commands() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.commands))
	for name := range e.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Setting returns a setting value.
func (e *Editor) Setting(key string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.settings[key]
	return v, ok
}

// SetSetting stores a setting value.
func (e *Editor) SetSetting(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings[key] = value
}

// String returns the editor name and version.
func (e *Editor) String() string {
	return strings.Join([]string{e.name, e.version}, " ")
}
