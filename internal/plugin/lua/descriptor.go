package lua

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/plugcore/internal/plugin"
)

// Global names a plugin script interacts with.
const (
	// GlobalHost is the table a Binder exposes the host through.
	GlobalHost = "host"
	// GlobalExports is the table a script fills with callable functions.
	GlobalExports = "exports"
	// GlobalPluginID holds the plugin's own ID.
	GlobalPluginID = "plugin_id"

	initFunc    = "init"
	destroyFunc = "destroy"
)

// Binder exposes a host to a freshly created Lua state before the plugin
// script runs.
type Binder[H any] func(state *State, host H) error

// Source is where a plugin script comes from: a file or inline code.
type Source struct {
	// Path is the script file. It takes precedence over Code.
	Path string
	// Code is an inline chunk, named Name in Lua error messages.
	Code string
	Name string
}

// FileSource returns a Source reading the script at path.
func FileSource(path string) Source {
	return Source{Path: path, Name: path}
}

// StringSource returns a Source for an inline chunk.
func StringSource(name, code string) Source {
	return Source{Code: code, Name: name}
}

func (s Source) empty() bool {
	return s.Path == "" && s.Code == ""
}

func (s Source) String() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}

// Descriptor declares a plugin implemented by a Lua script.
//
// New creates a sandboxed State, grants the declared capabilities, binds the
// host, runs the script and finally calls its global init() if defined. The
// script registers commands by filling the exports table.
type Descriptor[H any] struct {
	id        plugin.ID
	source    Source
	requires  []plugin.Descriptor[H]
	binder    Binder[H]
	grants    []Capability
	stateOpts []StateOption
}

// NewDescriptor creates a Lua plugin descriptor.
func NewDescriptor[H any](id plugin.ID, source Source) *Descriptor[H] {
	return &Descriptor[H]{id: id, source: source}
}

// Require appends plugins that must be loaded before this one.
func (d *Descriptor[H]) Require(more ...plugin.Descriptor[H]) *Descriptor[H] {
	d.requires = append(d.requires, more...)
	return d
}

// Bind sets the function that exposes the host to the script.
func (d *Descriptor[H]) Bind(b Binder[H]) *Descriptor[H] {
	d.binder = b
	return d
}

// Grant adds sandbox capabilities.
func (d *Descriptor[H]) Grant(caps ...Capability) *Descriptor[H] {
	d.grants = append(d.grants, caps...)
	return d
}

// WithStateOptions adds options for the State created by New.
func (d *Descriptor[H]) WithStateOptions(opts ...StateOption) *Descriptor[H] {
	d.stateOpts = append(d.stateOpts, opts...)
	return d
}

// ID implements plugin.Descriptor.
func (d *Descriptor[H]) ID() plugin.ID {
	return d.id
}

// Requires implements plugin.Descriptor.
func (d *Descriptor[H]) Requires() []plugin.Descriptor[H] {
	return d.requires
}

// Source returns where the script is loaded from.
func (d *Descriptor[H]) Source() Source {
	return d.source
}

// Validate reports descriptors that cannot produce a plugin. The collection
// calls it before anything is constructed.
func (d *Descriptor[H]) Validate() error {
	if d.source.empty() {
		return ErrNoSource
	}
	for _, c := range d.grants {
		if !KnownCapability(c) {
			return fmt.Errorf("unknown capability %q", c)
		}
	}
	return nil
}

// New implements plugin.Descriptor.
func (d *Descriptor[H]) New(ctx context.Context, host H) (plugin.Plugin, error) {
	state, err := NewState(d.stateOpts...)
	if err != nil {
		return nil, err
	}

	if err := d.prepare(ctx, state, host); err != nil {
		state.Close()
		return nil, fmt.Errorf("%s: %w", d.source, err)
	}

	return &Plugin{id: d.id, state: state}, nil
}

func (d *Descriptor[H]) prepare(ctx context.Context, state *State, host H) error {
	for _, c := range d.grants {
		state.Sandbox().Grant(c)
	}

	state.SetGlobal(GlobalPluginID, lua.LString(d.id))
	state.SetGlobalValue(GlobalExports, map[string]any{})

	if d.binder != nil {
		if err := d.binder(state, host); err != nil {
			return fmt.Errorf("bind host: %w", err)
		}
	}

	var err error
	if d.source.Path != "" {
		err = state.DoFile(ctx, d.source.Path)
	} else {
		err = state.DoString(ctx, d.source.Code)
	}
	if err != nil {
		return err
	}

	if state.HasFunction(initFunc) {
		if _, err := state.Call(ctx, initFunc); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}
	return nil
}
