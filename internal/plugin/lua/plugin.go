package lua

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/plugcore/internal/plugin"
)

// Plugin is a loaded Lua plugin. It owns its State until Destroy.
type Plugin struct {
	id    plugin.ID
	state *State
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string {
	return "lua:" + string(p.id)
}

// ID returns the plugin ID.
func (p *Plugin) ID() plugin.ID {
	return p.id
}

// State returns the plugin's Lua state.
func (p *Plugin) State() *State {
	return p.state
}

// Exports returns the sorted names of the functions in the exports table.
func (p *Plugin) Exports() []string {
	return p.state.TableFunctions(GlobalExports)
}

// Invoke calls an exported function with string arguments.
func (p *Plugin) Invoke(ctx context.Context, name string, args ...string) error {
	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = lua.LString(a)
	}
	_, err := p.state.CallField(ctx, GlobalExports, name, largs...)
	return err
}

// Call calls a global function, converting arguments with ToLua and results
// with ToGo.
func (p *Plugin) Call(ctx context.Context, fn string, args ...any) ([]any, error) {
	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = p.state.ToLua(a)
	}

	results, err := p.state.Call(ctx, fn, largs...)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(results))
	for i, r := range results {
		out[i] = ToGo(r)
	}
	return out, nil
}

// Destroy calls the script's global destroy() if defined and closes the state.
func (p *Plugin) Destroy(ctx context.Context) error {
	var err error
	if p.state.HasFunction(destroyFunc) {
		_, err = p.state.Call(ctx, destroyFunc)
	}
	if cerr := p.state.Close(); err == nil {
		err = cerr
	}
	return err
}
