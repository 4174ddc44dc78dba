// Package lua implements plugins written in Lua on top of gopher-lua.
//
// # State
//
// The State type manages a sandboxed Lua runtime. Every execution is bound to
// a context and an execution timeout:
//
//	state, err := lua.NewState(lua.WithExecutionTimeout(2 * time.Second))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	if err := state.DoFile(ctx, "init.lua"); err != nil {
//	    return err
//	}
//
// # Sandbox
//
// The Sandbox restricts Lua code execution by:
//   - Opening only the base, package, string, table and math libraries
//   - Removing dofile, loadfile, load and loadstring
//   - Limiting require to safe modules and modules preloaded under "plugcore."
//
// Capabilities re-enable restricted functionality:
//   - CapabilityFileRead: read-only io.open and io.lines
//   - CapabilityEnvironment: os.getenv, os.time and os.clock
//   - CapabilityUnsafe: the full io, os and debug libraries
//
// # Plugins
//
// A Descriptor loads a script as a plugin of the collection. The script sees
// its ID as plugin_id, may use the host table provided by a Binder, and
// publishes callable functions in the exports table:
//
//	exports.greet = function(name)
//	    host.log("hello " .. name)
//	end
//
//	function init() end     -- optional, runs after the script
//	function destroy() end  -- optional, runs on Plugin.Destroy
package lua
