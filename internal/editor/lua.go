package editor

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/plugcore/internal/plugin"
	plua "github.com/dshills/plugcore/internal/plugin/lua"
)

// BindLua exposes the editor to a Lua plugin as the global host table.
//
//	host.name()                  editor name
//	host.version()               editor version
//	host.id()                    editor instance ID
//	host.has_plugin(name)        whether a plugin is loaded
//	host.has_command(name)       whether a command is registered
//	host.execute(name, ...)      runs a command, raising on error
//	host.log(level, msg, ...)    logs with key/value pairs
//	host.setting(key)            a setting value or nil
//	host.text()                  the document text
//	host.set_data(text)          replaces the document text
//
// A plugin must not execute its own exported commands from Lua; the call
// would wait on the state it runs in.
func BindLua(state *plua.State, e *Editor) error {
	logger := e.Logger().Named("lua")

	state.RegisterModule(plua.GlobalHost, map[string]lua.LGFunction{
		"name": func(L *lua.LState) int {
			L.Push(lua.LString(e.Name()))
			return 1
		},
		"version": func(L *lua.LState) int {
			L.Push(lua.LString(e.Version()))
			return 1
		},
		"id": func(L *lua.LState) int {
			L.Push(lua.LString(e.ID().String()))
			return 1
		},
		"has_plugin": func(L *lua.LState) int {
			L.Push(lua.LBool(e.Plugins().Has(plugin.ID(L.CheckString(1)))))
			return 1
		},
		"has_command": func(L *lua.LState) int {
			L.Push(lua.LBool(e.HasCommand(L.CheckString(1))))
			return 1
		},
		"execute": func(L *lua.LState) int {
			name := L.CheckString(1)
			args := make([]string, 0, L.GetTop()-1)
			for i := 2; i <= L.GetTop(); i++ {
				args = append(args, L.CheckString(i))
			}

			ctx := L.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := e.ExecuteCommand(ctx, name, args...); err != nil {
				L.RaiseError("%s: %s", name, err.Error())
			}
			return 0
		},
		"log": func(L *lua.LState) int {
			level := L.CheckString(1)
			msg := L.CheckString(2)
			var kv []any
			for i := 3; i+1 <= L.GetTop(); i += 2 {
				kv = append(kv, L.CheckString(i), plua.ToGo(L.Get(i+1)))
			}

			switch level {
			case "trace":
				logger.Trace(msg, kv...)
			case "debug":
				logger.Debug(msg, kv...)
			case "warn":
				logger.Warn(msg, kv...)
			case "error":
				logger.Error(msg, kv...)
			default:
				logger.Info(msg, kv...)
			}
			return 0
		},
		"setting": func(L *lua.LState) int {
			v, ok := e.Setting(L.CheckString(1))
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(plua.ToLua(L, v))
			return 1
		},
		"text": func(L *lua.LState) int {
			L.Push(lua.LString(e.Data()))
			return 1
		},
		"set_data": func(L *lua.LState) int {
			e.SetData(L.CheckString(1))
			return 0
		},
	})
	return nil
}
