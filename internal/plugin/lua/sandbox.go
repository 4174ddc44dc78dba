package lua

import (
	"os"
	"slices"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// ModulePrefix namespaces the modules a host may preload for plugins.
const ModulePrefix = "plugcore"

// Sandbox restricts Lua execution to safe operations.
type Sandbox struct {
	L *lua.LState

	capabilities map[Capability]bool
	started      time.Time
}

// Capability represents a permission that can be granted to plugins.
type Capability string

// Available capabilities.
const (
	CapabilityFileRead    Capability = "filesystem.read"
	CapabilityEnvironment Capability = "environment"
	CapabilityUnsafe      Capability = "unsafe" // Full Lua stdlib access
)

// KnownCapability reports whether c is a capability the sandbox can grant.
func KnownCapability(c Capability) bool {
	switch c {
	case CapabilityFileRead, CapabilityEnvironment, CapabilityUnsafe:
		return true
	}
	return false
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{
		L:            L,
		capabilities: make(map[Capability]bool),
		started:      time.Now(),
	}
}

// Install removes the functions that load code from outside the sandbox and
// replaces require with a whitelisting version.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}
	s.installSafeRequire()
}

// installSafeRequire clears package.path/cpath so nothing is loaded from disk,
// and replaces require() with a version that only resolves the safe built-in
// modules, capability-gated modules and modules preloaded under ModulePrefix.
func (s *Sandbox) installSafeRequire() {
	if pkgTable, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkgTable, "path", lua.LString(""))
		s.L.SetField(pkgTable, "cpath", lua.LString(""))
	}

	safeModules := map[string]bool{
		"string": true,
		"table":  true,
		"math":   true,
	}

	originalRequire := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)

		switch {
		case safeModules[modName]:
		case modName == ModulePrefix || strings.HasPrefix(modName, ModulePrefix+"."):
		case modName == "io":
			if !s.capabilities[CapabilityFileRead] && !s.capabilities[CapabilityUnsafe] {
				L.RaiseError("module 'io' requires the %s capability", CapabilityFileRead)
			}
			L.Push(L.GetGlobal("io"))
			return 1
		case modName == "os":
			if !s.capabilities[CapabilityEnvironment] && !s.capabilities[CapabilityUnsafe] {
				L.RaiseError("module 'os' requires the %s capability", CapabilityEnvironment)
			}
			L.Push(L.GetGlobal("os"))
			return 1
		case modName == "debug":
			if !s.capabilities[CapabilityUnsafe] {
				L.RaiseError("module 'debug' requires the %s capability", CapabilityUnsafe)
			}
			L.Push(L.GetGlobal("debug"))
			return 1
		default:
			L.RaiseError("module %q is not available", modName)
			return 0
		}

		L.Push(originalRequire)
		L.Push(lua.LString(modName))
		L.Call(1, 1)
		return 1
	}))
}

// Preload registers a Go module under ModulePrefix, e.g. Preload("editor", ...)
// makes require("plugcore.editor") available.
func (s *Sandbox) Preload(name string, loader lua.LGFunction) {
	s.L.PreloadModule(ModulePrefix+"."+name, loader)
}

// Grant enables a capability and injects the matching API.
func (s *Sandbox) Grant(c Capability) {
	if s.capabilities[c] {
		return
	}
	s.capabilities[c] = true

	switch c {
	case CapabilityFileRead:
		s.injectFileReadAPI()
	case CapabilityEnvironment:
		s.injectEnvironmentAPI()
	case CapabilityUnsafe:
		s.injectUnsafeLibraries()
	}
}

// HasCapability returns true if the capability is granted.
func (s *Sandbox) HasCapability(c Capability) bool {
	return s.capabilities[c]
}

// Capabilities returns the granted capabilities, sorted.
func (s *Sandbox) Capabilities() []Capability {
	caps := make([]Capability, 0, len(s.capabilities))
	for c, granted := range s.capabilities {
		if granted {
			caps = append(caps, c)
		}
	}
	slices.Sort(caps)
	return caps
}

// CheckCapability returns an error if the capability is not granted.
func (s *Sandbox) CheckCapability(c Capability) error {
	if !s.capabilities[c] {
		return &CapabilityError{Capability: c}
	}
	return nil
}

// injectFileReadAPI adds a read-only io module.
func (s *Sandbox) injectFileReadAPI() {
	ioMod := s.L.NewTable()

	s.L.SetField(ioMod, "open", s.L.NewFunction(func(L *lua.LState) int {
		filename := L.CheckString(1)
		mode := L.OptString(2, "r")
		if mode != "r" && mode != "rb" {
			L.ArgError(2, "only read modes (r, rb) are allowed")
			return 0
		}

		file, err := os.Open(filename)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}

		ud := L.NewUserData()
		ud.Value = file
		L.SetMetatable(ud, s.fileMetatable())
		L.Push(ud)
		return 1
	}))

	s.L.SetField(ioMod, "lines", s.L.NewFunction(func(L *lua.LState) int {
		content, err := os.ReadFile(L.CheckString(1))
		if err != nil {
			L.RaiseError("cannot open file: %s", err.Error())
			return 0
		}
		L.Push(linesIterator(L, string(content)))
		return 1
	}))

	s.L.SetGlobal("io", ioMod)
}

// fileMetatable returns the metatable for read-only file handles.
func (s *Sandbox) fileMetatable() *lua.LTable {
	mt := s.L.NewTable()
	index := s.L.NewTable()

	checkFile := func(L *lua.LState) *os.File {
		ud := L.CheckUserData(1)
		file, ok := ud.Value.(*os.File)
		if !ok {
			L.ArgError(1, "expected file")
		}
		return file
	}

	// file:read("*a") returns the whole file; other formats are unsupported.
	s.L.SetField(index, "read", s.L.NewFunction(func(L *lua.LState) int {
		file := checkFile(L)
		switch L.OptString(2, "*a") {
		case "*a", "*all", "a":
			content, err := os.ReadFile(file.Name())
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			L.Push(lua.LString(content))
		default:
			L.Push(lua.LNil)
		}
		return 1
	}))

	s.L.SetField(index, "lines", s.L.NewFunction(func(L *lua.LState) int {
		file := checkFile(L)
		content, err := os.ReadFile(file.Name())
		if err != nil {
			L.RaiseError("cannot read file: %s", err.Error())
			return 0
		}
		L.Push(linesIterator(L, string(content)))
		return 1
	}))

	s.L.SetField(index, "close", s.L.NewFunction(func(L *lua.LState) int {
		if err := checkFile(L).Close(); err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}))

	s.L.SetField(mt, "__index", index)
	return mt
}

func linesIterator(L *lua.LState, content string) *lua.LFunction {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	idx := 0
	return L.NewFunction(func(L *lua.LState) int {
		if idx >= len(lines) {
			return 0
		}
		L.Push(lua.LString(lines[idx]))
		idx++
		return 1
	})
}

// injectEnvironmentAPI adds an os module limited to reading the environment
// and the clock.
func (s *Sandbox) injectEnvironmentAPI() {
	osMod := s.L.NewTable()

	s.L.SetField(osMod, "getenv", s.L.NewFunction(func(L *lua.LState) int {
		value, ok := os.LookupEnv(L.CheckString(1))
		if !ok {
			L.Push(lua.LNil)
		} else {
			L.Push(lua.LString(value))
		}
		return 1
	}))

	s.L.SetField(osMod, "time", s.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))

	s.L.SetField(osMod, "clock", s.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Since(s.started).Seconds()))
		return 1
	}))

	s.L.SetGlobal("os", osMod)
}

// injectUnsafeLibraries opens the io, os and debug standard libraries.
// This should only be used for trusted plugins.
func (s *Sandbox) injectUnsafeLibraries() {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.IoLibName, lua.OpenIo},
		{lua.OsLibName, lua.OpenOs},
		{lua.DebugLibName, lua.OpenDebug},
	} {
		s.L.Push(s.L.NewFunction(lib.fn))
		s.L.Push(lua.LString(lib.name))
		s.L.Call(1, 0)
	}
}

// CapabilityError is returned when a capability is not granted.
type CapabilityError struct {
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return "capability not granted: " + string(e.Capability)
}
