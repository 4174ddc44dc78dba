package config

import (
	"bytes"
	"io/fs"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/plugcore/internal/config/loader"
	plua "github.com/dshills/plugcore/internal/plugin/lua"
)

type memFS map[string]string

func (m memFS) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(data), nil
}

func (m memFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m[path]; !ok {
		return nil, fs.ErrNotExist
	}
	return nil, nil
}

var _ loader.FileSystem = memFS{}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
	assert.Empty(t, cfg.Plugins.Paths)
	assert.Equal(t, plua.DefaultCallStackSize, cfg.Lua.CallStackSize)
	assert.Equal(t, plua.DefaultExecutionTimeout, cfg.Lua.Timeout.Std())
	assert.Equal(t, "plugcore", cfg.Editor.Name)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	fsys := memFS{"/etc/plugcore.toml": `
[log]
level = "debug"
json = true

[plugins]
paths = ["/opt/plugins", "./plugins"]
enabled = ["typing", "heading"]

[lua]
call_stack_size = 64
timeout = "250ms"

[editor]
name = "writer"

[editor.settings]
"heading.levels" = 2
`}

	cfg, err := Load(WithFS(fsys), WithPath("/etc/plugcore.toml"), WithEnv(false))
	require.NoError(t, err)

	assert.Equal(t, "/etc/plugcore.toml", cfg.Source())
	assert.Equal(t, hclog.Debug, cfg.LogLevel())
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, []string{"/opt/plugins", "./plugins"}, cfg.Plugins.Paths)
	assert.Equal(t, []string{"typing", "heading"}, cfg.Plugins.Enabled)
	assert.Equal(t, 64, cfg.Lua.CallStackSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Lua.Timeout.Std())
	assert.Equal(t, "writer", cfg.Editor.Name)
	assert.Equal(t, int64(2), cfg.Editor.Settings["heading.levels"])
}

func TestLoadKeepsDefaults(t *testing.T) {
	fsys := memFS{FileName: "[log]\njson = true\n"}

	cfg, err := Load(WithFS(fsys), WithEnv(false))
	require.NoError(t, err)

	assert.Equal(t, FileName, cfg.Source())
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, plua.DefaultCallStackSize, cfg.Lua.CallStackSize)
}

func TestLoadNoFile(t *testing.T) {
	cfg, err := Load(WithFS(memFS{}), WithEnv(false))
	require.NoError(t, err)

	assert.Empty(t, cfg.Source())
	assert.Equal(t, Default().Log, cfg.Log)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(WithFS(memFS{}), WithPath("/nope.toml"), WithEnv(false))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PLUGCORE_LOG_LEVEL", "warn")
	t.Setenv("PLUGCORE_LUA_TIMEOUT", "1s")
	t.Setenv("PLUGCORE_PLUGINS_ENABLED", "clipboard,enter")

	fsys := memFS{"/c.toml": `
[log]
level = "debug"

[plugins]
enabled = ["typing"]
paths = ["/opt/plugins"]
`}

	cfg, err := Load(WithFS(fsys), WithPath("/c.toml"))
	require.NoError(t, err)

	assert.Equal(t, hclog.Warn, cfg.LogLevel())
	assert.Equal(t, time.Second, cfg.Lua.Timeout.Std())
	assert.Equal(t, []string{"clipboard", "enter"}, cfg.Plugins.Enabled)
	assert.Equal(t, []string{"/opt/plugins"}, cfg.Plugins.Paths)
}

func TestLoadEnvironmentPrefix(t *testing.T) {
	t.Setenv("CUSTOM_EDITOR_NAME", "custom")

	cfg, err := Load(WithFS(memFS{}), WithEnvPrefix("CUSTOM_"))
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Editor.Name)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "syntax",
			content: "[log\nlevel = 1",
			check: func(t *testing.T, err error) {
				var perr *ParseError
				require.ErrorAs(t, err, &perr)
				assert.Equal(t, "/c.toml", perr.Path)
			},
		},
		{
			name:    "unknown key",
			content: "[lua]\ninstruction_limit = 5\n",
			check: func(t *testing.T, err error) {
				var perr *ParseError
				require.ErrorAs(t, err, &perr)
				assert.Contains(t, perr.Error(), "instruction_limit")
			},
		},
		{
			name:    "wrong type",
			content: "[lua]\ncall_stack_size = \"deep\"\n",
			check: func(t *testing.T, err error) {
				var perr *ParseError
				assert.ErrorAs(t, err, &perr)
			},
		},
		{
			name:    "bad duration",
			content: "[lua]\ntimeout = \"soon\"\n",
			check: func(t *testing.T, err error) {
				var perr *ParseError
				assert.ErrorAs(t, err, &perr)
			},
		},
		{
			name:    "log level",
			content: "[log]\nlevel = \"loud\"\n",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidLogLevel)
				assert.Contains(t, err.Error(), "log.level")
			},
		},
		{
			name:    "negative values",
			content: "[lua]\ncall_stack_size = -1\ntimeout = \"-1s\"\n",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidValue)
				assert.Contains(t, err.Error(), "lua.call_stack_size")
				assert.Contains(t, err.Error(), "lua.timeout")
			},
		},
		{
			name:    "plugin name",
			content: "[plugins]\nenabled = [\"Bad Name\"]\n",
			check: func(t *testing.T, err error) {
				var verr *ValueError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "plugins.enabled", verr.Path)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(WithFS(memFS{"/c.toml": tt.content}), WithPath("/c.toml"), WithEnv(false))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "error"

	var buf bytes.Buffer
	logger := cfg.Logger(&buf)
	logger.Warn("hidden")
	logger.Error("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "plugcore: shown")
}

func TestLuaOptions(t *testing.T) {
	cfg := Default()
	cfg.Lua.CallStackSize = 10
	cfg.Lua.Timeout = Duration(time.Second)

	state, err := plua.NewState(cfg.LuaOptions()...)
	require.NoError(t, err)
	defer state.Close()

	assert.False(t, state.IsClosed())
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("later")))
}
