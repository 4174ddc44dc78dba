package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/plugcore/internal/config/loader"
	"github.com/dshills/plugcore/internal/logging"
	"github.com/dshills/plugcore/internal/plugin"
	plua "github.com/dshills/plugcore/internal/plugin/lua"
)

// FileName is the config file looked up in the working directory.
const FileName = "plugcore.toml"

// Config is the decoded configuration. Mutating it does not touch any file.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Plugins PluginsConfig `toml:"plugins"`
	Lua     LuaConfig     `toml:"lua"`
	Editor  EditorConfig  `toml:"editor"`

	source string
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error or off.
	Level string `toml:"level"`

	// JSON selects JSON log output.
	JSON bool `toml:"json"`
}

// PluginsConfig holds plugin discovery settings.
type PluginsConfig struct {
	// Paths are the plugin search paths. Empty means the catalog defaults.
	Paths []string `toml:"paths"`

	// Enabled names the plugins loaded at startup.
	Enabled []string `toml:"enabled"`
}

// LuaConfig holds limits applied to every Lua plugin state.
type LuaConfig struct {
	// CallStackSize is the maximum Lua call depth.
	CallStackSize int `toml:"call_stack_size"`

	// Timeout bounds each script execution. Zero disables it.
	Timeout Duration `toml:"timeout"`
}

// EditorConfig holds editor host settings.
type EditorConfig struct {
	// Name is the editor name exposed to plugins.
	Name string `toml:"name"`

	// Settings are passed to the editor and read by plugins.
	Settings map[string]any `toml:"settings"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Lua: LuaConfig{
			CallStackSize: plua.DefaultCallStackSize,
			Timeout:       Duration(plua.DefaultExecutionTimeout),
		},
		Editor: EditorConfig{
			Name:     "plugcore",
			Settings: make(map[string]any),
		},
	}
}

// Option configures Load.
type Option func(*options)

type options struct {
	path      string
	fs        loader.FileSystem
	envPrefix string
	useEnv    bool
}

// WithPath loads path instead of searching DefaultPaths. The file must exist.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithFS reads config files through fsys.
func WithFS(fsys loader.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithEnv enables or disables environment overrides.
func WithEnv(enable bool) Option {
	return func(o *options) {
		o.useEnv = enable
	}
}

// DefaultPaths returns the config files searched when no path is given.
// The first existing file is used.
func DefaultPaths() []string {
	paths := []string{FileName}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "plugcore", "config.toml"))
	}
	return paths
}

// Load reads the defaults, the config file and the environment, in that
// order, and validates the result.
func Load(opts ...Option) (*Config, error) {
	o := options{
		fs:        loader.DefaultFS(),
		envPrefix: loader.DefaultEnvPrefix,
		useEnv:    true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	path, err := o.findFile()
	if err != nil {
		return nil, err
	}

	var merged map[string]any
	if path != "" {
		fileData, err := loader.NewTOMLLoaderWithFS(o.fs, path).Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, fileData)
	}

	if o.useEnv {
		envData, err := newEnvLoader(o.envPrefix).Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		merged = loader.DeepMerge(merged, envData)
	}

	cfg := Default()
	if err := decode(path, merged, cfg); err != nil {
		return nil, err
	}
	cfg.source = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *options) findFile() (string, error) {
	if o.path != "" {
		if !loader.Exists(o.fs, o.path) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, o.path)
		}
		return o.path, nil
	}

	for _, p := range DefaultPaths() {
		if loader.Exists(o.fs, p) {
			return p, nil
		}
	}
	return "", nil
}

func newEnvLoader(prefix string) *loader.EnvLoader {
	return loader.NewEnvLoader(prefix).
		AddString("log.level").
		AddString("lua.timeout").
		AddString("editor.name").
		AddList("plugins.paths").
		AddList("plugins.enabled")
}

// decode applies the merged raw map onto cfg. Keys absent from data keep
// their current value; unknown keys are rejected.
func decode(source string, data map[string]any, cfg *Config) error {
	if len(data) == 0 {
		return nil
	}
	if source == "" {
		source = "<environment>"
	}

	raw, err := toml.Marshal(data)
	if err != nil {
		return &ParseError{Path: source, Message: err.Error(), Err: err}
	}

	dec := toml.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		msg := err.Error()
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			msg = strict.String()
		}
		return &ParseError{Path: source, Message: msg, Err: err}
	}
	return nil
}

// Validate checks settings that decode cleanly but are out of range.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, &ValueError{Path: "log.level", Reason: err.Error(), Err: err})
	}
	if c.Lua.CallStackSize < 0 {
		errs = append(errs, &ValueError{Path: "lua.call_stack_size", Reason: "must not be negative"})
	}
	if c.Lua.Timeout < 0 {
		errs = append(errs, &ValueError{Path: "lua.timeout", Reason: "must not be negative"})
	}
	for _, name := range c.Plugins.Enabled {
		if !plugin.ID(name).Valid() {
			errs = append(errs, &ValueError{Path: "plugins.enabled", Reason: fmt.Sprintf("invalid plugin name %q", name)})
		}
	}

	return errors.Join(errs...)
}

// Source returns the file the configuration was loaded from, or "" when
// only defaults and the environment were used.
func (c *Config) Source() string {
	return c.source
}

// LogLevel returns the parsed log level. Validate guarantees it parses.
func (c *Config) LogLevel() hclog.Level {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return hclog.Info
	}
	return level
}

// Logger builds the root logger described by the [log] section.
func (c *Config) Logger(output io.Writer) hclog.Logger {
	return logging.New(logging.Options{
		Name:   "plugcore",
		Level:  c.LogLevel(),
		JSON:   c.Log.JSON,
		Output: output,
	})
}

// LuaOptions returns the state options for Lua plugins.
func (c *Config) LuaOptions() []plua.StateOption {
	return []plua.StateOption{
		plua.WithCallStackSize(c.Lua.CallStackSize),
		plua.WithExecutionTimeout(c.Lua.Timeout.Std()),
	}
}
