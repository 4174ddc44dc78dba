package main

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/dshills/plugcore/internal/config"
	"github.com/dshills/plugcore/internal/editor"
	"github.com/dshills/plugcore/internal/plugin/catalog"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	pluginDirs []string
}

// app is the state built before a subcommand runs.
type app struct {
	cfg     *config.Config
	logger  hclog.Logger
	catalog *catalog.Catalog[*editor.Editor]
}

func newRootCmd() *cobra.Command {
	var flags globalFlags
	a := &app{}

	root := &cobra.Command{
		Use:   "plugcore",
		Short: "Load editor plugins and their dependencies",
		Long: `plugcore resolves editor plugins and their requires, then loads them
into an editor host with every dependency constructed first.

Plugins are built in Go or written in Lua and discovered in the plugin
search paths.

Examples:
  plugcore list                       # Show known plugins
  plugcore plan heading clipboard     # Show the construction order
  plugcore load --exec "input hi" typing`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, flags)
		},
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to the configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")
	root.PersistentFlags().StringArrayVarP(&flags.pluginDirs, "plugins-dir", "p", nil, "plugin search path (repeatable)")

	root.AddCommand(
		newListCmd(a),
		newPlanCmd(a),
		newLoadCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and discovers
// plugins.
func (a *app) setup(cmd *cobra.Command, flags globalFlags) error {
	var opts []config.Option
	if flags.configPath != "" {
		opts = append(opts, config.WithPath(flags.configPath))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if len(flags.pluginDirs) > 0 {
		cfg.Plugins.Paths = flags.pluginDirs
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = cfg.Logger(cmd.ErrOrStderr())
	if src := cfg.Source(); src != "" {
		a.logger.Debug("configuration loaded", "path", src)
	}

	catOpts := []catalog.Option{
		catalog.WithHostVersion(editor.DefaultVersion),
		catalog.WithLogger(a.logger.Named("catalog")),
		catalog.WithLuaOptions(cfg.LuaOptions()...),
	}
	if len(cfg.Plugins.Paths) > 0 {
		catOpts = append(catOpts, catalog.WithPaths(cfg.Plugins.Paths...))
	}

	a.catalog = catalog.New[*editor.Editor](catOpts...).Bind(editor.BindLua)
	if err := editor.Builtins(a.catalog); err != nil {
		return fmt.Errorf("registering builtin plugins: %w", err)
	}
	if _, err := a.catalog.Discover(); err != nil {
		a.logger.Warn("some plugin paths could not be read", "error", err)
	}
	return nil
}

// newEditor creates an editor configured from the [editor] section.
func (a *app) newEditor() *editor.Editor {
	return editor.New(
		editor.WithName(a.cfg.Editor.Name),
		editor.WithLogger(a.logger),
		editor.WithSettings(a.cfg.Editor.Settings),
	)
}

// targets returns the plugin names a command acts on: the arguments, then
// the enabled plugins, then every known plugin.
func (a *app) targets(args []string) []string {
	if len(args) > 0 {
		return args
	}
	if len(a.cfg.Plugins.Enabled) > 0 {
		return a.cfg.Plugins.Enabled
	}
	var names []string
	for _, e := range a.catalog.Entries() {
		if e.Err == nil {
			names = append(names, e.Name)
		}
	}
	return names
}
