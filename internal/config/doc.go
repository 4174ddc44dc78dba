// Package config loads the plugcore configuration.
//
// Configuration is layered, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command line flags      │  ← applied by the caller
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← PLUGCORE_LOG_LEVEL, ...
//	├─────────────────────────────┤
//	│  2. Config file             │  ← plugcore.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// The file is TOML:
//
//	[log]
//	level = "info"
//	json = false
//
//	[plugins]
//	paths = ["./plugins"]
//	enabled = ["typing", "heading"]
//
//	[lua]
//	call_stack_size = 120
//	timeout = "5s"
//
//	[editor]
//	name = "plugcore"
//
//	[editor.settings]
//	"heading.levels" = 3
//
// # Sub-packages
//
//   - loader: TOML file and environment variable loading
package config
