// Package manifest reads and validates plugin manifests.
//
// A manifest describes one plugin directory: its identity, the Lua entry
// point or built-in factory implementing it, the plugins it requires and the
// sandbox capabilities it asks for. Manifests are JSON (plugin.json) or TOML
// (plugin.toml); both formats use the same keys.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/semver"

	"github.com/dshills/plugcore/internal/plugin"
	plua "github.com/dshills/plugcore/internal/plugin/lua"
)

// Manifest file names, in lookup order.
const (
	JSONFile = "plugin.json"
	TOMLFile = "plugin.toml"
)

// DefaultMain is the Lua entry point used when a manifest names none.
const DefaultMain = "init.lua"

// Manifest describes a plugin's metadata and requirements.
type Manifest struct {
	// Identity
	Name        string `json:"name" toml:"name"`               // Plugin ID (e.g., "clipboard")
	Version     string `json:"version" toml:"version"`         // Semver without "v" (e.g., "1.2.0")
	DisplayName string `json:"displayName" toml:"displayName"` // Human-readable name
	Description string `json:"description" toml:"description"`
	Author      string `json:"author" toml:"author"`
	License     string `json:"license" toml:"license"` // SPDX license identifier
	Homepage    string `json:"homepage" toml:"homepage"`

	// Implementation: a Lua entry point or the name of a built-in factory.
	Main    string `json:"main" toml:"main"`
	Builtin string `json:"builtin" toml:"builtin"`

	// Requirements
	Requires       []string `json:"requires" toml:"requires"`             // Plugin names, loaded first, in order
	MinHostVersion string   `json:"minHostVersion" toml:"minHostVersion"` // Minimum host version

	// Capabilities requested from the Lua sandbox
	Capabilities []plua.Capability `json:"capabilities" toml:"capabilities"`

	// Directory holding the manifest
	dir string
}

// Validation errors.
var (
	ErrNotFound          = errors.New("manifest: not found")
	ErrUnknownFormat     = errors.New("manifest: unknown format")
	ErrMissingName       = errors.New("manifest: name is required")
	ErrInvalidName       = errors.New("manifest: name must be lowercase alphanumeric with dots or hyphens")
	ErrMissingVersion    = errors.New("manifest: version is required")
	ErrInvalidVersion    = errors.New("manifest: version must be valid semver")
	ErrInvalidMain       = errors.New("manifest: main must be a .lua file")
	ErrMainAndBuiltin    = errors.New("manifest: main and builtin are mutually exclusive")
	ErrInvalidCapability = errors.New("manifest: invalid capability")
	ErrInvalidRequire    = errors.New("manifest: invalid requirement")
	ErrSelfRequire       = errors.New("manifest: plugin requires itself")
	ErrDuplicateRequire  = errors.New("manifest: duplicate requirement")
	ErrIncompatibleHost  = errors.New("manifest: incompatible host version")
)

// Load loads and validates a manifest file. The format is chosen by the
// file extension.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	switch ext := filepath.Ext(path); ext {
	case ".json":
		err = json.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	m.dir = filepath.Dir(path)
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// LoadFromDir loads the manifest of a plugin directory, preferring
// plugin.json over plugin.toml.
func LoadFromDir(dir string) (*Manifest, error) {
	for _, name := range []string{JSONFile, TOMLFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat manifest: %w", err)
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNotFound, dir)
}

// NewMinimal creates a manifest for a single-file Lua plugin.
func NewMinimal(name, path string) *Manifest {
	return &Manifest{
		Name:    name,
		Version: "0.0.0",
		Main:    filepath.Base(path),
		dir:     filepath.Dir(path),
	}
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Main == "" && m.Builtin == "" {
		m.Main = DefaultMain
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !plugin.ID(m.Name).Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}

	if m.Version == "" {
		return ErrMissingVersion
	}
	if !validVersion(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}
	if m.MinHostVersion != "" && !validVersion(m.MinHostVersion) {
		return fmt.Errorf("%w: minHostVersion %s", ErrInvalidVersion, m.MinHostVersion)
	}

	if m.Main != "" && m.Builtin != "" {
		return ErrMainAndBuiltin
	}
	if m.Main != "" && filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}

	for _, c := range m.Capabilities {
		if !plua.KnownCapability(c) {
			return fmt.Errorf("%w: %s", ErrInvalidCapability, c)
		}
	}

	seen := make(map[string]bool, len(m.Requires))
	for i, req := range m.Requires {
		switch {
		case !plugin.ID(req).Valid():
			return fmt.Errorf("%w at index %d: %q", ErrInvalidRequire, i, req)
		case req == m.Name:
			return fmt.Errorf("%w: %s", ErrSelfRequire, req)
		case seen[req]:
			return fmt.Errorf("%w: %s", ErrDuplicateRequire, req)
		}
		seen[req] = true
	}

	return nil
}

// validVersion accepts full MAJOR.MINOR.PATCH semver with optional
// pre-release and build metadata, without a "v" prefix.
func validVersion(v string) bool {
	if strings.HasPrefix(v, "v") {
		return false
	}
	c := "v" + v
	if !semver.IsValid(c) {
		return false
	}
	// Canonical fills in shorthand like v1.2, and drops build metadata.
	core, _, _ := strings.Cut(c, "+")
	return semver.Canonical(c) == core
}

// CompatibleWith reports whether a host at hostVersion satisfies the
// manifest's minimum host version. Non-semver host versions (e.g. "dev")
// are treated as compatible.
func (m *Manifest) CompatibleWith(hostVersion string) error {
	if m.MinHostVersion == "" {
		return nil
	}
	host := "v" + strings.TrimPrefix(hostVersion, "v")
	if !semver.IsValid(host) {
		return nil
	}
	if semver.Compare(host, "v"+m.MinHostVersion) < 0 {
		return fmt.Errorf("%w: %s requires %s, host is %s", ErrIncompatibleHost, m.Name, m.MinHostVersion, hostVersion)
	}
	return nil
}

// ID returns the plugin ID declared by the manifest.
func (m *Manifest) ID() plugin.ID {
	return plugin.ID(m.Name)
}

// Dir returns the directory holding the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}

// MainPath returns the full path to the main Lua file, or "" for built-in
// plugins.
func (m *Manifest) MainPath() string {
	if m.Main == "" {
		return ""
	}
	return filepath.Join(m.dir, m.Main)
}

// IsBuiltin returns true if the plugin is implemented by a Go factory.
func (m *Manifest) IsBuiltin() bool {
	return m.Builtin != ""
}

// HasCapability returns true if the plugin requests the capability.
func (m *Manifest) HasCapability(c plua.Capability) bool {
	return slices.Contains(m.Capabilities, c)
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	display := m.DisplayName
	if display == "" {
		display = m.Name
	}
	return fmt.Sprintf("%s v%s", display, m.Version)
}

// Clone creates a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	clone := *m
	clone.Requires = slices.Clone(m.Requires)
	clone.Capabilities = slices.Clone(m.Capabilities)
	return &clone
}
