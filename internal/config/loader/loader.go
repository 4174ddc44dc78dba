// Package loader reads raw configuration maps from TOML files and the
// environment.
//
// Loaders return nested map[string]any values keyed by section. The config
// package merges them in priority order and decodes the result.
package loader

import (
	"io/fs"
	"os"
)

// Loader is implemented by configuration sources.
type Loader interface {
	// Load reads the source. It returns nil, nil when the source does not
	// exist.
	Load() (map[string]any, error)
}

// FileSystem is the file access loaders need. Tests substitute an
// in-memory implementation.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// DefaultFS returns the OS file system.
func DefaultFS() FileSystem {
	return OSFS{}
}

// Exists reports whether path exists in fsys.
func Exists(fsys FileSystem, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}
