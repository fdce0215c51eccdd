// Package storage defines the project file-tree abstraction used by the
// generator and the enrichment commands.
package storage

import "github.com/theoryandpractice/sitekit/internal/models"

// Provider is the interface for project file operations. All paths are
// relative to the project root.
type Provider interface {
	// List returns metadata for every file under dir whose extension is in
	// exts (all files when exts is empty).
	List(dir string, exts ...string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Root returns the absolute project root.
	Root() string
}
