// Package storage defines the artifact file-system abstraction.
package storage

import "time"

// FileMetadata describes a stored artifact file.
type FileMetadata struct {
	Path      string
	Checksum  string
	Size      int64
	UpdatedAt time.Time
}

// Provider is the interface for artifact file operations. All paths are
// slash-separated and relative to the artifacts root.
type Provider interface {
	// Exists reports whether a regular file is present at path.
	Exists(path string) (bool, error)
	// List returns metadata for every file with the given extension under dir.
	List(dir, ext string) ([]FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path. A missing file yields an error wrapping os.ErrNotExist.
	Delete(path string) error
	// Abs resolves path to an absolute file-system path for diagnostics.
	Abs(path string) (string, error)
}
