// Package storage implements rooted file storage with atomic writes. It
// backs the staged-asset store and the CLI's artifact output.
package storage

import "github.com/nibsbin/quillmark/internal/models"

// Provider is the interface for file operations under a fixed root.
type Provider interface {
	// List returns metadata for every regular file under dir (relative to
	// the root), in walk order.
	List(dir string) ([]models.AssetInfo, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the root).
	Delete(path string) error
}
