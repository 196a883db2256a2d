// Package models defines the domain types for Quillmark.
package models

import "time"

// QuillInfo is the registry's view of one quill bundle on disk.
type QuillInfo struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Backend     string    `json:"backend"`
	Description string    `json:"description,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Size        int64     `json:"size"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// Quill event types published over SSE.
const (
	QuillAdded   = "quill.added"
	QuillUpdated = "quill.updated"
	QuillRemoved = "quill.removed"
)

// QuillEvent announces a registry change.
type QuillEvent struct {
	Type string    `json:"type"`
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}
