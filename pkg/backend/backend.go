// Package backend defines the contract between the engine and output
// backends. A backend takes composed glue source plus the quill it came
// from and compiles artifacts in one or more output formats.
package backend

import (
	"context"
	"errors"

	"github.com/nibsbin/quillmark/pkg/quill"
)

// ErrUnsupportedFormat reports a format the backend cannot produce.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// OutputFormat names an artifact encoding.
type OutputFormat string

const (
	FormatHTML OutputFormat = "html"
	FormatText OutputFormat = "text"
)

// Artifact is one rendered output file.
type Artifact struct {
	Format OutputFormat `json:"format"`
	Name   string       `json:"name"`
	Bytes  []byte       `json:"data"`
}

// Options carries per-render settings chosen by the caller.
type Options struct {
	// Format selects the artifact encoding; empty means the backend default.
	Format OutputFormat
	// Assets are extra files available during compilation, keyed by name.
	// They take precedence over same-named quill assets.
	Assets map[string][]byte
}

// Backend compiles composed glue source into artifacts.
type Backend interface {
	Name() string
	Formats() []OutputFormat
	Compile(ctx context.Context, glueSource string, q *quill.Quill, opts Options) ([]Artifact, error)
}

// Supports reports whether b can produce format f.
func Supports(b Backend, f OutputFormat) bool {
	for _, have := range b.Formats() {
		if have == f {
			return true
		}
	}
	return false
}
