// Package engine ties the pipeline together. An Engine holds registries of
// quills and output backends and hands out workflows: immutable snapshots
// that run parse output through schema defaults, validation, guillemet
// preprocessing, glue composition, and backend compilation.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nibsbin/quillmark/pkg/backend"
	"github.com/nibsbin/quillmark/pkg/glue"
	"github.com/nibsbin/quillmark/pkg/parse"
	"github.com/nibsbin/quillmark/pkg/quill"
)

var (
	// ErrQuillNotFound reports a quill name with no registration.
	ErrQuillNotFound = errors.New("quill not found")
	// ErrBackendNotFound reports a backend name with no registration.
	ErrBackendNotFound = errors.New("backend not found")
	// ErrNoQuill reports a document without a QUILL tag on an engine
	// without a default quill.
	ErrNoQuill = errors.New("no quill selected")
)

// Engine is the registry half of the pipeline. Registration is safe for
// concurrent use with workflow construction and rendering.
type Engine struct {
	mu           sync.RWMutex
	backends     map[string]backend.Backend
	quills       map[string]*quill.Quill
	defaultQuill string
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultQuill sets the quill used when a document names none.
func WithDefaultQuill(name string) Option {
	return func(e *Engine) { e.defaultQuill = name }
}

// WithLogger sets the logger for engine and workflow diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		backends: make(map[string]backend.Backend),
		quills:   make(map[string]*quill.Quill),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterBackend adds b to the registry, replacing any backend with the
// same name.
func (e *Engine) RegisterBackend(b backend.Backend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backends[b.Name()] = b
}

// RegisterQuill adds q to the registry, replacing any quill with the same
// name.
func (e *Engine) RegisterQuill(q *quill.Quill) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quills[q.Name] = q
}

// RemoveQuill drops a quill. Removing an unknown name is a no-op.
func (e *Engine) RemoveQuill(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.quills, name)
}

// Quill returns a registered quill by name.
func (e *Engine) Quill(name string) (*quill.Quill, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	q, ok := e.quills[name]
	return q, ok
}

// Quills returns the registered quill names, sorted.
func (e *Engine) Quills() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.quills))
	for name := range e.quills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveQuill picks the quill for doc: the document's QUILL tag when
// present, the engine default otherwise.
func (e *Engine) ResolveQuill(doc *parse.Document) (*quill.Quill, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	name := doc.Quill()
	if name == "" {
		name = e.defaultQuill
	}
	if name == "" {
		return nil, fmt.Errorf("engine: %w: document has no QUILL tag and no default is configured", ErrNoQuill)
	}
	q, ok := e.quills[name]
	if !ok {
		return nil, fmt.Errorf("engine: %w: %s", ErrQuillNotFound, name)
	}
	return q, nil
}

// Workflow builds a workflow for a registered quill.
func (e *Engine) Workflow(name string) (*Workflow, error) {
	e.mu.RLock()
	q, ok := e.quills[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine: %w: %s", ErrQuillNotFound, name)
	}
	return e.WorkflowFromQuill(q)
}

// WorkflowFromQuill builds a workflow for q, which need not be registered.
// The quill's backend must be. The returned workflow is an immutable
// snapshot: later registry changes do not affect it.
func (e *Engine) WorkflowFromQuill(q *quill.Quill) (*Workflow, error) {
	e.mu.RLock()
	b, ok := e.backends[q.Backend]
	logger := e.logger
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine: %w: %s (wanted by quill %s)", ErrBackendNotFound, q.Backend, q.Name)
	}
	g, err := glue.New(q.Glue())
	if err != nil {
		return nil, fmt.Errorf("engine: quill %s: %w", q.Name, err)
	}
	return &Workflow{
		quill:   q,
		backend: b,
		glue:    g,
		logger:  logger,
	}, nil
}
