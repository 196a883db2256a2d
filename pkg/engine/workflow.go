package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nibsbin/quillmark/pkg/backend"
	"github.com/nibsbin/quillmark/pkg/glue"
	"github.com/nibsbin/quillmark/pkg/parse"
	"github.com/nibsbin/quillmark/pkg/quill"
)

// Workflow is one quill bound to its backend and parsed glue template.
// Workflows are immutable and safe for concurrent use.
type Workflow struct {
	quill   *quill.Quill
	backend backend.Backend
	glue    *glue.Glue
	logger  *slog.Logger
}

// Quill returns the workflow's quill.
func (w *Workflow) Quill() *quill.Quill { return w.quill }

// RenderResult is the outcome of one render.
type RenderResult struct {
	Artifacts []backend.Artifact
	Warnings  []string
}

// RenderOption adjusts a single render call.
type RenderOption func(*backend.Options)

// RenderWithFormat selects the artifact format. The backend default is
// used when unset.
func RenderWithFormat(f backend.OutputFormat) RenderOption {
	return func(o *backend.Options) { o.Format = f }
}

// RenderWithAsset attaches a file to this render only. Render assets
// shadow same-named quill assets.
func RenderWithAsset(name string, data []byte) RenderOption {
	return func(o *backend.Options) {
		if o.Assets == nil {
			o.Assets = make(map[string][]byte)
		}
		o.Assets[name] = data
	}
}

// ProcessGlue runs the glue stage only: schema defaults, validation,
// guillemet preprocessing, template composition. No backend is involved.
func (w *Workflow) ProcessGlue(doc *parse.Document) (string, error) {
	if err := w.quill.ValidateDocument(doc); err != nil {
		return "", err
	}
	ctx := glue.Context(w.quill.ApplyDefaults(doc))
	preprocessBodies(ctx)
	return w.glue.Compose(ctx)
}

// Render runs the full pipeline on an already-parsed document.
func (w *Workflow) Render(ctx context.Context, doc *parse.Document, opts ...RenderOption) (*RenderResult, error) {
	var o backend.Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Format != "" && !backend.Supports(w.backend, o.Format) {
		return nil, fmt.Errorf("engine: backend %s: %w: %s", w.backend.Name(), backend.ErrUnsupportedFormat, o.Format)
	}

	source, err := w.ProcessGlue(doc)
	if err != nil {
		return nil, err
	}
	artifacts, err := w.backend.Compile(ctx, source, w.quill, o)
	if err != nil {
		return nil, err
	}
	w.logger.Debug("render: compiled",
		slog.String("quill", w.quill.Name),
		slog.String("backend", w.backend.Name()),
		slog.Int("artifacts", len(artifacts)))
	return &RenderResult{Artifacts: artifacts, Warnings: w.lint(doc, o)}, nil
}

// RenderMarkdown parses markdown and renders it in one call.
func (w *Workflow) RenderMarkdown(ctx context.Context, markdown string, opts ...RenderOption) (*RenderResult, error) {
	doc, err := parse.Parse(markdown)
	if err != nil {
		return nil, err
	}
	return w.Render(ctx, doc, opts...)
}

// Render parses markdown, resolves its quill, and renders. It is the
// one-call path used by the service layers.
func (e *Engine) Render(ctx context.Context, markdown string, opts ...RenderOption) (*RenderResult, error) {
	doc, err := parse.Parse(markdown)
	if err != nil {
		return nil, err
	}
	q, err := e.ResolveQuill(doc)
	if err != nil {
		return nil, err
	}
	w, err := e.WorkflowFromQuill(q)
	if err != nil {
		return nil, err
	}
	return w.Render(ctx, doc, opts...)
}

// preprocessBodies rewrites guillemet markers in the global body and every
// card body. The parse core keeps bodies verbatim, so this is the only
// place the conversion happens.
func preprocessBodies(ctx map[string]any) {
	if body, ok := ctx[parse.FieldBody].(string); ok {
		ctx[parse.FieldBody] = glue.Guillemets(body)
	}
	cards, _ := ctx[parse.FieldCards].([]any)
	for _, item := range cards {
		card, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if body, ok := card[parse.FieldBody].(string); ok {
			card[parse.FieldBody] = glue.Guillemets(body)
		}
	}
}

// lint collects non-fatal observations: document fields the quill schema
// does not declare, and render assets that shadow quill assets.
func (w *Workflow) lint(doc *parse.Document, o backend.Options) []string {
	var warnings []string
	if schema := w.quill.Schema(); len(schema) > 0 {
		names := make([]string, 0, len(doc.Fields()))
		for name := range doc.Fields() {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if name == parse.FieldBody || name == parse.FieldCards {
				continue
			}
			if _, ok := schema[name]; !ok {
				warnings = append(warnings, fmt.Sprintf("field %q is not declared by quill %s", name, w.quill.Name))
			}
		}
	}
	assets := make([]string, 0, len(o.Assets))
	for name := range o.Assets {
		assets = append(assets, name)
	}
	sort.Strings(assets)
	for _, name := range assets {
		if _, ok := w.quill.Asset(name); ok {
			warnings = append(warnings, fmt.Sprintf("render asset %q shadows a quill asset", name))
		}
	}
	return warnings
}
