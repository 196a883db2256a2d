// Package quillservice coordinates the registry, the render engine and
// staged-asset storage behind one interface consumed by the HTTP API, the
// MCP server and the CLI.
package quillservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nibsbin/quillmark/internal/apperr"
	"github.com/nibsbin/quillmark/internal/checksum"
	"github.com/nibsbin/quillmark/internal/models"
	"github.com/nibsbin/quillmark/internal/registry"
	"github.com/nibsbin/quillmark/internal/storage"
	"github.com/nibsbin/quillmark/pkg/backend"
	"github.com/nibsbin/quillmark/pkg/engine"
	"github.com/nibsbin/quillmark/pkg/parse"
	"github.com/nibsbin/quillmark/pkg/quill"
)

// maxAssetBytes caps a single staged asset.
const maxAssetBytes = 10 << 20

// RenderRequest carries one render invocation.
type RenderRequest struct {
	Markdown string
	Quill    string            // overrides the document's QUILL tag
	Format   string            // output format, backend default when empty
	Assets   map[string][]byte // per-request render assets by name
}

// RenderResponse is the outcome of a render.
type RenderResponse struct {
	Quill     string             `json:"quill"`
	Artifacts []backend.Artifact `json:"artifacts"`
	Warnings  []string           `json:"warnings"`
}

// Service coordinates registry, engine and storage operations.
type Service struct {
	db       *registry.DB
	eng      *engine.Engine
	store    storage.Provider
	maxBytes int64
}

// NewService creates a new quill service. maxRenderBytes caps markdown
// input for parse and render; zero disables the service-level cap.
func NewService(db *registry.DB, eng *engine.Engine, store storage.Provider, maxRenderBytes int64) *Service {
	return &Service{db: db, eng: eng, store: store, maxBytes: maxRenderBytes}
}

// ListQuills returns catalog rows, filtered by the search query when given.
func (s *Service) ListQuills(_ context.Context, query string, limit int) ([]models.QuillInfo, error) {
	if query == "" {
		return s.db.List()
	}
	return s.db.Search(query, limit)
}

// GetQuill returns one catalog row.
func (s *Service) GetQuill(_ context.Context, name string) (*models.QuillInfo, error) {
	return s.db.Get(name)
}

// QuillSchema returns the JSON schema describing a registered quill's
// declared fields.
func (s *Service) QuillSchema(_ context.Context, name string) ([]byte, error) {
	q, ok := s.eng.Quill(name)
	if !ok {
		return nil, fmt.Errorf("quill %q: %w", name, apperr.ErrNotFound)
	}
	return q.SchemaJSON()
}

// Quill returns a registered quill by name.
func (s *Service) Quill(name string) (*quill.Quill, error) {
	q, ok := s.eng.Quill(name)
	if !ok {
		return nil, fmt.Errorf("quill %q: %w", name, apperr.ErrNotFound)
	}
	return q, nil
}

// ParseDocument parses markdown into a structured document. Failures are
// *parse.Error values carrying kind and position.
func (s *Service) ParseDocument(_ context.Context, markdown string) (*parse.Document, error) {
	if err := s.checkSize(len(markdown)); err != nil {
		return nil, err
	}
	return parse.Parse(markdown)
}

// Render parses markdown, resolves a workflow and renders artifacts.
// Staged shared assets are visible to the render; request assets override
// them name by name.
func (s *Service) Render(ctx context.Context, req RenderRequest) (*RenderResponse, error) {
	if err := s.checkSize(len(req.Markdown)); err != nil {
		return nil, err
	}
	doc, err := parse.Parse(req.Markdown)
	if err != nil {
		return nil, err
	}

	var wf *engine.Workflow
	if req.Quill != "" {
		wf, err = s.eng.Workflow(req.Quill)
	} else {
		var q *quill.Quill
		if q, err = s.eng.ResolveQuill(doc); err == nil {
			wf, err = s.eng.WorkflowFromQuill(q)
		}
	}
	if err != nil {
		return nil, mapEngineErr(err)
	}

	opts, err := s.renderOptions(req)
	if err != nil {
		return nil, err
	}
	res, err := wf.Render(ctx, doc, opts...)
	if err != nil {
		return nil, mapEngineErr(err)
	}
	return &RenderResponse{
		Quill:     wf.Quill().Name,
		Artifacts: res.Artifacts,
		Warnings:  res.Warnings,
	}, nil
}

// renderOptions layers request assets over the staged shared assets.
func (s *Service) renderOptions(req RenderRequest) ([]engine.RenderOption, error) {
	var opts []engine.RenderOption
	if req.Format != "" {
		opts = append(opts, engine.RenderWithFormat(backend.OutputFormat(req.Format)))
	}

	staged, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	for _, a := range staged {
		if _, override := req.Assets[a.Name]; override {
			continue
		}
		data, err := s.store.Read(a.Name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.RenderWithAsset(a.Name, data))
	}
	for name, data := range req.Assets {
		opts = append(opts, engine.RenderWithAsset(name, data))
	}
	return opts, nil
}

// StageAsset stores a shared render asset under its sanitized name.
func (s *Service) StageAsset(_ context.Context, name string, content []byte) (*models.AssetInfo, error) {
	clean := storage.SanitizeName(name)
	if clean == "" {
		return nil, fmt.Errorf("asset name %q: %w", name, apperr.ErrInvalid)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("empty asset content: %w", apperr.ErrInvalid)
	}
	if len(content) > maxAssetBytes {
		return nil, fmt.Errorf("asset exceeds %d bytes: %w", maxAssetBytes, apperr.ErrTooLarge)
	}
	if err := s.store.Write(clean, content); err != nil {
		return nil, err
	}
	return &models.AssetInfo{
		Name:       clean,
		Size:       int64(len(content)),
		Checksum:   checksum.Sum(content),
		ModifiedAt: time.Now().UTC(),
	}, nil
}

// ListAssets returns metadata for every staged asset.
func (s *Service) ListAssets(_ context.Context) ([]models.AssetInfo, error) {
	return s.store.List("")
}

// ReadAsset returns the raw bytes of one staged asset.
func (s *Service) ReadAsset(_ context.Context, name string) ([]byte, error) {
	clean := storage.SanitizeName(name)
	if clean == "" {
		return nil, fmt.Errorf("asset name %q: %w", name, apperr.ErrInvalid)
	}
	data, err := s.store.Read(clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("asset %q: %w", clean, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// DeleteAsset removes one staged asset.
func (s *Service) DeleteAsset(_ context.Context, name string) error {
	clean := storage.SanitizeName(name)
	if clean == "" {
		return fmt.Errorf("asset name %q: %w", name, apperr.ErrInvalid)
	}
	if err := s.store.Delete(clean); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("asset %q: %w", clean, apperr.ErrNotFound)
		}
		return err
	}
	return nil
}

// ApplyChange mirrors one registry change into the engine. Called for every
// change produced by the initial sync and the watcher.
func (s *Service) ApplyChange(c registry.Change) {
	if c.Quill != nil {
		s.eng.RegisterQuill(c.Quill)
		return
	}
	s.eng.RemoveQuill(c.Event.Name)
}

func (s *Service) checkSize(n int) error {
	if s.maxBytes > 0 && int64(n) > s.maxBytes {
		return fmt.Errorf("markdown exceeds %d bytes: %w", s.maxBytes, apperr.ErrTooLarge)
	}
	return nil
}

// mapEngineErr translates engine and backend sentinels into apperr kinds.
// Parse, validation and glue errors pass through for callers to surface
// with their structure intact.
func mapEngineErr(err error) error {
	switch {
	case errors.Is(err, engine.ErrQuillNotFound):
		return fmt.Errorf("%s: %w", err, apperr.ErrNotFound)
	case errors.Is(err, engine.ErrNoQuill):
		return fmt.Errorf("%s: %w", err, apperr.ErrInvalid)
	case errors.Is(err, backend.ErrUnsupportedFormat):
		return fmt.Errorf("%s: %w", err, apperr.ErrInvalid)
	default:
		return err
	}
}
