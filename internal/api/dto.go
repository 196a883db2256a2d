package api

import (
	"github.com/nibsbin/quillmark/internal/models"
	"github.com/nibsbin/quillmark/internal/quillservice"
)

// ParseRequest is the request body for parsing markdown.
type ParseRequest struct {
	Markdown string `json:"markdown" example:"---\ntitle: Hi\n---\nBody" validate:"required"`
}

// RenderRequest is the request body for rendering markdown. Asset values
// are base64-encoded file contents keyed by name.
type RenderRequest struct {
	Markdown string            `json:"markdown" validate:"required"`
	Quill    string            `json:"quill,omitempty" example:"letter"`
	Format   string            `json:"format,omitempty" example:"html"`
	Assets   map[string]string `json:"assets,omitempty"`
}

// RenderResponse is the render outcome (aliased from the domain layer).
// Artifact bytes travel base64-encoded.
type RenderResponse = quillservice.RenderResponse

// QuillListResponse wraps quill catalog listings.
type QuillListResponse struct {
	Quills []models.QuillInfo `json:"quills" validate:"required"`
	Total  int                `json:"total" example:"3" validate:"required"`
}

// UploadAssetRequest is the JSON request body for staging an asset.
// Content is base64-encoded.
type UploadAssetRequest struct {
	Name    string `json:"name" example:"logo.png" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// AssetListResponse wraps staged asset listings.
type AssetListResponse struct {
	Assets []models.AssetInfo `json:"assets" validate:"required"`
}

// ParseErrorResponse is the 422 envelope for structured parse failures.
type ParseErrorResponse struct {
	Error  string `json:"error" validate:"required"`
	Kind   string `json:"kind" example:"yaml_syntax" validate:"required"`
	Line   int    `json:"line,omitempty" example:"3"`
	Column int    `json:"column,omitempty" example:"7"`
	Hint   string `json:"hint,omitempty"`
}

// ValidationErrorResponse is the 422 envelope for schema validation
// failures.
type ValidationErrorResponse struct {
	Error    string   `json:"error" validate:"required"`
	Problems []string `json:"problems" validate:"required"`
}
