package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nibsbin/quillmark/internal/models"
	"github.com/nibsbin/quillmark/internal/quillservice"
)

const (
	// maxParseBody caps the parse request body.
	maxParseBody = 10 << 20
	// maxRenderBody caps the render request body; base64 assets ride along
	// with the markdown.
	maxRenderBody = 32 << 20
)

// Handler holds API route handlers.
type Handler struct {
	svc *quillservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *quillservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListQuills handles GET /api/quills.
//
//	@Summary		List registered quills, optionally filtered by a search query
//	@Tags			quills
//	@Produce		json
//	@Param			q		query		string	false	"Search query"
//	@Param			limit	query		int		false	"Max search results"
//	@Success		200		{object}	QuillListResponse
//	@Security		BearerAuth
//	@Router			/quills [get]
func (h *Handler) ListQuills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	quills, err := h.svc.ListQuills(r.Context(), q, limit)
	if err != nil {
		writeError(w, "list quills", err)
		return
	}
	if quills == nil {
		quills = []models.QuillInfo{}
	}
	writeJSON(w, http.StatusOK, QuillListResponse{Quills: quills, Total: len(quills)})
}

// GetQuill handles GET /api/quills/{name}.
//
//	@Summary		Get one quill's catalog entry
//	@Tags			quills
//	@Produce		json
//	@Param			name	path		string	true	"Quill name"
//	@Success		200		{object}	models.QuillInfo
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/quills/{name} [get]
func (h *Handler) GetQuill(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info, err := h.svc.GetQuill(r.Context(), name)
	if err != nil {
		writeError(w, "get quill", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// QuillSchema handles GET /api/quills/{name}/schema.
//
//	@Summary		Get the JSON schema of a quill's declared fields
//	@Tags			quills
//	@Produce		json
//	@Param			name	path		string	true	"Quill name"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/quills/{name}/schema [get]
func (h *Handler) QuillSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	raw, err := h.svc.QuillSchema(r.Context(), name)
	if err != nil {
		writeError(w, "quill schema", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// Parse handles POST /api/parse.
//
//	@Summary		Parse extended markdown into a structured document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ParseRequest	true	"Markdown to parse"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	ParseErrorResponse
//	@Security		BearerAuth
//	@Router			/parse [post]
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxParseBody)
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Markdown == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("markdown is required"))
		return
	}

	doc, err := h.svc.ParseDocument(r.Context(), req.Markdown)
	if err != nil {
		writeError(w, "parse", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Render handles POST /api/render.
//
//	@Summary		Render markdown through a quill into artifacts
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenderRequest	true	"Render request"
//	@Success		200		{object}	RenderResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	ValidationErrorResponse
//	@Security		BearerAuth
//	@Router			/render [post]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRenderBody)
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Markdown == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("markdown is required"))
		return
	}

	assets, err := decodeAssets(req.Assets)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	res, err := h.svc.Render(r.Context(), quillservice.RenderRequest{
		Markdown: req.Markdown,
		Quill:    req.Quill,
		Format:   req.Format,
		Assets:   assets,
	})
	if err != nil {
		writeError(w, "render", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeAssets decodes the base64 asset map of a render request.
func decodeAssets(in map[string]string) (map[string][]byte, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string][]byte, len(in))
	for name, b64 := range in {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("asset %q: invalid base64 content", name)
		}
		out[name] = data
	}
	return out, nil
}
