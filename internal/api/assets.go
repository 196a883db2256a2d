package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/nibsbin/quillmark/internal/models"
)

// maxAssetBody caps a staged-asset upload.
const maxAssetBody = 10 << 20

// UploadAsset handles POST /api/assets. Accepts either a JSON body with
// base64 content or a multipart form with a "file" field.
//
//	@Summary		Stage a shared render asset
//	@Tags			assets
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UploadAssetRequest	true	"Asset to stage"
//	@Success		201		{object}	models.AssetInfo
//	@Failure		400		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets [post]
func (h *Handler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAssetBody)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.uploadAssetMultipart(w, r)
		return
	}

	var req UploadAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name and content are required"))
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("content is not valid base64"))
		return
	}

	info, err := h.svc.StageAsset(r.Context(), req.Name, data)
	if err != nil {
		writeError(w, "stage asset", err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *Handler) uploadAssetMultipart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAssetBody); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	info, err := h.svc.StageAsset(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, "stage asset", err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// ListAssets handles GET /api/assets.
//
//	@Summary		List staged render assets
//	@Tags			assets
//	@Produce		json
//	@Success		200	{object}	AssetListResponse
//	@Security		BearerAuth
//	@Router			/assets [get]
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.svc.ListAssets(r.Context())
	if err != nil {
		writeError(w, "list assets", err)
		return
	}
	if assets == nil {
		assets = []models.AssetInfo{}
	}
	writeJSON(w, http.StatusOK, AssetListResponse{Assets: assets})
}

// ServeAsset handles GET /api/assets/{name}.
//
//	@Summary		Download a staged render asset
//	@Tags			assets
//	@Param			name	path	string	true	"Asset name"
//	@Success		200
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets/{name} [get]
func (h *Handler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := h.svc.ReadAsset(r.Context(), name)
	if err != nil {
		writeError(w, "read asset", err)
		return
	}
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DeleteAsset handles DELETE /api/assets/{name}.
//
//	@Summary		Remove a staged render asset
//	@Tags			assets
//	@Param			name	path	string	true	"Asset name"
//	@Success		204	"Asset deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets/{name} [delete]
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.svc.DeleteAsset(r.Context(), name); err != nil {
		writeError(w, "delete asset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
