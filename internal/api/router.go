package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nibsbin/quillmark/internal/quillservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *quillservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Quill catalog.
	r.Get("/quills", h.ListQuills)
	r.Get("/quills/{name}", h.GetQuill)
	r.Get("/quills/{name}/schema", h.QuillSchema)

	// Document pipeline.
	r.Post("/parse", h.Parse)
	r.Post("/render", h.Render)

	// Staged render assets.
	r.Get("/assets", h.ListAssets)
	r.Post("/assets", h.UploadAsset)
	r.Get("/assets/{name}", h.ServeAsset)
	r.Delete("/assets/{name}", h.DeleteAsset)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
