package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nibsbin/quillmark/internal/quillservice"
	"github.com/nibsbin/quillmark/internal/registry"
	"github.com/nibsbin/quillmark/internal/testutil"
	"github.com/nibsbin/quillmark/pkg/backend/html"
	"github.com/nibsbin/quillmark/pkg/engine"
)

// testEnv sets up a quill catalog, engine, service, and router for testing.
// An empty authToken means disabled mode; a non-empty one enables token mode.
func testEnv(t *testing.T, authToken string) (*quillservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithAssets(t, authToken != "", authToken)
	return svc, router
}

func testEnvWithAssets(t *testing.T, authEnabled bool, authToken string) (*quillservice.Service, http.Handler, string) {
	t.Helper()

	db := testutil.TestDB(t)
	assetsDir, store := testutil.TestStore(t)

	quillsDir := t.TempDir()
	testutil.WriteQuill(t, quillsDir, "letter", "a short letter")

	eng := engine.New()
	eng.RegisterBackend(html.New())
	svc := quillservice.NewService(db, eng, store, 1<<20)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	changes, err := registry.Sync(db, quillsDir, quiet)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	for _, c := range changes {
		svc.ApplyChange(c)
	}

	router := NewRouter(svc, authEnabled, authToken, nil)
	return svc, router, assetsDir
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListQuills(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/quills", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp QuillListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Quills) != 1 {
		t.Fatalf("total = %d, quills = %v", resp.Total, resp.Quills)
	}
	if resp.Quills[0].Name != "letter" {
		t.Errorf("name = %q, want letter", resp.Quills[0].Name)
	}
}

func TestListQuillsSearch(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/quills?q=letter", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp QuillListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("search total = %d, want 1", resp.Total)
	}

	w = doJSON(t, router, http.MethodGet, "/quills?q=zebra", nil)
	var none QuillListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &none)
	if none.Total != 0 {
		t.Errorf("zebra total = %d, want 0", none.Total)
	}
}

func TestGetQuill(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/quills/letter", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var info struct {
		Name    string `json:"name"`
		Backend string `json:"backend"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if info.Name != "letter" || info.Backend != "html" {
		t.Errorf("info = %+v", info)
	}
}

func TestGetQuill_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/quills/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing quill = %d, want 404", w.Code)
	}
}

func TestQuillSchema(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/quills/letter/schema", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("schema status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"title"`) {
		t.Errorf("schema body = %s", w.Body.String())
	}
}

func TestParseEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/parse", map[string]string{
		"markdown": "---\ntitle: Hi\n---\nSome text.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("parse status = %d, body = %s", w.Code, w.Body.String())
	}
	var doc map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	if doc["title"] != "Hi" {
		t.Errorf("title = %v", doc["title"])
	}
	if doc["BODY"] != "Some text." {
		t.Errorf("BODY = %v", doc["BODY"])
	}
	if _, ok := doc["CARDS"]; !ok {
		t.Error("CARDS missing from document JSON")
	}
}

func TestParseEndpoint_ReservedField422(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/parse", map[string]string{
		"markdown": "---\nBODY: nope\n---\ntext",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body = %s", w.Code, w.Body.String())
	}
	var resp ParseErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Kind != "reserved_field_collision" {
		t.Errorf("kind = %q", resp.Kind)
	}
	if resp.Line != 2 {
		t.Errorf("line = %d, want 2", resp.Line)
	}
	if resp.Hint == "" {
		t.Error("hint should not be empty")
	}
}

func TestParseEndpoint_YamlSyntax422(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/parse", map[string]string{
		"markdown": "---\ntitle: [unclosed\n---\ntext",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var resp ParseErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Kind != "yaml_syntax" {
		t.Errorf("kind = %q", resp.Kind)
	}
}

func TestParseEndpoint_BadRequests(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/parse", map[string]string{"markdown": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty markdown = %d, want 400", w.Code)
	}
}

func TestRenderEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/render", map[string]string{
		"markdown": "---\ntitle: Hi\n---\nSome *text*.",
		"quill":    "letter",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("render status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Quill     string `json:"quill"`
		Artifacts []struct {
			Format string `json:"format"`
			Name   string `json:"name"`
			Data   []byte `json:"data"`
		} `json:"artifacts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Quill != "letter" || len(resp.Artifacts) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	art := resp.Artifacts[0]
	if art.Format != "html" {
		t.Errorf("format = %q", art.Format)
	}
	if !strings.Contains(string(art.Data), "<em>text</em>") {
		t.Errorf("artifact = %s", art.Data)
	}
}

func TestRenderEndpoint_DocumentTag(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/render", map[string]string{
		"markdown": "---\nQUILL: letter\ntitle: Tagged\n---\nBody.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("render status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestRenderEndpoint_UnknownQuill(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/render", map[string]string{
		"markdown": "text",
		"quill":    "missing",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown quill = %d, want 404", w.Code)
	}
}

func TestRenderEndpoint_SchemaViolation422(t *testing.T) {
	_, router := testEnv(t, "")

	// letter requires the title field.
	w := doJSON(t, router, http.MethodPost, "/render", map[string]string{
		"markdown": "no frontmatter at all",
		"quill":    "letter",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body = %s", w.Code, w.Body.String())
	}
	var resp ValidationErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Problems) == 0 {
		t.Error("expected schema problems")
	}
}

func TestRenderEndpoint_BadAssetBase64(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/render", map[string]any{
		"markdown": "---\ntitle: Hi\n---\nBody.",
		"quill":    "letter",
		"assets":   map[string]string{"logo.png": "%%%not-base64%%%"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad asset = %d, want 400", w.Code)
	}
}

// Auth tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/quills", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret")

	w := doJSON(t, router, http.MethodGet, "/quills", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/quills", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/quills", nil)
	if w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// SSE tests.

// testEnvWithSSE creates a router with a stub SSE handler to test auth on
// /events. The stub writes headers and blocks until the request context is
// done.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()

	db := testutil.TestDB(t)
	_, store := testutil.TestStore(t)
	eng := engine.New()
	eng.RegisterBackend(html.New())
	svc := quillservice.NewService(db, eng, store, 1<<20)

	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})

	return NewRouter(svc, authEnabled, token, sseHandler)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router := testEnvWithSSE(t, false, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("disabled auth SSE = %d, want 200", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// Asset tests.

func uploadMultipart(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServeAsset(t *testing.T) {
	_, router, assetsDir := testEnvWithAssets(t, false, "")

	body := map[string]string{
		"name":    "logo.png",
		"content": base64.StdEncoding.EncodeToString([]byte("fake-png-data")),
	}
	w := doJSON(t, router, http.MethodPost, "/assets", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var info struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if info.Name != "logo.png" || info.Size != int64(len("fake-png-data")) {
		t.Errorf("info = %+v", info)
	}

	// Verify file on disk.
	data, err := os.ReadFile(filepath.Join(assetsDir, "logo.png"))
	if err != nil {
		t.Fatalf("file not on disk: %v", err)
	}
	if string(data) != "fake-png-data" {
		t.Error("content mismatch")
	}

	// Serve it back.
	w = doJSON(t, router, http.MethodGet, "/assets/logo.png", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("serve = %d", w.Code)
	}
	if w.Body.String() != "fake-png-data" {
		t.Errorf("served body = %q", w.Body.String())
	}
}

func TestUploadAssetMultipart(t *testing.T) {
	_, router, _ := testEnvWithAssets(t, false, "")

	w := uploadMultipart(t, router, "chart.svg", []byte("<svg/>"))
	if w.Code != http.StatusCreated {
		t.Fatalf("multipart upload = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/assets", nil)
	var resp AssetListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Assets) != 1 || resp.Assets[0].Name != "chart.svg" {
		t.Errorf("assets = %+v", resp.Assets)
	}
}

func TestUploadAsset_TraversalName(t *testing.T) {
	_, router, assetsDir := testEnvWithAssets(t, false, "")

	body := map[string]string{
		"name":    "../escape.txt",
		"content": base64.StdEncoding.EncodeToString([]byte("bad")),
	}
	w := doJSON(t, router, http.MethodPost, "/assets", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d", w.Code)
	}
	var info struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if info.Name != "escape.txt" {
		t.Errorf("sanitized name = %q, want escape.txt", info.Name)
	}
	if _, err := os.Stat(filepath.Join(assetsDir, "..", "escape.txt")); err == nil {
		t.Error("file escaped assets directory")
	}
}

func TestUploadAsset_MissingFields(t *testing.T) {
	_, router, _ := testEnvWithAssets(t, false, "")

	w := doJSON(t, router, http.MethodPost, "/assets", map[string]string{"name": "x.png"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing content = %d, want 400", w.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file field = %d, want 400", rec.Code)
	}
}

func TestDeleteAsset(t *testing.T) {
	_, router, _ := testEnvWithAssets(t, false, "")

	body := map[string]string{
		"name":    "gone.png",
		"content": base64.StdEncoding.EncodeToString([]byte("x")),
	}
	if w := doJSON(t, router, http.MethodPost, "/assets", body); w.Code != http.StatusCreated {
		t.Fatalf("upload = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodDelete, "/assets/gone.png", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/assets/gone.png", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("after delete = %d, want 404", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/assets/gone.png", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("double delete = %d, want 404", w.Code)
	}
}
