package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nibsbin/quillmark/pkg/backend/html"
	"github.com/nibsbin/quillmark/pkg/parse"
	"github.com/nibsbin/quillmark/pkg/quill"
)

const letterManifest = `[Quill]
name = "letter"
backend = "html"

[fields]
title = { type = "str", required = true }
tone = { default = "formal" }
`

func letterQuill(t *testing.T) *quill.Quill {
	t.Helper()
	q, err := quill.FromFiles(map[string][]byte{
		"Quill.toml":      []byte(letterManifest),
		"glue.txt":        []byte("# {{.title}}\n\nTone: {{.tone}}\n\n{{.BODY}}\n"),
		"assets/logo.svg": []byte("<svg/>"),
	})
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	return q
}

func testEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := New(opts...)
	e.RegisterBackend(html.New())
	e.RegisterQuill(letterQuill(t))
	return e
}

func mustParse(t *testing.T, src string) *parse.Document {
	t.Helper()
	doc, err := parse.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestWorkflow(t *testing.T) {
	e := testEngine(t)
	w, err := e.Workflow("letter")
	if err != nil {
		t.Fatalf("Workflow: %v", err)
	}
	if w.Quill().Name != "letter" {
		t.Errorf("quill = %q", w.Quill().Name)
	}

	if _, err := e.Workflow("missing"); !errors.Is(err, ErrQuillNotFound) {
		t.Errorf("err = %v, want ErrQuillNotFound", err)
	}
}

func TestWorkflowMissingBackend(t *testing.T) {
	e := New()
	e.RegisterQuill(letterQuill(t))
	if _, err := e.Workflow("letter"); !errors.Is(err, ErrBackendNotFound) {
		t.Errorf("err = %v, want ErrBackendNotFound", err)
	}
}

func TestWorkflowBadGlueTemplate(t *testing.T) {
	q, err := quill.FromFiles(map[string][]byte{
		"Quill.toml": []byte("[Quill]\nname = \"broken\"\nbackend = \"html\"\n"),
		"glue.txt":   []byte("{{.unclosed"),
	})
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	e := New()
	e.RegisterBackend(html.New())
	if _, err := e.WorkflowFromQuill(q); err == nil {
		t.Error("expected template parse error")
	}
}

func TestResolveQuill(t *testing.T) {
	e := testEngine(t, WithDefaultQuill("letter"))

	q, err := e.ResolveQuill(mustParse(t, "---\nQUILL: letter\n---\nx"))
	if err != nil || q.Name != "letter" {
		t.Errorf("tagged: %v, %v", q, err)
	}

	q, err = e.ResolveQuill(mustParse(t, "no tag"))
	if err != nil || q.Name != "letter" {
		t.Errorf("default: %v, %v", q, err)
	}

	_, err = e.ResolveQuill(mustParse(t, "---\nQUILL: missing\n---\nx"))
	if !errors.Is(err, ErrQuillNotFound) {
		t.Errorf("unknown tag: %v", err)
	}

	bare := testEngine(t)
	_, err = bare.ResolveQuill(mustParse(t, "no tag"))
	if !errors.Is(err, ErrNoQuill) {
		t.Errorf("no default: %v", err)
	}
}

func TestQuillRegistry(t *testing.T) {
	e := testEngine(t)
	if got, want := e.Quills(), []string{"letter"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Quills() = %v, want %v", got, want)
	}
	if _, ok := e.Quill("letter"); !ok {
		t.Error("Quill(letter) missing")
	}

	e.RemoveQuill("letter")
	if _, ok := e.Quill("letter"); ok {
		t.Error("quill still present after RemoveQuill")
	}
	e.RemoveQuill("letter")
}
