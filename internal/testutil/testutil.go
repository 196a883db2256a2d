// Package testutil provides shared test helpers for setting up quill
// fixtures, catalogs and asset stores.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nibsbin/quillmark/internal/registry"
	"github.com/nibsbin/quillmark/internal/storage"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *registry.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "quillmark-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := registry.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary assets directory with a storage.Provider.
func TestStore(t *testing.T) (string, storage.Provider) {
	t.Helper()
	assetsDir := t.TempDir()
	store, err := storage.NewFS(assetsDir)
	if err != nil {
		t.Fatal(err)
	}
	return assetsDir, store
}

// WriteQuill writes a minimal html-backed quill bundle named name under
// root and returns the bundle directory. The glue template renders the
// title field as a heading followed by the body.
func WriteQuill(t *testing.T, root, name, description string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := fmt.Sprintf(`[Quill]
name = %q
backend = "html"
glue = "glue.txt"
description = %q

[fields]
title = { type = "str", required = true }
`, name, description)
	files := map[string]string{
		"Quill.toml": manifest,
		"glue.txt":   "# {{.title}}\n\n{{.BODY}}",
	}
	for rel, content := range files {
		if err := os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// WaitFor polls cond until it returns true or the timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
