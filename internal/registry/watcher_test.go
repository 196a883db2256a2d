package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nibsbin/quillmark/internal/apperr"
	"github.com/nibsbin/quillmark/internal/models"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewQuillIndexed(t *testing.T) {
	db := testDB(t)
	quillsDir := t.TempDir()
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, quillsDir, logger, func(c Change) {
		mu.Lock()
		events = append(events, c.Event.Type+":"+c.Event.Name)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	writeQuill(t, quillsDir, "fresh", "new arrival")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.Get("fresh")
		return err == nil
	}, "new bundle not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == models.QuillAdded+":fresh" {
				return true
			}
		}
		return false
	}, "expected quill.added:fresh callback")
}

func TestWatcher_EditReindexes(t *testing.T) {
	db := testDB(t)
	quillsDir := t.TempDir()
	dir := writeQuill(t, quillsDir, "evolving", "first cut")
	if _, err := Sync(db, quillsDir, quietLogger()); err != nil {
		t.Fatal(err)
	}
	before, err := db.Get("evolving")
	if err != nil {
		t.Fatal("precondition: bundle should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, quillsDir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "glue.txt"), []byte("{{.BODY}} revised"), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		after, err := db.Get("evolving")
		return err == nil && after.Fingerprint != before.Fingerprint
	}, "edited bundle not reindexed by watcher")
}

func TestWatcher_RemoveDeindexes(t *testing.T) {
	db := testDB(t)
	quillsDir := t.TempDir()
	dir := writeQuill(t, quillsDir, "doomed", "to be removed")
	if _, err := Sync(db, quillsDir, quietLogger()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Get("doomed"); err != nil {
		t.Fatal("precondition: bundle should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, quillsDir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.Get("doomed")
		return errors.Is(err, apperr.ErrNotFound)
	}, "removed bundle still in catalog")
}
