package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nibsbin/quillmark/internal/models"
	"github.com/nibsbin/quillmark/pkg/quill"
)

// Change is one catalog mutation produced by Sync.
type Change struct {
	Event models.QuillEvent
	Quill *quill.Quill // nil for removals
}

// Sync scans quillsDir and brings the catalog up to date: new and changed
// bundles are loaded and upserted, rows whose directory is gone are removed.
// Bundles that fail to load are logged and skipped. Returns the changes made,
// in directory order with removals last.
func Sync(db *DB, quillsDir string, logger *slog.Logger) ([]Change, error) {
	entries, err := os.ReadDir(quillsDir)
	if err != nil {
		return nil, fmt.Errorf("registry: read quills dir: %w", err)
	}
	known, err := db.Fingerprints()
	if err != nil {
		return nil, err
	}

	var changes []Change
	seen := make(map[string]struct{})
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(quillsDir, e.Name())
		if _, err := os.Stat(filepath.Join(dir, quill.ManifestName)); err != nil {
			continue
		}
		q, err := quill.Load(dir)
		if err != nil {
			logger.Warn("sync: load failed", slog.String("dir", dir), slog.String("error", err.Error()))
			continue
		}
		if _, dup := seen[q.Name]; dup {
			logger.Warn("sync: duplicate quill name", slog.String("name", q.Name), slog.String("dir", dir))
			continue
		}
		seen[q.Name] = struct{}{}

		prev, existed := known[q.Name]
		if existed && prev == q.Fingerprint() {
			continue
		}
		if err := db.Upsert(rowFor(q, dir)); err != nil {
			logger.Warn("sync: upsert failed", slog.String("name", q.Name), slog.String("error", err.Error()))
			continue
		}
		kind := models.QuillAdded
		if existed {
			kind = models.QuillUpdated
		}
		logger.Debug("sync: indexed", slog.String("name", q.Name), slog.String("event", kind))
		changes = append(changes, Change{
			Event: models.QuillEvent{Type: kind, Name: q.Name, At: time.Now().UTC()},
			Quill: q,
		})
	}

	for name := range known {
		if _, ok := seen[name]; ok {
			continue
		}
		if err := db.Delete(name); err != nil {
			logger.Warn("sync: delete failed", slog.String("name", name), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("name", name))
		changes = append(changes, Change{
			Event: models.QuillEvent{Type: models.QuillRemoved, Name: name, At: time.Now().UTC()},
		})
	}

	return changes, nil
}

// rowFor builds the catalog row for a loaded bundle.
func rowFor(q *quill.Quill, dir string) models.QuillInfo {
	var size int64
	for _, name := range q.Files() {
		if data, ok := q.File(name); ok {
			size += int64(len(data))
		}
	}
	modified := time.Now().UTC()
	if st, err := os.Stat(dir); err == nil {
		modified = st.ModTime().UTC()
	}
	return models.QuillInfo{
		Name:        q.Name,
		Path:        dir,
		Backend:     q.Backend,
		Description: q.Description,
		Fingerprint: q.Fingerprint(),
		Size:        size,
		ModifiedAt:  modified,
	}
}
