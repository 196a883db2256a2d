//go:build sqlite_fts5

package registry

import (
	"database/sql"
	"fmt"

	"github.com/nibsbin/quillmark/internal/models"
)

// initFTS creates the FTS5 virtual table used for quill search.
func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS quills_fts USING fts5(
			name,
			backend,
			description,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, name, backend, description string) error {
	if _, err := tx.Exec(`DELETE FROM quills_fts WHERE name = ?`, name); err != nil {
		return fmt.Errorf("registry: fts delete before upsert: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO quills_fts (name, backend, description) VALUES (?, ?, ?)`, name, backend, description); err != nil {
		return fmt.Errorf("registry: fts insert: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, name string) error {
	if _, err := tx.Exec(`DELETE FROM quills_fts WHERE name = ?`, name); err != nil {
		return fmt.Errorf("registry: fts delete: %w", err)
	}
	return nil
}

// Search runs an FTS5 match over names, backends and descriptions and
// returns the catalog rows ordered by rank.
func (db *DB) Search(query string, limit int) ([]models.QuillInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT q.name, q.path, q.backend, q.description, q.fingerprint, q.size, q.modified_at
		FROM quills_fts f
		JOIN quills q ON q.name = f.name
		WHERE quills_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("registry: search: %w", err)
	}
	return scanInfos(rows)
}
