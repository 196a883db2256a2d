//go:build !sqlite_fts5

package registry

import (
	"database/sql"
	"fmt"

	"github.com/nibsbin/quillmark/internal/models"
)

// Without the sqlite_fts5 build tag search degrades to LIKE matching.

func initFTS(conn *sql.DB) error {
	return nil
}

func ftsUpsert(tx *sql.Tx, name, backend, description string) error {
	return nil
}

func ftsDelete(tx *sql.Tx, name string) error {
	return nil
}

// Search matches the query as a substring of the name, backend or
// description, ordered by name.
func (db *DB) Search(query string, limit int) ([]models.QuillInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT `+infoColumns+`
		FROM quills
		WHERE name LIKE ? OR backend LIKE ? OR description LIKE ?
		ORDER BY name
		LIMIT ?
	`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("registry: search: %w", err)
	}
	return scanInfos(rows)
}
