package registry

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/nibsbin/quillmark/internal/apperr"
	"github.com/nibsbin/quillmark/internal/models"
)

const infoColumns = `name, path, backend, description, fingerprint, size, modified_at`

// Upsert inserts or replaces a catalog row and its search entry.
func (db *DB) Upsert(info models.QuillInfo) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO quills (`+infoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			path        = excluded.path,
			backend     = excluded.backend,
			description = excluded.description,
			fingerprint = excluded.fingerprint,
			size        = excluded.size,
			modified_at = excluded.modified_at
	`, info.Name, info.Path, info.Backend, info.Description, info.Fingerprint, info.Size, info.ModifiedAt)
	if err != nil {
		return fmt.Errorf("registry: upsert %s: %w", info.Name, err)
	}
	if err := ftsUpsert(tx, info.Name, info.Backend, info.Description); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("registry: commit upsert: %w", err)
	}
	return nil
}

// Delete removes a catalog row and its search entry. Unknown names are a no-op.
func (db *DB) Delete(name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := ftsDelete(tx, name); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM quills WHERE name = ?`, name); err != nil {
		return fmt.Errorf("registry: delete %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("registry: commit delete: %w", err)
	}
	return nil
}

// Get returns one catalog row. Missing names map to apperr.ErrNotFound.
func (db *DB) Get(name string) (*models.QuillInfo, error) {
	row := db.conn.QueryRow(`SELECT `+infoColumns+` FROM quills WHERE name = ?`, name)
	var info models.QuillInfo
	err := row.Scan(&info.Name, &info.Path, &info.Backend, &info.Description, &info.Fingerprint, &info.Size, &info.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("registry: quill %s: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: get %s: %w", name, err)
	}
	return &info, nil
}

// List returns all catalog rows ordered by name.
func (db *DB) List() ([]models.QuillInfo, error) {
	rows, err := db.conn.Query(`SELECT ` + infoColumns + ` FROM quills ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	return scanInfos(rows)
}

// Fingerprints returns the fingerprint of every cataloged quill, keyed by name.
func (db *DB) Fingerprints() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT name, fingerprint FROM quills`)
	if err != nil {
		return nil, fmt.Errorf("registry: fingerprints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, fp string
		if err := rows.Scan(&name, &fp); err != nil {
			return nil, fmt.Errorf("registry: scan fingerprint: %w", err)
		}
		out[name] = fp
	}
	return out, rows.Err()
}

func scanInfos(rows *sql.Rows) ([]models.QuillInfo, error) {
	defer rows.Close()

	var out []models.QuillInfo
	for rows.Next() {
		var info models.QuillInfo
		if err := rows.Scan(&info.Name, &info.Path, &info.Backend, &info.Description, &info.Fingerprint, &info.Size, &info.ModifiedAt); err != nil {
			return nil, fmt.Errorf("registry: scan row: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
