// Package storage keeps offline page drafts in SQLite. It uses the pure-Go
// modernc.org/sqlite driver so the CLI builds without CGO.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pagecrop/pagecrop/backend-go/internal/document"
)

// ErrScanNotFound is returned for unknown scan ids.
var ErrScanNotFound = errors.New("storage: scan not found")

// Store is a draft database of scans and their pages.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and migrates it. A leading ~
// expands to the home directory.
func Open(path string) (*Store, error) {
	if path != "" && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			file TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS pages (
			scan_id TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			position INTEGER NOT NULL,
			xc REAL NOT NULL,
			yc REAL NOT NULL,
			width REAL NOT NULL,
			height REAL NOT NULL,
			angle REAL NOT NULL,
			flags TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (scan_id, id)
		);
		CREATE INDEX IF NOT EXISTS idx_pages_scan ON pages(scan_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveScan inserts or updates scan metadata.
func (s *Store) SaveScan(ctx context.Context, sc document.Scan) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if sc.CreatedAt == "" {
		sc.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, name, width, height, file, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			width = excluded.width,
			height = excluded.height,
			file = excluded.file,
			updated_at = excluded.updated_at`,
		sc.ID, sc.Name, sc.Width, sc.Height, sc.File, sc.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save scan: %w", err)
	}
	return nil
}

// GetScan loads scan metadata.
func (s *Store) GetScan(ctx context.Context, id string) (*document.Scan, error) {
	var sc document.Scan
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, width, height, file, created_at, updated_at FROM scans WHERE id = ?`, id,
	).Scan(&sc.ID, &sc.Name, &sc.Width, &sc.Height, &sc.File, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot load scan: %w", err)
	}
	return &sc, nil
}

// ListScans returns all scans, most recently updated first.
func (s *Store) ListScans(ctx context.Context) ([]document.Scan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, width, height, file, created_at, updated_at
		 FROM scans ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query scans: %w", err)
	}
	defer rows.Close()

	var out []document.Scan
	for rows.Next() {
		var sc document.Scan
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Width, &sc.Height, &sc.File, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return out, nil
}

// LoadPages returns the pages of a scan in their saved order.
func (s *Store) LoadPages(ctx context.Context, scanID string) ([]document.PageDescriptor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, xc, yc, width, height, angle, flags
		 FROM pages WHERE scan_id = ? ORDER BY position`, scanID)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query pages: %w", err)
	}
	defer rows.Close()

	var out []document.PageDescriptor
	for rows.Next() {
		var p document.PageDescriptor
		var flags string
		if err := rows.Scan(&p.ID, &p.XC, &p.YC, &p.Width, &p.Height, &p.Angle, &flags); err != nil {
			return nil, fmt.Errorf("storage: cannot scan page: %w", err)
		}
		if err := json.Unmarshal([]byte(flags), &p.Flags); err != nil {
			return nil, fmt.Errorf("storage: page %s flags: %w", p.ID, err)
		}
		if len(p.Flags) == 0 {
			p.Flags = nil
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return out, nil
}

// PersistPages replaces the pages of a scan in one transaction.
func (s *Store) PersistPages(ctx context.Context, scanID string, pages []document.PageDescriptor) error {
	if err := document.ValidatePages(pages); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans WHERE id = ?`, scanID).Scan(&exists); err != nil {
		return fmt.Errorf("storage: check scan: %w", err)
	}
	if exists == 0 {
		return ErrScanNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE scan_id = ?`, scanID); err != nil {
		return fmt.Errorf("storage: clear pages: %w", err)
	}
	for i, p := range pages {
		flags, err := json.Marshal(p.Flags)
		if err != nil {
			return fmt.Errorf("storage: encode flags: %w", err)
		}
		if p.Flags == nil {
			flags = []byte("[]")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pages (scan_id, id, position, xc, yc, width, height, angle, flags)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			scanID, p.ID, i, p.XC, p.YC, p.Width, p.Height, p.Angle, string(flags),
		); err != nil {
			return fmt.Errorf("storage: insert page %s: %w", p.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE scans SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), scanID,
	); err != nil {
		return fmt.Errorf("storage: touch scan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}
