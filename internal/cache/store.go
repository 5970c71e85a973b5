package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Entry is one cached resource of one cache version.
type Entry struct {
	Version     string
	Path        string
	ContentType string
	Content     []byte
}

// Store keeps cached resources per version. It lives in the same SQLite
// database as the local record store.
type Store struct {
	db *sql.DB
}

// NewStore creates the cache table if needed.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cache_entries (
			version      TEXT NOT NULL,
			path         TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			content      BLOB NOT NULL,
			PRIMARY KEY (version, path)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &Store{db: db}, nil
}

// Put stores a resource for a version, replacing an existing one.
func (s *Store) Put(ctx context.Context, e Entry) error {
	content := e.Content
	if content == nil {
		content = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (version, path, content_type, content)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(version, path) DO UPDATE SET
			content_type = excluded.content_type,
			content = excluded.content
	`, e.Version, e.Path, e.ContentType, content)
	if err != nil {
		return fmt.Errorf("cache put %s@%s: %w", e.Path, e.Version, err)
	}
	return nil
}

// Match looks up a resource by exact path within a version.
func (s *Store) Match(ctx context.Context, version, path string) (Entry, bool, error) {
	e := Entry{Version: version, Path: path}
	err := s.db.QueryRowContext(ctx, `
		SELECT content_type, content FROM cache_entries
		WHERE version = ? AND path = ?
	`, version, path).Scan(&e.ContentType, &e.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache match %s@%s: %w", path, version, err)
	}
	return e, true, nil
}

// Prune deletes every entry not belonging to keep and reports how many
// entries were removed.
func (s *Store) Prune(ctx context.Context, keep string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE version != ?`, keep)
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache prune: rows affected: %w", err)
	}
	return n, nil
}

// Versions lists the cache versions present, sorted.
func (s *Store) Versions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT version FROM cache_entries ORDER BY version ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("cache versions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("cache versions: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
