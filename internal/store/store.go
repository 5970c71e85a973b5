package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/appshell/internal/schema"
)

// Driver names accepted by Open.
const (
	// DriverCGO is github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"

	// DriverPure is modernc.org/sqlite, for builds without cgo.
	DriverPure = "sqlite"
)

// currentSchemaVersion is kept in PRAGMA user_version. Open refuses a
// database written by a newer version.
const currentSchemaVersion = 1

var (
	// ErrUnknownTable is returned for a table the schema does not declare.
	ErrUnknownTable = errors.New("unknown table")

	// ErrNotFound is returned by Get when no record has the key.
	ErrNotFound = errors.New("record not found")

	// ErrMissingKey is returned by Put when a field-keyed record lacks its key.
	ErrMissingKey = errors.New("record missing key field")

	// ErrSchemaVersion is returned by Open for a database from a newer version.
	ErrSchemaVersion = errors.New("unsupported database schema version")
)

// Record is an open-ended persisted record.
type Record map[string]any

// Store is the local structured store mirroring server-side records.
// One SQLite table per declared table; records are kept as JSON.
type Store struct {
	db     *sql.DB
	schema *schema.Schema
}

// Open creates or opens a SQLite database at the given path and creates a
// table for every table the schema declares.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(ctx context.Context, driver, path string, s *schema.Schema) (*Store, error) {
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPure {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(ctx, db, s); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, schema: s}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB. The resource cache shares it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Schema returns the schema the store was opened with.
func (s *Store) Schema() *schema.Schema {
	return s.schema
}

// Get returns the record stored under key.
func (s *Store) Get(ctx context.Context, table, key string) (Record, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}

	var arg any = key
	if t.Key == schema.KeyAuto {
		n, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("get %s/%s: %w", table, key, ErrNotFound)
		}
		arg = n
	}

	var data string
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT record FROM %s WHERE key = ?`, tableName(table)), arg,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", table, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, key, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, key, err)
	}
	return rec, nil
}

// Put writes a record and returns its key. Auto-keyed tables always insert;
// field-keyed tables overwrite the record with the same key.
func (s *Store) Put(ctx context.Context, table string, rec Record) (string, error) {
	t, err := s.table(table)
	if err != nil {
		return "", err
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", table, err)
	}

	if t.Key == schema.KeyAuto {
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (record) VALUES (?)`, tableName(table)), data)
		if err != nil {
			return "", fmt.Errorf("put %s: %w", table, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return "", fmt.Errorf("put %s: last insert id: %w", table, err)
		}
		return strconv.FormatInt(id, 10), nil
	}

	key, ok := keyString(rec[t.KeyField])
	if !ok {
		return "", fmt.Errorf("put %s: %w %q", table, ErrMissingKey, t.KeyField)
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (key, record) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET record = excluded.record
	`, tableName(table)), key, data)
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", table, key, err)
	}
	return key, nil
}

// Clear removes every record from a table.
func (s *Store) Clear(ctx context.Context, table string) error {
	if _, err := s.table(table); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, tableName(table))); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return nil
}

// All returns every record of a table in insertion order.
func (s *Store) All(ctx context.Context, table string) ([]Record, error) {
	if _, err := s.table(table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT record FROM %s ORDER BY rowid ASC`, tableName(table)))
	if err != nil {
		return nil, fmt.Errorf("all %s: %w", table, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("all %s: scan: %w", table, err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, fmt.Errorf("all %s: %w", table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("all %s: %w", table, err)
	}
	return out, nil
}

// Count returns the number of records in a table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if _, err := s.table(table); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableName(table))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) table(name string) (schema.Table, error) {
	t, ok := s.schema.Table(name)
	if !ok {
		return schema.Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return t, nil
}

// tableName maps a declared table to its SQL table. Names are validated
// identifiers (see schema.Compile), so quoting is enough.
func tableName(table string) string {
	return `"rec_` + table + `"`
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates declared tables if they don't exist and stamps the
// schema version. This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB, s *schema.Schema) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("%w: %d (newest known %d)", ErrSchemaVersion, version, currentSchemaVersion)
	}

	for _, t := range s.Tables() {
		var ddl string
		switch t.Key {
		case schema.KeyAuto:
			ddl = `CREATE TABLE IF NOT EXISTS %s (
				key INTEGER PRIMARY KEY AUTOINCREMENT,
				record TEXT NOT NULL
			)`
		default:
			ddl = `CREATE TABLE IF NOT EXISTS %s (
				key TEXT PRIMARY KEY,
				record TEXT NOT NULL
			)`
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf(ddl, tableName(t.Name))); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}
