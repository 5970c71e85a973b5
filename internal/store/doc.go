// Package store provides SQLite-backed local storage for the records that
// mirror the remote server.
//
// Every table declared by the schema becomes one SQL table holding JSON
// records:
//   - auto-keyed tables: INTEGER PRIMARY KEY AUTOINCREMENT, Put always inserts
//   - field-keyed tables: TEXT PRIMARY KEY read from the key field, Put upserts
//
// time.Time values are stored tagged so they read back as time.Time, and
// numbers read back as json.Number so integers never pass through float64.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The store imposes no transaction discipline across tables. Callers that
// need several writes to be atomic must serialize externally.
package store
