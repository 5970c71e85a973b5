package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/appshell/internal/schema"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(context.Background(), DriverCGO, path, testSchema(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := Open(ctx, DriverCGO, path, testSchema(t))
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(ctx, DriverCGO, path, testSchema(t))
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"rec_exams", "rec_events", "rec_server"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(context.Background(), DriverCGO, "/nonexistent/dir/test.db", testSchema(t))
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres", filepath.Join(t.TempDir(), "x.db"), testSchema(t))
	if err == nil {
		t.Error("expected error for unsupported driver, got nil")
	}
}

func TestOpen_PureGoDriver(t *testing.T) {
	s := createTestStoreWithDriver(t, DriverPure)
	ctx := context.Background()

	if _, err := s.Put(ctx, "exams", Record{"title": "Algebra"}); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	n, err := s.Count(ctx, "exams")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestOpen_NewerSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(ctx, DriverCGO, path, testSchema(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	_, err = Open(ctx, DriverCGO, path, testSchema(t))
	if !errors.Is(err, ErrSchemaVersion) {
		t.Errorf("Open() error = %v, want ErrSchemaVersion", err)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Error(err)
		}
	}
}

func TestPut_AutoKeyAlwaysInserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	k1, err := s.Put(ctx, "exams", Record{"title": "Algebra"})
	if err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	k2, err := s.Put(ctx, "exams", Record{"title": "Algebra"})
	if err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if k1 == k2 {
		t.Errorf("auto keys should differ, both %q", k1)
	}

	got, err := s.Get(ctx, "exams", k2)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got["title"] != "Algebra" {
		t.Errorf("title = %v, want Algebra", got["title"])
	}
}

func TestPut_FieldKeyOverwrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "events", Record{"id": json.Number("7"), "title": "old"}); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	key, err := s.Put(ctx, "events", Record{"id": json.Number("7"), "title": "new"})
	if err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if key != "7" {
		t.Errorf("key = %q, want 7", key)
	}

	n, _ := s.Count(ctx, "events")
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
	got, err := s.Get(ctx, "events", "7")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got["title"] != "new" {
		t.Errorf("title = %v, want new", got["title"])
	}
}

func TestPut_MissingKeyField(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Put(context.Background(), "events", Record{"title": "no id"})
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("Put() error = %v, want ErrMissingKey", err)
	}
}

func TestUnknownTable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "courses", Record{}); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("Put() error = %v, want ErrUnknownTable", err)
	}
	if err := s.Clear(ctx, "courses"); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("Clear() error = %v, want ErrUnknownTable", err)
	}
	if _, err := s.All(ctx, "courses"); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("All() error = %v, want ErrUnknownTable", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "events", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "exams", "not-a-number"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestClear_OnlyAffectsOneTable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	s.Put(ctx, "exams", Record{"title": "Algebra"})
	s.Put(ctx, "meals", Record{"name": "Soup"})

	if err := s.Clear(ctx, "exams"); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}

	if n, _ := s.Count(ctx, "exams"); n != 0 {
		t.Errorf("exams Count() = %d, want 0", n)
	}
	if n, _ := s.Count(ctx, "meals"); n != 1 {
		t.Errorf("meals Count() = %d, want 1", n)
	}
}

func TestAll_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"c", "a", "b"} {
		if _, err := s.Put(ctx, "exams", Record{"title": title}); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
	}

	recs, err := s.All(ctx, "exams")
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	var titles []string
	for _, r := range recs {
		titles = append(titles, r["title"].(string))
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, titles); diff != "" {
		t.Errorf("All() order mismatch (-want +got):\n%s", diff)
	}
}

func TestRecord_RoundTripsDatesAndNumbers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	in := Record{
		"id":     json.Number("9007199254740993"),
		"start":  start,
		"title":  "<b>Algebra</b> & more",
		"tags":   []any{"a", json.Number("2")},
		"nested": map[string]any{"at": start},
		"none":   nil,
	}
	if _, err := s.Put(ctx, "events", in); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, err := s.Get(ctx, "events", "9007199254740993")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	gotStart, ok := got["start"].(time.Time)
	if !ok {
		t.Fatalf("start = %T, want time.Time", got["start"])
	}
	if !gotStart.Equal(start) {
		t.Errorf("start = %v, want %v", gotStart, start)
	}
	if got["id"] != json.Number("9007199254740993") {
		t.Errorf("id = %v, want exact integer", got["id"])
	}
	if got["title"] != "<b>Algebra</b> & more" {
		t.Errorf("title = %q", got["title"])
	}
	if diff := cmp.Diff([]any{"a", json.Number("2")}, got["tags"]); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	nested := got["nested"].(map[string]any)
	if at, ok := nested["at"].(time.Time); !ok || !at.Equal(start) {
		t.Errorf("nested.at = %v, want %v", nested["at"], start)
	}
	if v, ok := got["none"]; !ok || v != nil {
		t.Errorf("none = %v (present %v), want explicit nil", v, ok)
	}
}

func TestRecord_DollarKeysAreData(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in := Record{
		"title": "x",
		"meta":  map[string]any{"$date": "soon"},
		"when":  map[string]any{"$date": "2024-01-01T09:00:00Z"},
		"$$raw": "kept",
		"list":  []any{map[string]any{"$ref": "a", "b": json.Number("1")}},
	}
	if _, err := s.Put(ctx, "tips", in); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	recs, err := s.All(ctx, "tips")
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("All() returned %d records, want 1", len(recs))
	}
	if diff := cmp.Diff(in, recs[0]); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestDeviceIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	device, err := s.DeviceIdentity(ctx)
	if err != nil {
		t.Fatalf("DeviceIdentity() failed: %v", err)
	}
	if device != "" {
		t.Errorf("DeviceIdentity() = %q, want empty before registration", device)
	}

	if err := s.SetDeviceIdentity(ctx, "dev-123"); err != nil {
		t.Fatalf("SetDeviceIdentity() failed: %v", err)
	}
	if err := s.SetDeviceIdentity(ctx, "dev-456"); err != nil {
		t.Fatalf("SetDeviceIdentity() failed: %v", err)
	}

	device, err = s.DeviceIdentity(ctx)
	if err != nil {
		t.Fatalf("DeviceIdentity() failed: %v", err)
	}
	if device != "dev-456" {
		t.Errorf("DeviceIdentity() = %q, want dev-456", device)
	}
	if n, _ := s.Count(ctx, schema.IdentityTable); n != 1 {
		t.Errorf("identity table Count() = %d, want 1", n)
	}
}
