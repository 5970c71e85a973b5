package schema

import (
	"slices"
	"sort"
)

// IdentityTable holds the device/session identity. Resync never touches it.
const IdentityTable = "server"

// DeviceKey is the key of the device identity record in IdentityTable.
const DeviceKey = "device"

// KeyStrategy describes how records of a table are keyed.
type KeyStrategy string

const (
	// KeyAuto assigns an auto-incrementing surrogate key on insert.
	KeyAuto KeyStrategy = "auto"

	// KeyField reads the key from a record field named by Table.KeyField.
	KeyField KeyStrategy = "field"
)

// Table is a single table declaration.
type Table struct {
	Name     string
	Key      KeyStrategy
	KeyField string // only set for KeyField
}

// FieldRef names a (table, field) pair.
type FieldRef struct {
	Table string
	Field string
}

// Fault is a registry entry for an internal fault that renders an error page.
type Fault struct {
	ID string

	// InvalidatesSession triggers a logout before the page is rendered.
	InvalidatesSession bool

	// Detail is handed to the error template.
	Detail map[string]any
}

// Schema is the compiled manifest: declared tables, per-field coercions,
// cached resource paths, available languages and the fault registry.
//
// A Schema is immutable after Compile returns.
type Schema struct {
	tables    []Table
	index     map[string]int
	coercions map[FieldRef]Coercion
	files     []string
	languages []string
	faults    map[string]Fault
}

// Tables returns the declared tables in declaration order.
func (s *Schema) Tables() []Table {
	return slices.Clone(s.tables)
}

// Table looks up a declared table by name.
func (s *Schema) Table(name string) (Table, bool) {
	i, ok := s.index[name]
	if !ok {
		return Table{}, false
	}
	return s.tables[i], true
}

// Coercion returns the coercion registered for table.field, if any.
func (s *Schema) Coercion(table, field string) (Coercion, bool) {
	c, ok := s.coercions[FieldRef{Table: table, Field: field}]
	return c, ok
}

// CoercedFields returns every (table, field) pair with a coercion, sorted.
func (s *Schema) CoercedFields() []FieldRef {
	refs := make([]FieldRef, 0, len(s.coercions))
	for ref := range s.coercions {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Table != refs[j].Table {
			return refs[i].Table < refs[j].Table
		}
		return refs[i].Field < refs[j].Field
	})
	return refs
}

// CachedFiles returns the resource paths that make up the app shell.
func (s *Schema) CachedFiles() []string {
	return slices.Clone(s.files)
}

// Languages returns the available localization languages; the first one is
// the fallback.
func (s *Schema) Languages() []string {
	return slices.Clone(s.languages)
}

// Fault looks up a registered fault.
func (s *Schema) Fault(id string) (Fault, bool) {
	f, ok := s.faults[id]
	return f, ok
}

// FaultIDs returns all registered fault identifiers, sorted.
func (s *Schema) FaultIDs() []string {
	ids := make([]string, 0, len(s.faults))
	for id := range s.faults {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
