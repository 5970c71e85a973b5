package schema

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed manifest.cue
var defaultManifest []byte

var identRE = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// CompileError reports an invalid manifest, positioned when CUE knows where.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default compiles the manifest embedded in the binary.
func Default() (*Schema, error) {
	return CompileBytes("manifest.cue", defaultManifest)
}

// CompileFile compiles a manifest file from disk.
func CompileFile(path string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return CompileBytes(path, src)
}

// CompileBytes compiles manifest source. filename is used for positions only.
func CompileBytes(filename string, src []byte) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return Compile(v)
}

// Compile turns a CUE manifest value into a Schema.
//
// The manifest is a struct with:
//
//	tables:    {<name>: {key: "auto" | <field>, coerce?: {<field>: <coercion>}}}
//	languages: [...string]   // first entry is the fallback
//	cache:     {files: [...string]}
//	faults:    {<ID>: {logout?: bool, detail?: {...}}}
//
// Tables keep their declaration order. The identity table must be declared
// with a key field.
func Compile(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &Schema{
		index:     make(map[string]int),
		coercions: make(map[FieldRef]Coercion),
		faults:    make(map[string]Fault),
	}

	if err := parseTables(v, s); err != nil {
		return nil, err
	}

	identity, ok := s.Table(IdentityTable)
	if !ok {
		return nil, &CompileError{Field: "tables", Message: fmt.Sprintf("identity table %q is required", IdentityTable), Pos: v.Pos()}
	}
	if identity.Key != KeyField {
		return nil, &CompileError{Field: "tables." + IdentityTable, Message: "identity table must be keyed by a field"}
	}

	langs, err := parseStrings(v.LookupPath(cue.ParsePath("languages")), "languages")
	if err != nil {
		return nil, err
	}
	if len(langs) == 0 {
		return nil, &CompileError{Field: "languages", Message: "at least one language is required", Pos: v.Pos()}
	}
	s.languages = langs

	files, err := parseStrings(v.LookupPath(cue.ParsePath("cache.files")), "cache.files")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if !strings.HasPrefix(f, "/") {
			return nil, &CompileError{Field: "cache.files", Message: fmt.Sprintf("path %q must be absolute", f)}
		}
	}
	s.files = files

	if err := parseFaults(v, s); err != nil {
		return nil, err
	}

	return s, nil
}

func parseTables(v cue.Value, s *Schema) error {
	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return &CompileError{Field: "tables", Message: "tables are required", Pos: v.Pos()}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		tv := iter.Value()

		if !identRE.MatchString(name) {
			return &CompileError{Field: "tables", Message: fmt.Sprintf("invalid table name %q", name), Pos: tv.Pos()}
		}

		keyVal := tv.LookupPath(cue.ParsePath("key"))
		if !keyVal.Exists() {
			return &CompileError{Field: "tables." + name + ".key", Message: "key is required", Pos: tv.Pos()}
		}
		key, err := keyVal.String()
		if err != nil {
			return formatCUEError(err)
		}

		table := Table{Name: name, Key: KeyAuto}
		if key != string(KeyAuto) {
			if !identRE.MatchString(key) {
				return &CompileError{Field: "tables." + name + ".key", Message: fmt.Sprintf("invalid key field %q", key), Pos: keyVal.Pos()}
			}
			table.Key = KeyField
			table.KeyField = key
		}

		coerceVal := tv.LookupPath(cue.ParsePath("coerce"))
		if coerceVal.Exists() {
			fields, err := coerceVal.Fields()
			if err != nil {
				return formatCUEError(err)
			}
			for fields.Next() {
				field := fields.Label()
				kind, err := fields.Value().String()
				if err != nil {
					return formatCUEError(err)
				}
				c, ok := coercions[kind]
				if !ok {
					return &CompileError{
						Field:   "tables." + name + ".coerce." + field,
						Message: fmt.Sprintf("unknown coercion %q", kind),
						Pos:     fields.Value().Pos(),
					}
				}
				s.coercions[FieldRef{Table: name, Field: field}] = c
			}
		}

		s.index[name] = len(s.tables)
		s.tables = append(s.tables, table)
	}

	if len(s.tables) == 0 {
		return &CompileError{Field: "tables", Message: "at least one table is required", Pos: tablesVal.Pos()}
	}
	return nil
}

func parseFaults(v cue.Value, s *Schema) error {
	faultsVal := v.LookupPath(cue.ParsePath("faults"))
	if !faultsVal.Exists() {
		return nil
	}

	iter, err := faultsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		id := iter.Label()
		fv := iter.Value()
		fault := Fault{ID: id, Detail: map[string]any{}}

		if logoutVal := fv.LookupPath(cue.ParsePath("logout")); logoutVal.Exists() {
			logout, err := logoutVal.Bool()
			if err != nil {
				return formatCUEError(err)
			}
			fault.InvalidatesSession = logout
		}

		if detailVal := fv.LookupPath(cue.ParsePath("detail")); detailVal.Exists() {
			if err := detailVal.Decode(&fault.Detail); err != nil {
				return formatCUEError(err)
			}
		}

		s.faults[id] = fault
	}
	return nil
}

// parseStrings decodes an optional list of strings.
func parseStrings(v cue.Value, field string) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	list, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []string
	for list.Next() {
		str, err := list.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "expected string", Pos: list.Value().Pos()}
		}
		out = append(out, str)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
