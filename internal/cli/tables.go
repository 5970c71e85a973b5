package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/appshell/internal/schema"
)

// TablesOptions holds flags for the tables command.
type TablesOptions struct {
	*RootOptions
	Manifest string
}

// tableInfo describes one declared table.
type tableInfo struct {
	Name     string   `json:"name"`
	Key      string   `json:"key"`
	KeyField string   `json:"key_field,omitempty"`
	Dates    []string `json:"dates,omitempty"`
	Identity bool     `json:"identity,omitempty"`
}

// faultInfo describes one registered fault.
type faultInfo struct {
	ID     string `json:"id"`
	Logout bool   `json:"logout"`
}

// tablesReport is the output of the tables command.
type tablesReport struct {
	Tables    []tableInfo `json:"tables"`
	Languages []string    `json:"languages"`
	Files     []string    `json:"files"`
	Faults    []faultInfo `json:"faults"`
}

func (r tablesReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tables (%d):\n", len(r.Tables))
	for _, t := range r.Tables {
		key := t.Key
		if t.KeyField != "" {
			key += "(" + t.KeyField + ")"
		}
		fmt.Fprintf(&b, "  %-12s %s", t.Name, key)
		if len(t.Dates) > 0 {
			fmt.Fprintf(&b, " dates=%s", strings.Join(t.Dates, ","))
		}
		if t.Identity {
			b.WriteString(" identity")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Languages: %s\n", strings.Join(r.Languages, ", "))
	fmt.Fprintf(&b, "Cached files: %d\n", len(r.Files))
	fmt.Fprintf(&b, "Faults:\n")
	for _, f := range r.Faults {
		fmt.Fprintf(&b, "  %s", f.ID)
		if f.Logout {
			b.WriteString(" (logout)")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func describeSchema(sch *schema.Schema) tablesReport {
	dates := map[string][]string{}
	for _, ref := range sch.CoercedFields() {
		dates[ref.Table] = append(dates[ref.Table], ref.Field)
	}

	r := tablesReport{
		Languages: sch.Languages(),
		Files:     sch.CachedFiles(),
	}
	for _, t := range sch.Tables() {
		r.Tables = append(r.Tables, tableInfo{
			Name:     t.Name,
			Key:      string(t.Key),
			KeyField: t.KeyField,
			Dates:    dates[t.Name],
			Identity: t.Name == schema.IdentityTable,
		})
	}
	for _, id := range sch.FaultIDs() {
		f, _ := sch.Fault(id)
		r.Faults = append(r.Faults, faultInfo{ID: id, Logout: f.InvalidatesSession})
	}
	return r
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TablesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Show the compiled manifest",
		Long: `Compile the manifest and print its tables, languages, cached files and
faults. Without --manifest the embedded manifest is shown; no config or
database is needed.

Example:
  appshell tables
  appshell tables --manifest ./manifest.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			sch, err := loadSchema(opts.Manifest)
			if err != nil {
				return formatter.Fail(ExitCommandError, CodeConfig, "failed to compile manifest", err)
			}
			return formatter.Success(describeSchema(sch))
		},
	}

	cmd.Flags().StringVarP(&opts.Manifest, "manifest", "m", "", "path to a CUE manifest (default: embedded)")

	return cmd
}
