package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/appshell/internal/resync"
)

// refreshReport is the output of the refresh command.
type refreshReport struct {
	resync.Summary
	order []string
}

func (r refreshReport) Text() string {
	var b strings.Builder
	for _, table := range r.order {
		if n, ok := r.Written[table]; ok {
			fmt.Fprintf(&b, "  %-12s %d\n", table, n)
		}
	}
	if len(r.Untouched) > 0 {
		fmt.Fprintf(&b, "Untouched: %s\n", strings.Join(r.Untouched, ", "))
	}
	fmt.Fprintf(&b, "Refreshed %d tables in %s\n", len(r.Written), r.Duration.Round(time.Millisecond))
	return b.String()
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Resync the local tables from the remote API",
		Long: `Call the remote refresh action once and replace every table present in the
response. Tables the response leaves out keep their records.

Example:
  appshell refresh --config ./appshell.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			a, err := openApp(cmd.Context(), rootOpts, formatter, rootOpts.newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.ctrl.Refresh(cmd.Context())
			if err != nil {
				return formatter.Fail(ExitFailure, CodeRemote, "refresh failed", err)
			}

			var order []string
			for _, t := range a.schema.Tables() {
				order = append(order, t.Name)
			}
			return formatter.Success(refreshReport{Summary: sum, order: order})
		},
	}
}
