package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/appshell/internal/cache"
)

// installReport is the output of the install command.
type installReport struct {
	cache.InstallResult
}

func (r installReport) Text() string {
	return fmt.Sprintf("Installed %s: %d resources stored, %d stale entries pruned\n",
		r.Version, r.Stored, r.Pruned)
}

// NewInstallCommand creates the install command.
func NewInstallCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Populate the resource cache",
		Long: `Fetch every resource the manifest lists for the configured cache version
and store it in the cache. Entries of all other versions are removed once
the new version is complete; a failed install leaves the cache unchanged.

Example:
  appshell install --config ./appshell.yaml`,
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

			res, err := a.install(cmd.Context())
			if err != nil {
				return formatter.Fail(ExitFailure, CodeResource, "install failed", err)
			}
			return formatter.Success(installReport{res})
		},
	}
}
