package cli

import (
	"github.com/spf13/cobra"
)

// resolveReport is the output of the resolve command.
type resolveReport struct {
	Path    string `json:"path"`
	Version string `json:"version"`
	Content string `json:"content"`
}

func (r resolveReport) Text() string {
	return r.Content
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <path>",
		Short: "Print a resource as the shell would load it",
		Long: `Resolve a resource path through the cache of the configured version, falling
back to the assets and the network on a miss.

Example:
  appshell resolve /template/error.html`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			a, err := openApp(cmd.Context(), rootOpts, formatter, rootOpts.newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer a.Close()

			resolver := a.ctrl.Resolver()
			b, err := resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return formatter.Fail(ExitFailure, CodeResource, "resource unavailable", err)
			}
			return formatter.Success(resolveReport{Path: args[0], Version: resolver.Version(), Content: string(b)})
		},
	}
}
