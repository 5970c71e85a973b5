package cli

import (
	"github.com/spf13/cobra"
)

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Clear the device identity and all local tables",
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

			if err := a.ctrl.Logout(cmd.Context()); err != nil {
				return formatter.Fail(ExitFailure, CodeStore, "logout failed", err)
			}
			return formatter.Success("Logged out")
		},
	}
}
