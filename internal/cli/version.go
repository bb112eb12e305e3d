package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the current version of sigrefactor
const Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show application version",
		Args:  cobra.NoArgs,
		// no config or workspace needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "sigrefactor version %s\n", Version)
			return nil
		},
	}
}
