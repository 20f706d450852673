package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the keystone release, overridden at link time with
// -ldflags "-X github.com/mesh-intelligence/keystone/internal/cli.Version=...".
var Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/keystone"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the keystone version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "keystone v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
