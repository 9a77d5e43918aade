package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devkiraa/Hang/internal/fingerprint"
)

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>...",
		Short: "Print the fingerprint rooms use to match files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				fp, err := fingerprint.File(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", fp, path)
			}
			return nil
		},
	}
}
