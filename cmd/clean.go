package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/swarm/internal/output"
	"github.com/tanq16/swarm/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [path]",
		Short: "Remove a partially downloaded output file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := utils.Clean(args[0]); err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning up %s: %v", args[0], err))
				os.Exit(1)
			}
			output.PrintSuccess(fmt.Sprintf("Removed %s", args[0]))
		},
	}
}
