package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/swarm/internal/output"
	"github.com/tanq16/swarm/internal/proxy"
)

func newProxiesCmd() *cobra.Command {
	var listPath string

	cmd := &cobra.Command{
		Use:   "proxies [--output PROXY_FILE]",
		Short: "Scrape and validate SOCKS5 proxies, then save the working ones",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			set, err := gatherProxies(cmd.Context(), cfg)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			if set.Empty() {
				os.Exit(1)
			}
			if err := proxy.WriteList(listPath, set); err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			output.PrintSuccess(fmt.Sprintf("Saved %d proxies to %s", set.Len(), listPath))
		},
	}

	cmd.Flags().StringVarP(&listPath, "output", "o", "proxies.txt", "File to write the working proxies to")
	return cmd
}
