package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/tanq16/swarm/internal/output"
	"github.com/tanq16/swarm/internal/scheduler"
	"github.com/tanq16/swarm/internal/utils"
)

func newBatchCmd() *cobra.Command {
	var parallel int

	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [OPTIONS]",
		Short: "Download every link listed in a YAML file through one validated proxy pool",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			jobs, err := readBatchFile(args[0])
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			if len(jobs) == 0 {
				output.PrintError("No valid jobs found in the batch file")
				os.Exit(1)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			ctx := cmd.Context()
			proxies, err := gatherProxies(ctx, cfg)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			mgr, closeLog := newOutputManager()
			defer closeLog()
			if _, err := scheduler.Run(ctx, jobs, parallel, scheduler.Options{
				Proxies: proxies,
				Config:  cfg.RunConfig(),
				Output:  mgr,
			}); err != nil {
				closeLog()
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", 1, "Number of links to download at the same time")
	return cmd
}

// readBatchFile parses a YAML list of {link, op} entries; entries without a link are skipped.
func readBatchFile(path string) ([]utils.SwarmJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}
	var entries []utils.BatchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	log := utils.GetLogger("batch")
	var jobs []utils.SwarmJob
	for i, entry := range entries {
		if entry.Link == "" {
			log.Warn().Int("entry", i+1).Msg("Empty link, skipping")
			continue
		}
		jobs = append(jobs, utils.SwarmJob{
			URL:        entry.Link,
			OutputPath: entry.OutputPath,
		})
	}
	return jobs, nil
}
