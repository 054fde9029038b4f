package cmd

import (
	"context"
	"fmt"
	u "net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/swarm/internal/output"
	"github.com/tanq16/swarm/internal/scheduler"
	"github.com/tanq16/swarm/internal/utils"
)

var (
	configPath        string
	outputPath        string
	workers           int
	chunkSize         string
	proxyFile         string
	feeds             []string
	echoURL           string
	validationTimeout time.Duration
	concurrency       int
	timeout           time.Duration
	connectTimeout    time.Duration
	maxAttempts       int
	retryDelay        time.Duration
	leaseRate         float64
	resolve           bool
	userAgent         string
	headers           []string
	debug             bool
)

var SwarmVersion = "dev"

var rootCmd = &cobra.Command{
	Use:   "swarm [URL] [--output OUTPUT_PATH]",
	Short: "Swarm downloads one file in parallel chunks through a pool of public SOCKS5 proxies",
	Long: `Swarm scrapes public SOCKS5 proxy lists, keeps the proxies that can reach an echo
endpoint and downloads the target in byte-range chunks, each attempt through a
randomly chosen proxy. Failed chunks are retried until they succeed.`,
	Version: SwarmVersion,
	Args:    cobra.ExactArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
	},
	Run: func(cmd *cobra.Command, args []string) {
		url := args[0]
		if _, err := u.ParseRequestURI(url); err != nil {
			output.PrintError("Invalid URL format")
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
		jobs := []utils.SwarmJob{{URL: url, OutputPath: outputPath}}
		if _, err := scheduler.Run(ctx, jobs, 1, scheduler.Options{
			Proxies: proxies,
			Config:  cfg.RunConfig(),
			Output:  mgr,
		}); err != nil {
			closeLog()
			os.Exit(1)
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (inferred from the URL if not provided)")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.IntVarP(&workers, "workers", "w", 0, "Number of parallel chunk workers per download (default 10)")
	flags.StringVar(&chunkSize, "chunk-size", "", "Chunk size, e.g. 10MB or 512KB (default 10MB)")
	flags.StringVar(&proxyFile, "proxy-file", "", "Read proxy candidates from a file instead of scraping feeds")
	flags.StringArrayVar(&feeds, "feed", []string{}, "Proxy list feed URL; can be specified multiple times")
	flags.StringVar(&echoURL, "echo-url", "", "Endpoint used to validate proxies (default "+utils.DefaultEchoURL+")")
	flags.DurationVar(&validationTimeout, "validate-timeout", 0, "Per proxy validation timeout (default 3s)")
	flags.IntVar(&concurrency, "validate-concurrency", 0, "Number of proxies validated at once (default 200)")
	flags.DurationVarP(&timeout, "timeout", "t", 0, "Total timeout per chunk attempt (default 10m)")
	flags.DurationVar(&connectTimeout, "connect-timeout", 0, "Connect timeout per attempt (default 10s)")
	flags.IntVar(&maxAttempts, "max-attempts", 0, "Give up on a chunk after this many attempts (0 retries forever)")
	flags.DurationVar(&retryDelay, "retry-delay", 0, "Pause before retrying a failed chunk (default 1s)")
	flags.Float64Var(&leaseRate, "lease-rate", 0, "Maximum download leases acquired per second (0 is unlimited)")
	flags.BoolVar(&resolve, "resolve", false, "Follow redirects through each proxy to find the final download URL")
	flags.StringVarP(&userAgent, "user-agent", "a", "", "User agent for proxy validation and scraping")
	flags.StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Referer: https://example.com'); can be specified multiple times")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newProxiesCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
}
