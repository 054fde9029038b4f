package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/swarm/internal/config"
	"github.com/tanq16/swarm/internal/output"
	"github.com/tanq16/swarm/internal/proxy"
	"github.com/tanq16/swarm/internal/utils"
)

// loadConfig layers the config file over the defaults and explicitly set flags over both.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("chunk-size") {
		size, err := utils.ParseBytes(chunkSize)
		if err != nil {
			return cfg, err
		}
		cfg.ChunkSize = size
	}
	if flags.Changed("feed") {
		cfg.Feeds = feeds
	}
	if flags.Changed("echo-url") {
		cfg.EchoURL = echoURL
	}
	if flags.Changed("validate-timeout") {
		cfg.ValidationTimeout = validationTimeout
	}
	if flags.Changed("validate-concurrency") {
		cfg.ValidationConcurrency = concurrency
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("connect-timeout") {
		cfg.ConnectTimeout = connectTimeout
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts = maxAttempts
	}
	if flags.Changed("retry-delay") {
		cfg.RetryDelay = retryDelay
	}
	if flags.Changed("lease-rate") {
		cfg.LeaseRate = leaseRate
	}
	if flags.Changed("resolve") {
		cfg.Resolve = resolve
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = userAgent
	}
	if len(headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		for k, v := range utils.ParseHeaderArgs(headers) {
			cfg.Headers[k] = v
		}
	}
	return cfg, cfg.Validate()
}

// gatherProxies scrapes (or reads) candidates and keeps the ones that pass validation.
func gatherProxies(ctx context.Context, cfg config.Config) (*proxy.Set, error) {
	log := utils.GetLogger("proxies")
	httpCfg := cfg.RunConfig().HTTP

	var candidates []proxy.Endpoint
	var err error
	if proxyFile != "" {
		candidates, err = proxy.ReadList(proxyFile)
		if err != nil {
			return nil, err
		}
		output.PrintInfo(fmt.Sprintf("Loaded %d proxy candidates from %s", len(candidates), proxyFile))
	} else {
		source := proxy.NewSource(cfg.Feeds, cfg.FeedTimeout)
		source.HTTP.UserAgent = httpCfg.UserAgent
		candidates, err = source.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		output.PrintInfo(fmt.Sprintf("Scraped %d unique proxy candidates from %d feeds", len(candidates), len(cfg.Feeds)))
	}

	validator := proxy.NewValidator(cfg.EchoURL, cfg.ValidationTimeout, cfg.ValidationConcurrency)
	validator.HTTP.UserAgent = httpCfg.UserAgent
	set := validator.Validate(ctx, candidates)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Info().Int("candidates", len(candidates)).Int("working", set.Len()).Msg("Proxy validation finished")
	if set.Empty() {
		output.PrintWarning("No working proxies found")
	} else {
		output.PrintSuccess(fmt.Sprintf("%d of %d proxies are working", set.Len(), len(candidates)))
	}
	return set, nil
}

// newOutputManager sends logs to the log file while the display redraws the
// terminal, unless debug output was requested.
func newOutputManager() (*output.Manager, func()) {
	mgr := output.NewManager(os.Stdout)
	if !mgr.Interactive() || debug {
		return mgr, func() {}
	}
	f, err := os.OpenFile(utils.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		output.PrintWarning(fmt.Sprintf("Could not open %s, logging to stderr", utils.LogFile))
		return mgr, func() {}
	}
	utils.SetLogOutput(f)
	closed := false
	return mgr, func() {
		if !closed {
			closed = true
			f.Close()
		}
	}
}
