package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tanq16/swarm/internal/utils"
	"gopkg.in/yaml.v3"
)

// Config holds everything a swarm run needs besides the target itself.
type Config struct {
	Feeds                 []string
	EchoURL               string
	ValidationTimeout     time.Duration
	ValidationConcurrency int
	FeedTimeout           time.Duration

	Workers        int
	ChunkSize      int64
	ConnectTimeout time.Duration
	Timeout        time.Duration
	KeepAlive      time.Duration
	RetryDelay     time.Duration
	MaxAttempts    int     // per chunk, 0 retries forever
	LeaseRate      float64 // leases per second, 0 is unlimited
	Resolve        bool
	UserAgent      string
	Headers        map[string]string
}

func Default() Config {
	return Config{
		Feeds:                 append([]string(nil), utils.DefaultFeeds...),
		EchoURL:               utils.DefaultEchoURL,
		ValidationTimeout:     utils.DefaultValidationTimeout,
		ValidationConcurrency: utils.DefaultValidationConcurrency,
		FeedTimeout:           utils.DefaultFeedTimeout,
		Workers:               utils.DefaultWorkers,
		ChunkSize:             utils.DefaultChunkSize,
		ConnectTimeout:        utils.DefaultConnectTimeout,
		Timeout:               utils.DefaultTotalTimeout,
		KeepAlive:             60 * time.Second,
		RetryDelay:            utils.DefaultRetryDelay,
	}
}

// fileConfig mirrors Config with human readable sizes and durations.
type fileConfig struct {
	Feeds      []string `yaml:"feeds"`
	Validation struct {
		EchoURL     string `yaml:"echo_url"`
		Timeout     string `yaml:"timeout"`
		Concurrency int    `yaml:"concurrency"`
		FeedTimeout string `yaml:"feed_timeout"`
	} `yaml:"validation"`
	Download struct {
		Workers        int               `yaml:"workers"`
		ChunkSize      string            `yaml:"chunk_size"`
		ConnectTimeout string            `yaml:"connect_timeout"`
		Timeout        string            `yaml:"timeout"`
		KeepAlive      string            `yaml:"keep_alive"`
		RetryDelay     string            `yaml:"retry_delay"`
		MaxAttempts    *int              `yaml:"max_attempts"`
		LeaseRate      *float64          `yaml:"lease_rate"`
		Resolve        *bool             `yaml:"resolve"`
		UserAgent      string            `yaml:"user_agent"`
		Headers        map[string]string `yaml:"headers"`
	} `yaml:"download"`
}

// Load reads a YAML file over the defaults. Keys missing from the file keep their default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("error parsing config file: %w", err)
	}

	if len(fc.Feeds) > 0 {
		cfg.Feeds = fc.Feeds
	}
	if fc.Validation.EchoURL != "" {
		cfg.EchoURL = fc.Validation.EchoURL
	}
	if fc.Validation.Concurrency != 0 {
		cfg.ValidationConcurrency = fc.Validation.Concurrency
	}
	if fc.Download.Workers != 0 {
		cfg.Workers = fc.Download.Workers
	}
	if fc.Download.ChunkSize != "" {
		size, err := utils.ParseBytes(fc.Download.ChunkSize)
		if err != nil {
			return cfg, fmt.Errorf("error parsing download.chunk_size: %w", err)
		}
		cfg.ChunkSize = size
	}
	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"validation.timeout", fc.Validation.Timeout, &cfg.ValidationTimeout},
		{"validation.feed_timeout", fc.Validation.FeedTimeout, &cfg.FeedTimeout},
		{"download.connect_timeout", fc.Download.ConnectTimeout, &cfg.ConnectTimeout},
		{"download.timeout", fc.Download.Timeout, &cfg.Timeout},
		{"download.keep_alive", fc.Download.KeepAlive, &cfg.KeepAlive},
		{"download.retry_delay", fc.Download.RetryDelay, &cfg.RetryDelay},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return cfg, fmt.Errorf("error parsing %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	if fc.Download.MaxAttempts != nil {
		cfg.MaxAttempts = *fc.Download.MaxAttempts
	}
	if fc.Download.LeaseRate != nil {
		cfg.LeaseRate = *fc.Download.LeaseRate
	}
	if fc.Download.Resolve != nil {
		cfg.Resolve = *fc.Download.Resolve
	}
	if fc.Download.UserAgent != "" {
		cfg.UserAgent = fc.Download.UserAgent
	}
	if len(fc.Download.Headers) > 0 {
		cfg.Headers = fc.Download.Headers
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.ValidationConcurrency <= 0 {
		return errors.New("config: validation concurrency must be positive")
	}
	if c.Timeout <= 0 || c.ConnectTimeout <= 0 || c.ValidationTimeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	if c.MaxAttempts < 0 {
		return errors.New("config: max_attempts cannot be negative")
	}
	if c.LeaseRate < 0 {
		return errors.New("config: lease_rate cannot be negative")
	}
	return nil
}

// RunConfig converts the download half of the config into the per-run settings.
func (c *Config) RunConfig() utils.RunConfig {
	return utils.RunConfig{
		Workers:     c.Workers,
		ChunkSize:   c.ChunkSize,
		MaxAttempts: c.MaxAttempts,
		RetryDelay:  c.RetryDelay,
		LeaseRate:   c.LeaseRate,
		Resolve:     c.Resolve,
		HTTP: utils.HTTPClientConfig{
			Timeout:        c.Timeout,
			ConnectTimeout: c.ConnectTimeout,
			KATimeout:      c.KeepAlive,
			UserAgent:      c.UserAgent,
			Headers:        c.Headers,
		},
	}
}
