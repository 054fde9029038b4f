package utils

import "time"

type SwarmJob struct {
	ID           string
	URL          string
	OutputPath   string
	ProgressFunc func(downloaded, total int64)
}

type RunConfig struct {
	Workers     int
	ChunkSize   int64
	MaxAttempts int
	RetryDelay  time.Duration
	LeaseRate   float64
	Resolve     bool
	HTTP        HTTPClientConfig
}

type BatchEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	Link       string `yaml:"link"`
}
