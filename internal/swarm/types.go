package swarm

import (
	"time"

	"github.com/tanq16/swarm/internal/outfile"
	"github.com/tanq16/swarm/internal/utils"
)

type State int32

const (
	StateInit State = iota
	StateSizing
	StateDownloading
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSizing:
		return "sizing"
	case StateDownloading:
		return "downloading"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type Config struct {
	TargetURL  string
	OutputPath string
	ChunkSize  int64
	Workers    int
	// MaxAttempts caps attempts per chunk; 0 retries forever.
	MaxAttempts  int
	RetryDelay   time.Duration
	HTTP         utils.HTTPClientConfig
	ProgressFunc func(downloaded, total int64)
	StateFunc    func(State)
	OpenOutput   func(path string, size int64) (outfile.Writer, error)
}

type Result struct {
	RunID    string
	State    State
	FileSize int64
	Chunks   int
	Attempts int64
	Failures int64
	Elapsed  time.Duration
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetry
)

// attemptResult is the only thing a chunk attempt can produce: success, or a retryable failure.
type attemptResult struct {
	outcome outcome
	err     error
}

func retryable(err error) attemptResult {
	return attemptResult{outcome: outcomeRetry, err: err}
}
