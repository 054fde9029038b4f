package swarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tanq16/swarm/internal/chunk"
	"github.com/tanq16/swarm/internal/lease"
	"github.com/tanq16/swarm/internal/outfile"
	"github.com/tanq16/swarm/internal/proxy"
	"github.com/tanq16/swarm/internal/utils"
)

// Orchestrator drives a single download run. It owns the output file and the
// worker pool; the proxy set is a read-only snapshot shared by all workers.
type Orchestrator struct {
	cfg     Config
	proxies *proxy.Set
	leases  lease.Provider
	runID   string

	state    atomic.Int32
	attempts atomic.Int64
	failures atomic.Int64

	abortOnce sync.Once
	abortErr  error
}

func New(cfg Config, proxies *proxy.Set, leases lease.Provider) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = utils.DefaultWorkers
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = utils.DefaultChunkSize
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = utils.DefaultTotalTimeout
	}
	if cfg.HTTP.ConnectTimeout <= 0 {
		cfg.HTTP.ConnectTimeout = utils.DefaultConnectTimeout
	}
	cfg.HTTP.HighThreadMode = cfg.Workers > 5
	if cfg.OpenOutput == nil {
		cfg.OpenOutput = func(path string, size int64) (outfile.Writer, error) {
			return outfile.Preallocate(path, size)
		}
	}
	return &Orchestrator{
		cfg:     cfg,
		proxies: proxies,
		leases:  leases,
		runID:   uuid.NewString(),
	}
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	if o.cfg.StateFunc != nil {
		o.cfg.StateFunc(s)
	}
}

// Run executes the whole state machine. Only INIT and SIZING failures, an
// exhausted retry cap, or cancellation of ctx produce an error.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	log := utils.GetLogger("swarm").With().Str("run", o.runID).Logger()
	start := time.Now()
	result := &Result{RunID: o.runID}
	finish := func(s State, err error) (*Result, error) {
		o.setState(s)
		result.State = s
		result.Attempts = o.attempts.Load()
		result.Failures = o.failures.Load()
		result.Elapsed = time.Since(start)
		if err != nil {
			log.Error().Err(err).Str("state", s.String()).Msg("Run failed")
		}
		return result, err
	}

	o.setState(StateInit)
	if o.cfg.TargetURL == "" {
		return finish(StateFailed, errors.New("no target URL configured"))
	}
	if o.proxies.Empty() {
		return finish(StateFailed, ErrNoProxiesAvailable)
	}
	log.Info().Int("proxies", o.proxies.Len()).Str("url", o.cfg.TargetURL).Msg("Starting run")

	o.setState(StateSizing)
	size, err := o.sizeTarget(ctx)
	if err != nil {
		return finish(StateFailed, err)
	}
	result.FileSize = size
	out, err := o.cfg.OpenOutput(o.cfg.OutputPath, size)
	if err != nil {
		return finish(StateFailed, fmt.Errorf("error preparing output file: %w", err))
	}
	chunks, err := chunk.Partition(size, o.cfg.ChunkSize)
	if err != nil {
		return finish(StateFailed, err)
	}
	result.Chunks = len(chunks)
	log.Info().Int64("size", size).Int("chunks", len(chunks)).Int("workers", o.cfg.Workers).Msg("Sizing complete")

	o.setState(StateDownloading)
	if err := o.download(ctx, chunks, out, size); err != nil {
		return finish(StateFailed, err)
	}
	log.Info().Dur("elapsed", time.Since(start)).Int64("attempts", o.attempts.Load()).Msg("Download complete")
	return finish(StateComplete, nil)
}

// sizeTarget walks the proxies until one yields a lease and a successful range probe.
func (o *Orchestrator) sizeTarget(ctx context.Context) (int64, error) {
	log := utils.GetLogger("sizing")
	candidates := o.proxies.Shuffled()
	for i, p := range candidates {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		plog := log.With().Str("proxy", p.String()).Int("try", i+1).Int("of", len(candidates)).Logger()
		l, err := o.leases.Acquire(ctx, o.cfg.TargetURL, p)
		if err != nil {
			plog.Debug().Err(err).Msg("Lease acquisition failed")
			continue
		}
		client, err := o.clientFor(l)
		if err != nil {
			plog.Debug().Err(err).Msg("Client setup failed")
			continue
		}
		size, err := ProbeSize(ctx, client, l.DownloadURL)
		client.CloseIdleConnections()
		if err != nil {
			plog.Debug().Err(err).Msg("Range probe failed")
			continue
		}
		plog.Debug().Int64("size", size).Msg("Range probe succeeded")
		return size, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return 0, ErrSizingFailed
}

func (o *Orchestrator) download(ctx context.Context, chunks []chunk.Chunk, out outfile.Writer, size int64) error {
	q := chunk.NewQueue(chunks)
	stop := context.AfterFunc(ctx, q.Close)
	defer stop()

	progressCh := make(chan int64, 100)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		var downloaded int64
		for n := range progressCh {
			downloaded += n
			if o.cfg.ProgressFunc != nil {
				o.cfg.ProgressFunc(downloaded, size)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := range o.cfg.Workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			o.worker(ctx, id, q, out, progressCh)
		}(i)
	}
	q.Wait()
	q.Close()
	wg.Wait()
	close(progressCh)
	<-progressDone

	if o.abortErr != nil {
		return o.abortErr
	}
	if q.Remaining() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("run stopped with %d chunks outstanding", q.Remaining())
	}
	return nil
}

func (o *Orchestrator) abort(err error) {
	o.abortOnce.Do(func() {
		o.abortErr = err
	})
}

func (o *Orchestrator) clientFor(l *lease.Lease) (*utils.SwarmHTTPClient, error) {
	cfg := o.cfg.HTTP
	cfg.ProxyAddr = l.Proxy.String()
	cfg.Jar = l.Jar
	cfg.UserAgent = l.UserAgent
	return utils.NewSwarmHTTPClient(cfg)
}
