package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tanq16/swarm/internal/lease"
	"github.com/tanq16/swarm/internal/output"
	"github.com/tanq16/swarm/internal/proxy"
	"github.com/tanq16/swarm/internal/swarm"
	"github.com/tanq16/swarm/internal/utils"
	"golang.org/x/time/rate"
)

type Options struct {
	Proxies *proxy.Set
	Config  utils.RunConfig
	// Leases defaults to a DirectProvider built from Config
	Leases lease.Provider
	// Output defaults to a manager on stdout
	Output *output.Manager
}

type JobResult struct {
	Job    utils.SwarmJob
	Result *swarm.Result
	Err    error
}

// Run downloads every job with numWorkers jobs in flight. All jobs share the
// proxy snapshot and the lease rate limit. The returned error joins the
// failures of individual jobs.
func Run(ctx context.Context, jobs []utils.SwarmJob, numWorkers int, opts Options) ([]JobResult, error) {
	log := utils.GetLogger("scheduler")
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if opts.Output == nil {
		opts.Output = output.NewManager(os.Stdout)
	}
	if opts.Leases == nil {
		opts.Leases = &lease.DirectProvider{HTTP: opts.Config.HTTP, Resolve: opts.Config.Resolve}
	}
	if opts.Config.LeaseRate > 0 {
		opts.Leases = lease.RateLimited(opts.Leases, rate.NewLimiter(rate.Limit(opts.Config.LeaseRate), 1))
	}
	log.Debug().Int("jobs", len(jobs)).Int("workers", numWorkers).Int("proxies", opts.Proxies.Len()).Msg("Starting scheduler")

	opts.Output.StartDisplay()
	defer opts.Output.StopDisplay()

	results := make([]JobResult, len(jobs))
	jobCh := make(chan int, len(jobs))
	for i := range jobs {
		jobCh <- i
	}
	close(jobCh)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobCh {
				results[i] = processJob(ctx, jobs[i], opts)
			}
		}()
	}
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Job.URL, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func processJob(ctx context.Context, job utils.SwarmJob, opts Options) JobResult {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.OutputPath == "" {
		job.OutputPath = utils.OutputPathFromURL(job.URL)
		if _, err := os.Stat(job.OutputPath); err == nil {
			job.OutputPath = utils.RenewOutputPath(job.OutputPath)
		}
	}
	log := utils.GetLogger("scheduler").With().Str("job", job.ID).Logger()
	mgr := opts.Output
	id := mgr.Register(job.URL)

	if err := ctx.Err(); err != nil {
		mgr.ReportError(id, err)
		return JobResult{Job: job, Err: err}
	}

	cfg := swarm.Config{
		TargetURL:   job.URL,
		OutputPath:  job.OutputPath,
		ChunkSize:   opts.Config.ChunkSize,
		Workers:     opts.Config.Workers,
		MaxAttempts: opts.Config.MaxAttempts,
		RetryDelay:  opts.Config.RetryDelay,
		HTTP:        opts.Config.HTTP,
		ProgressFunc: func(downloaded, total int64) {
			mgr.UpdateProgress(id, downloaded, total)
			if job.ProgressFunc != nil {
				job.ProgressFunc(downloaded, total)
			}
		},
		StateFunc: func(s swarm.State) {
			switch s {
			case swarm.StateSizing:
				mgr.SetStatus(id, output.StatusSizing)
				mgr.SetMessage(id, fmt.Sprintf("Sizing %s", job.URL))
			case swarm.StateDownloading:
				mgr.SetStatus(id, output.StatusDownloading)
				mgr.SetMessage(id, fmt.Sprintf("Downloading %s", job.OutputPath))
			}
		},
	}
	result, err := swarm.New(cfg, opts.Proxies, opts.Leases).Run(ctx)
	if result != nil {
		mgr.UpdateStats(id, result.Attempts, result.Failures)
	}
	if err != nil {
		log.Error().Err(err).Str("url", job.URL).Msg("Job failed")
		mgr.ReportError(id, err)
		return JobResult{Job: job, Result: result, Err: err}
	}
	log.Info().Str("output", job.OutputPath).Int64("size", result.FileSize).Dur("elapsed", result.Elapsed).Msg("Job complete")
	mgr.Complete(id, fmt.Sprintf("Downloaded %s (%s) in %s", job.OutputPath, utils.FormatBytes(uint64(result.FileSize)), result.Elapsed.Round(time.Millisecond)))
	return JobResult{Job: job, Result: result}
}
